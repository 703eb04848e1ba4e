package migrate

import "context"

// DefaultCatalog returns the fanshare schema history. Append new units at the end;
// never edit a unit that has shipped.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Version:     "1.0.0",
			Description: "create users, fans and user_logins",
			Apply:       createBaseTables,
		},
		{
			Version:     "1.0.1",
			Description: "add users.is_admin",
			Apply: func(ctx context.Context, tx *Tx) error {
				_, err := tx.EnsureColumn(ctx, "users", "is_admin", "INTEGER NOT NULL DEFAULT 0")
				return err
			},
		},
		{
			Version:     "1.0.2",
			Description: "add fans.fan_type and feedback",
			Apply:       addFanTypeAndFeedback,
		},
		{
			Version:     "1.0.3",
			Description: "create flagged_fans",
			Apply: func(ctx context.Context, tx *Tx) error {
				_, err := tx.EnsureTable(ctx, "flagged_fans", `CREATE TABLE flagged_fans (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					fan_id     INTEGER NOT NULL REFERENCES fans(id) ON DELETE CASCADE,
					user_id    INTEGER REFERENCES users(id) ON DELETE SET NULL,
					reason     TEXT NOT NULL,
					resolved   INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (fan_id, user_id)
				)`,
					`CREATE INDEX idx_flagged_fans_resolved ON flagged_fans(resolved)`,
				)
				return err
			},
		},
	}
}

func createBaseTables(ctx context.Context, tx *Tx) error {
	if _, err := tx.EnsureTable(ctx, "users", `CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		display_name  TEXT,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return err
	}

	if _, err := tx.EnsureTable(ctx, "fans", `CREATE TABLE fans (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		description TEXT,
		image_path  TEXT,
		likes       INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
		`CREATE INDEX idx_fans_user_id ON fans(user_id)`,
	); err != nil {
		return err
	}

	_, err := tx.EnsureTable(ctx, "user_logins", `CREATE TABLE user_logins (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		ip_address   TEXT,
		user_agent   TEXT,
		logged_in_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
		`CREATE INDEX idx_user_logins_user_id ON user_logins(user_id)`,
	)
	return err
}

func addFanTypeAndFeedback(ctx context.Context, tx *Tx) error {
	if _, err := tx.EnsureColumn(ctx, "fans", "fan_type", "TEXT NOT NULL DEFAULT 'ceiling'"); err != nil {
		return err
	}

	_, err := tx.EnsureTable(ctx, "feedback", `CREATE TABLE feedback (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER REFERENCES users(id) ON DELETE SET NULL,
		email      TEXT,
		message    TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}
