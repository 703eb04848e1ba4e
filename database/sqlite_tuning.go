package database

import (
	"fanshare/config"
	"fmt"
	"net/url"
	"strings"
)

type sqlitePoolConfig struct {
	maxOpenConns int
	maxIdleConns int
	maxIdleSec   int
	maxLifeSec   int
}

type sqlitePragma struct {
	name  string
	value string
}

// statement renders the pragma for a PRAGMA statement, e.g. "journal_mode = WAL".
func (p sqlitePragma) statement() string {
	return p.name + " = " + p.value
}

// dsnParam renders the pragma for the driver's _pragma DSN parameter, e.g. "journal_mode(WAL)".
func (p sqlitePragma) dsnParam() string {
	return p.name + "(" + p.value + ")"
}

// sanitizeSQLitePoolConfig enforces maxOpenConns >= 1, 0 <= maxIdleConns <= maxOpenConns
// and non-negative durations.
func sanitizeSQLitePoolConfig(cfg sqlitePoolConfig) sqlitePoolConfig {
	if cfg.maxOpenConns < 1 {
		cfg.maxOpenConns = 1
	}
	if cfg.maxIdleConns < 0 {
		cfg.maxIdleConns = 0
	}
	if cfg.maxIdleConns > cfg.maxOpenConns {
		cfg.maxIdleConns = cfg.maxOpenConns
	}
	if cfg.maxIdleSec < 0 {
		cfg.maxIdleSec = 0
	}
	if cfg.maxLifeSec < 0 {
		cfg.maxLifeSec = 0
	}
	return cfg
}

// sqlitePragmas lists the PRAGMAs implied by settings in the order they are applied.
// Invalid journal or synchronous modes are skipped rather than sent to SQLite.
func sqlitePragmas(settings *config.Config) []sqlitePragma {
	var pragmas []sqlitePragma
	if settings.SQLiteBusyTimeoutMS > 0 {
		pragmas = append(pragmas, sqlitePragma{"busy_timeout", fmt.Sprintf("%d", settings.SQLiteBusyTimeoutMS)})
	}
	if journalMode := normalizeSQLiteJournalMode(settings.SQLiteJournalMode); journalMode != "" {
		pragmas = append(pragmas, sqlitePragma{"journal_mode", journalMode})
	}
	if synchronous := normalizeSQLiteSynchronous(settings.SQLiteSynchronous); synchronous != "" {
		pragmas = append(pragmas, sqlitePragma{"synchronous", synchronous})
	}
	if settings.SQLiteForeignKeys {
		pragmas = append(pragmas, sqlitePragma{"foreign_keys", "1"})
	} else {
		pragmas = append(pragmas, sqlitePragma{"foreign_keys", "0"})
	}
	return pragmas
}

// buildSQLiteDSN appends the configured PRAGMAs to dbPath as _pragma query parameters,
// keeping any parameters already present. Without parameters the bare path is returned.
func buildSQLiteDSN(dbPath string, settings *config.Config) string {
	base, rawQuery, _ := strings.Cut(dbPath, "?")

	query, _ := url.ParseQuery(rawQuery)

	if settings.SQLitePragmasEnabled {
		for _, pragma := range sqlitePragmas(settings) {
			// WAL is meaningless for a private in-memory database.
			if pragma.name == "journal_mode" && isMemoryDSN(dbPath) {
				continue
			}
			query.Add("_pragma", pragma.dsnParam())
		}
	}

	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// isMemoryDSN reports whether dbPath names an in-memory SQLite database.
func isMemoryDSN(dbPath string) bool {
	base, rawQuery, _ := strings.Cut(dbPath, "?")
	if base == "" || strings.Contains(base, ":memory:") {
		return true
	}
	query, _ := url.ParseQuery(rawQuery)
	return query.Get("mode") == "memory"
}

func currentSQLitePoolConfig(settings *config.Config) sqlitePoolConfig {
	return sanitizeSQLitePoolConfig(sqlitePoolConfig{
		maxOpenConns: settings.SQLiteMaxOpenConns,
		maxIdleConns: settings.SQLiteMaxIdleConns,
		maxIdleSec:   settings.SQLiteConnMaxIdleSec,
		maxLifeSec:   settings.SQLiteConnMaxLifeSec,
	})
}

// normalizeSQLiteJournalMode returns the uppercased journal mode, or "" when it is not
// one of WAL, DELETE, TRUNCATE, PERSIST, MEMORY, OFF.
func normalizeSQLiteJournalMode(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF":
		return value
	default:
		return ""
	}
}

// normalizeSQLiteSynchronous returns the uppercased synchronous level, or "" when it is
// neither a named level nor 0-3.
func normalizeSQLiteSynchronous(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "OFF", "NORMAL", "FULL", "EXTRA":
		return value
	case "0", "1", "2", "3":
		return value
	default:
		return ""
	}
}
