package main

import (
	"context"
	"fanshare/config"
	"fanshare/database"
	"fanshare/errorlog"
	"fanshare/migrate"
	"fmt"
	"io"
	"log"
	"time"
)

// newRunner wires the default catalog to handle. File-backed databases are guarded by
// an advisory lock next to the database file so that two processes never migrate the
// same file at once.
func newRunner(handle *database.Handle, cfg *config.Config) (*migrate.Runner, error) {
	opts := []migrate.Option{
		migrate.WithLogger(log.Default()),
		migrate.WithFailureHook(func(err error, fields map[string]interface{}) {
			errorlog.Fatal("migrate", "Schema migration failed", err, fields)
		}),
	}

	switch {
	case handle.InMemory():
		log.Println("In-memory database: migration lock not needed")
	case !cfg.MigrationLockEnabled:
		log.Println("Warning: migration lock disabled; do not start several instances against the same database")
	default:
		lock := migrate.NewFileLock(migrate.LockPathFor(handle.Path), time.Duration(cfg.MigrationLockTimeoutSeconds)*time.Second)
		opts = append(opts, migrate.WithLocker(lock))
		debugf("Migration lock file: %s", lock.Path())
	}

	return migrate.NewRunner(handle.DB, migrate.DefaultCatalog(), opts...)
}

// printSchemaStatus writes the recorded version and pending units to w.
func printSchemaStatus(ctx context.Context, w io.Writer, runner *migrate.Runner) error {
	current, pending, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Schema version: %s\n", current)
	fmt.Fprintf(w, "Target version: %s\n", runner.Target())
	if len(pending) == 0 {
		if migrate.MustCompare(current, runner.Target()) > 0 {
			fmt.Fprintln(w, "Database is newer than this build; nothing to apply.")
		} else {
			fmt.Fprintln(w, "Up to date.")
		}
		return nil
	}

	fmt.Fprintf(w, "Pending migrations (%d):\n", len(pending))
	for _, u := range pending {
		fmt.Fprintf(w, "  %-8s %s\n", u.Version, u.Description)
	}
	return nil
}
