package database

import (
	"context"
	"fanshare/config"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Handle is an open SQLite database together with the counters fed by its logger.
type Handle struct {
	DB      *gorm.DB
	Counter *StatementCounter
	Path    string
}

// Open opens the GORM SQLite database described by cfg, applies connection pool settings
// and optional PRAGMAs, and returns the handle. It does not touch the schema: callers run
// migrations before handing the handle to anything that reads application tables.
func Open(cfg *config.Config) (*Handle, error) {
	logLevel := logger.Silent
	if cfg.IsDebug() {
		logLevel = logger.Info
	}

	counter := &StatementCounter{}
	dsn := buildSQLiteDSN(cfg.DatabaseURL, cfg)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: metricsLogger{
			inner: logger.New(
				log.New(log.Writer(), "\r\n", log.LstdFlags),
				logger.Config{
					LogLevel:                  logLevel,
					IgnoreRecordNotFoundError: true,
				},
			),
			counter: counter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DatabaseURL, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	pool := currentSQLitePoolConfig(cfg)
	if isMemoryDSN(cfg.DatabaseURL) {
		// An in-memory database lives exactly as long as its single connection.
		pool = sqlitePoolConfig{maxOpenConns: 1, maxIdleConns: 1}
	}
	sqlDB.SetMaxIdleConns(pool.maxIdleConns)
	sqlDB.SetMaxOpenConns(pool.maxOpenConns)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.maxIdleSec) * time.Second)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.maxLifeSec) * time.Second)

	// The DSN applies PRAGMAs to every new connection; running them once more here covers
	// database files created by older builds that opened without them.
	if cfg.SQLitePragmasEnabled {
		for _, pragma := range sqlitePragmas(cfg) {
			if err := db.Exec("PRAGMA " + pragma.statement()).Error; err != nil {
				log.Printf("Warning: PRAGMA %s failed: %v", pragma.name, err)
			}
		}
	}

	log.Printf("Database opened: %s", cfg.DatabaseURL)
	return &Handle{DB: db, Counter: counter, Path: cfg.DatabaseURL}, nil
}

// InMemory reports whether the handle points at a private in-memory database.
func (h *Handle) InMemory() bool {
	return isMemoryDSN(h.Path)
}

// Ping checks connectivity, bounding the probe to 200ms when ctx has no deadline.
func (h *Handle) Ping(ctx context.Context) bool {
	if h == nil || h.DB == nil {
		return false
	}

	sqlDB, err := h.DB.DB()
	if err != nil {
		return false
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
	}

	return sqlDB.PingContext(ctx) == nil
}

// Close closes the database connection and releases resources
func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}

	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}

	log.Println("Closing database connection...")
	return sqlDB.Close()
}
