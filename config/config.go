package config

import (
	"errors"
	"fanshare/version"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds fanshare runtime configuration.
type Config struct {
	LogLevel             string `toml:"log_level"`
	LogFilePath          string `toml:"log_file"`
	Port                 int    `toml:"port"`
	DatabaseURL          string `toml:"database_url"`
	SQLitePragmasEnabled bool   `toml:"sqlite_pragmas_enabled"`
	SQLiteBusyTimeoutMS  int    `toml:"sqlite_busy_timeout_ms"`
	SQLiteJournalMode    string `toml:"sqlite_journal_mode"`
	SQLiteSynchronous    string `toml:"sqlite_synchronous"`
	SQLiteForeignKeys    bool   `toml:"sqlite_foreign_keys"`
	SQLiteMaxOpenConns   int    `toml:"sqlite_max_open_conns"`
	SQLiteMaxIdleConns   int    `toml:"sqlite_max_idle_conns"`
	SQLiteConnMaxIdleSec int    `toml:"sqlite_conn_max_idle_seconds"`
	SQLiteConnMaxLifeSec int    `toml:"sqlite_conn_max_lifetime_seconds"`

	// Migration bootstrap
	MigrationLockEnabled        bool `toml:"migration_lock_enabled"`
	MigrationLockTimeoutSeconds int  `toml:"migration_lock_timeout_seconds"`

	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
	MaxErrorLogs           int `toml:"max_error_logs"`

	// API access control; deny entries win
	APIAllowCIDRs []string `toml:"api_allow_cidrs"`
	APIDenyCIDRs  []string `toml:"api_deny_cidrs"`

	// Run modes, set from flags only
	ConfigFile   string `toml:"-"`
	MigrateOnly  bool   `toml:"-"`
	SchemaStatus bool   `toml:"-"`
}

// Settings is the global configuration instance populated from environment variables and flags.
var Settings *Config

func init() {
	cfg := Default()
	applyEnv(&cfg)
	Settings = &cfg
}

// Default returns the built-in configuration without any environment overrides.
func Default() Config {
	return Config{
		LogLevel:                    "INFO",
		LogFilePath:                 "./fanshare.log",
		Port:                        8080,
		DatabaseURL:                 "fanshare.db",
		SQLitePragmasEnabled:        true,
		SQLiteBusyTimeoutMS:         5000,
		SQLiteJournalMode:           "WAL",
		SQLiteSynchronous:           "NORMAL",
		SQLiteForeignKeys:           true,
		SQLiteMaxOpenConns:          1,
		SQLiteMaxIdleConns:          1,
		SQLiteConnMaxIdleSec:        300,
		SQLiteConnMaxLifeSec:        0,
		MigrationLockEnabled:        true,
		MigrationLockTimeoutSeconds: 30,
		ShutdownTimeoutSeconds:      5,
		MaxErrorLogs:                100,
	}
}

// applyEnv overlays environment variables onto cfg. Unset or unparsable values keep
// whatever cfg already holds.
func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFilePath = getEnv("LOG_FILE", cfg.LogFilePath)
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePragmasEnabled = getEnvBool("SQLITE_PRAGMAS_ENABLED", cfg.SQLitePragmasEnabled)
	cfg.SQLiteBusyTimeoutMS = getEnvInt("SQLITE_BUSY_TIMEOUT_MS", cfg.SQLiteBusyTimeoutMS)
	cfg.SQLiteJournalMode = getEnv("SQLITE_JOURNAL_MODE", cfg.SQLiteJournalMode)
	cfg.SQLiteSynchronous = getEnv("SQLITE_SYNCHRONOUS", cfg.SQLiteSynchronous)
	cfg.SQLiteForeignKeys = getEnvBool("SQLITE_FOREIGN_KEYS", cfg.SQLiteForeignKeys)
	cfg.SQLiteMaxOpenConns = getEnvInt("SQLITE_MAX_OPEN_CONNS", cfg.SQLiteMaxOpenConns)
	cfg.SQLiteMaxIdleConns = getEnvInt("SQLITE_MAX_IDLE_CONNS", cfg.SQLiteMaxIdleConns)
	cfg.SQLiteConnMaxIdleSec = getEnvInt("SQLITE_CONN_MAX_IDLE_SECONDS", cfg.SQLiteConnMaxIdleSec)
	cfg.SQLiteConnMaxLifeSec = getEnvInt("SQLITE_CONN_MAX_LIFETIME_SECONDS", cfg.SQLiteConnMaxLifeSec)
	cfg.MigrationLockEnabled = getEnvBool("MIGRATION_LOCK_ENABLED", cfg.MigrationLockEnabled)
	cfg.MigrationLockTimeoutSeconds = getEnvInt("MIGRATION_LOCK_TIMEOUT_SECONDS", cfg.MigrationLockTimeoutSeconds)
	cfg.ShutdownTimeoutSeconds = getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeoutSeconds)
	cfg.MaxErrorLogs = getEnvInt("MAX_ERROR_LOGS", cfg.MaxErrorLogs)
	cfg.APIAllowCIDRs = getEnvList("API_ALLOW_CIDRS", cfg.APIAllowCIDRs)
	cfg.APIDenyCIDRs = getEnvList("API_DENY_CIDRS", cfg.APIDenyCIDRs)
	cfg.ConfigFile = getEnv("CONFIG_FILE", cfg.ConfigFile)
}

// ParseFlags parses command-line flags and rebuilds Settings with the precedence
// defaults < config file < environment < flags.
// --help prints usage and exits; --version prints build info and exits.
func ParseFlags() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "fanshare %s\n\n", version.Info())
		fmt.Fprintf(out, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(out, "Options:")
		flag.PrintDefaults()
		fmt.Fprintln(out, "\nEnvironment variables:")
		fmt.Fprintln(out, "  CONFIG_FILE                       TOML configuration file")
		fmt.Fprintln(out, "  LOG_LEVEL                         Log level (DEBUG, INFO, WARN, ERROR)")
		fmt.Fprintln(out, "  LOG_FILE                          Log file path; empty logs to stderr")
		fmt.Fprintln(out, "  PORT                              HTTP server port (default 8080)")
		fmt.Fprintln(out, "  DATABASE_URL                      SQLite database path (default fanshare.db)")
		fmt.Fprintln(out, "  SQLITE_PRAGMAS_ENABLED            Enable SQLite PRAGMAs (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_BUSY_TIMEOUT_MS            SQLite busy_timeout in milliseconds (default 5000)")
		fmt.Fprintln(out, "  SQLITE_JOURNAL_MODE               SQLite journal_mode (default WAL)")
		fmt.Fprintln(out, "  SQLITE_SYNCHRONOUS                SQLite synchronous (default NORMAL)")
		fmt.Fprintln(out, "  SQLITE_FOREIGN_KEYS               Enable SQLite foreign_keys (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_MAX_OPEN_CONNS             SQLite MaxOpenConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_MAX_IDLE_CONNS             SQLite MaxIdleConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_IDLE_SECONDS      SQLite ConnMaxIdleTime in seconds (default 300)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_LIFETIME_SECONDS  SQLite ConnMaxLifetime in seconds (default 0)")
		fmt.Fprintln(out, "  MIGRATION_LOCK_ENABLED            Hold a file lock while migrating (true/false, default true)")
		fmt.Fprintln(out, "  MIGRATION_LOCK_TIMEOUT_SECONDS    Seconds to wait for the migration lock (default 30)")
		fmt.Fprintln(out, "  SHUTDOWN_TIMEOUT_SECONDS          Graceful HTTP shutdown timeout (default 5)")
		fmt.Fprintln(out, "  MAX_ERROR_LOGS                    In-memory error log capacity (default 100)")
		fmt.Fprintln(out, "  API_ALLOW_CIDRS                   Comma-separated CIDRs or IPs allowed to call the API")
		fmt.Fprintln(out, "  API_DENY_CIDRS                    Comma-separated CIDRs or IPs refused by the API")
	}

	configFile := flag.String("config", Settings.ConfigFile, "TOML configuration file (overrides CONFIG_FILE)")
	flag.Int("port", Settings.Port, "HTTP server port (overrides PORT)")
	flag.String("db", Settings.DatabaseURL, "SQLite database path (overrides DATABASE_URL)")
	flag.Bool("sqlite-pragmas", Settings.SQLitePragmasEnabled, "Enable SQLite PRAGMAs (overrides SQLITE_PRAGMAS_ENABLED)")
	flag.Int("sqlite-busy-timeout-ms", Settings.SQLiteBusyTimeoutMS, "SQLite busy_timeout in milliseconds (overrides SQLITE_BUSY_TIMEOUT_MS)")
	flag.String("sqlite-journal-mode", Settings.SQLiteJournalMode, "SQLite journal_mode (overrides SQLITE_JOURNAL_MODE)")
	flag.String("sqlite-synchronous", Settings.SQLiteSynchronous, "SQLite synchronous (overrides SQLITE_SYNCHRONOUS)")
	flag.Bool("sqlite-foreign-keys", Settings.SQLiteForeignKeys, "Enable SQLite foreign_keys PRAGMA (overrides SQLITE_FOREIGN_KEYS)")
	flag.Int("sqlite-max-open-conns", Settings.SQLiteMaxOpenConns, "SQLite MaxOpenConns (overrides SQLITE_MAX_OPEN_CONNS)")
	flag.Int("sqlite-max-idle-conns", Settings.SQLiteMaxIdleConns, "SQLite MaxIdleConns (overrides SQLITE_MAX_IDLE_CONNS)")
	flag.Int("sqlite-conn-max-idle-seconds", Settings.SQLiteConnMaxIdleSec, "SQLite ConnMaxIdleTime in seconds (overrides SQLITE_CONN_MAX_IDLE_SECONDS)")
	flag.Int("sqlite-conn-max-lifetime-seconds", Settings.SQLiteConnMaxLifeSec, "SQLite ConnMaxLifetime in seconds (overrides SQLITE_CONN_MAX_LIFETIME_SECONDS)")
	flag.String("log-level", Settings.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL)")
	flag.String("log-file", Settings.LogFilePath, "Log file path, empty for stderr (overrides LOG_FILE)")
	flag.Bool("migration-lock", Settings.MigrationLockEnabled, "Hold a file lock while migrating (overrides MIGRATION_LOCK_ENABLED)")
	flag.Int("migration-lock-timeout-seconds", Settings.MigrationLockTimeoutSeconds, "Seconds to wait for the migration lock (overrides MIGRATION_LOCK_TIMEOUT_SECONDS)")
	flag.String("api-allow-cidrs", strings.Join(Settings.APIAllowCIDRs, ","), "Comma-separated CIDRs allowed to call the API (overrides API_ALLOW_CIDRS)")
	flag.String("api-deny-cidrs", strings.Join(Settings.APIDenyCIDRs, ","), "Comma-separated CIDRs refused by the API (overrides API_DENY_CIDRS)")
	migrateOnly := flag.Bool("migrate-only", false, "Apply pending schema migrations and exit")
	schemaStatus := flag.Bool("schema-status", false, "Print the schema version and pending migrations, then exit")

	showHelp := flag.Bool("help", false, "Show help and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		info := version.Info()
		fmt.Printf("fanshare %s\ncommit: %s\nbuilt:  %s\n", info.Version, info.Commit, info.BuildTime)
		os.Exit(0)
	}

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg := Default()
	if *configFile != "" {
		if err := LoadFile(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}
	applyEnv(&cfg)
	cfg.ConfigFile = *configFile

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		if err := applyFlag(&cfg, f); err != nil && flagErr == nil {
			flagErr = err
		}
	})
	if flagErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", flagErr)
		os.Exit(2)
	}

	cfg.MigrateOnly = *migrateOnly
	cfg.SchemaStatus = *schemaStatus

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	Settings = &cfg
}

// applyFlag copies an explicitly set flag onto cfg.
func applyFlag(cfg *Config, f *flag.Flag) error {
	value := f.Value.String()
	var err error
	switch f.Name {
	case "port":
		cfg.Port, err = strconv.Atoi(value)
	case "db":
		cfg.DatabaseURL = value
	case "sqlite-pragmas":
		cfg.SQLitePragmasEnabled, err = strconv.ParseBool(value)
	case "sqlite-busy-timeout-ms":
		cfg.SQLiteBusyTimeoutMS, err = strconv.Atoi(value)
	case "sqlite-journal-mode":
		cfg.SQLiteJournalMode = value
	case "sqlite-synchronous":
		cfg.SQLiteSynchronous = value
	case "sqlite-foreign-keys":
		cfg.SQLiteForeignKeys, err = strconv.ParseBool(value)
	case "sqlite-max-open-conns":
		cfg.SQLiteMaxOpenConns, err = strconv.Atoi(value)
	case "sqlite-max-idle-conns":
		cfg.SQLiteMaxIdleConns, err = strconv.Atoi(value)
	case "sqlite-conn-max-idle-seconds":
		cfg.SQLiteConnMaxIdleSec, err = strconv.Atoi(value)
	case "sqlite-conn-max-lifetime-seconds":
		cfg.SQLiteConnMaxLifeSec, err = strconv.Atoi(value)
	case "log-level":
		cfg.LogLevel = value
	case "log-file":
		cfg.LogFilePath = value
	case "migration-lock":
		cfg.MigrationLockEnabled, err = strconv.ParseBool(value)
	case "migration-lock-timeout-seconds":
		cfg.MigrationLockTimeoutSeconds, err = strconv.Atoi(value)
	case "api-allow-cidrs":
		cfg.APIAllowCIDRs = splitList(value)
	case "api-deny-cidrs":
		cfg.APIDenyCIDRs = splitList(value)
	}
	if err != nil {
		return fmt.Errorf("invalid -%s value %q: %w", f.Name, value, err)
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database path is empty")
	}
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.MigrationLockTimeoutSeconds < 0 {
		return fmt.Errorf("migration lock timeout must not be negative: %d", c.MigrationLockTimeoutSeconds)
	}
	return nil
}

// IsDebug reports whether DEBUG logging is enabled.
func (c *Config) IsDebug() bool {
	return strings.EqualFold(strings.TrimSpace(c.LogLevel), "DEBUG")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitList(value)
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
