// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// Per-invocation options given on the command line live in RunOptions.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Run     RunConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings used by `tickets serve`.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects where run summaries are kept.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// DatabaseURL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: out/runs.db)
	SQLitePath string `env:"STORE_SQLITE_PATH" default:"out/runs.db"`
}

// DSN returns the connection target for the configured driver.
func (c *StoreConfig) DSN() string {
	switch strings.ToLower(c.Driver) {
	case "sqlite", "sqlite3":
		return c.SQLitePath
	case "postgres", "postgresql", "pgx":
		return c.DatabaseURL
	default:
		return ""
	}
}

// RunConfig holds pipeline defaults and limits.
type RunConfig struct {
	// FilePath is the directory relative input names resolve against (default: data)
	FilePath string `env:"TICKETS_FILE_PATH" default:"data"`

	// OutputDir receives the aggregated CSV files (default: out)
	OutputDir string `env:"TICKETS_OUTPUT_DIR" default:"out"`

	// TopN is the default number of top customers to report (default: 5)
	TopN int `env:"TICKETS_TOP_N" default:"5"`

	// MaxFileSize is the maximum size of one input file in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of pipeline runs served at once (default: 5)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"5"`

	// MaxWait is how long a request waits for a free run slot (default: 30s)
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// Timeout bounds a single pipeline run (default: 10m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"10m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// ErrorFile additionally receives warnings and errors. Empty disables it.
	ErrorFile string `env:"LOG_ERROR_FILE" default:"out/logs/errors.log"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
