// Package config provides centralized configuration management for munihash.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// Values are read once per process; nothing is reloaded mid-run.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Hash     HashConfig
	Output   OutputConfig
	Catalog  CatalogConfig
	Run      RunConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// HashConfig holds key-derivation settings.
type HashConfig struct {
	// Iterations is the PBKDF2 iteration count (default: 10000)
	Iterations int `env:"HASH_ITERATIONS" default:"10000"`

	// KeyLength is the derived hash length in bytes (default: 32)
	KeyLength int `env:"HASH_KEY_LENGTH" default:"32"`

	// Workers bounds concurrent derivations; 0 uses every CPU (default: 0)
	Workers int `env:"HASH_WORKERS" default:"0"`

	// UnitTimeout fails a derivation that runs longer; 0 disables (default: 0s)
	UnitTimeout time.Duration `env:"HASH_UNIT_TIMEOUT" default:"0s"`

	// ProgressInterval is how many completed derivations trigger a progress report (default: 50)
	ProgressInterval int `env:"PROGRESS_INTERVAL" default:"50"`
}

// OutputConfig holds artifact settings.
type OutputConfig struct {
	// Dir is where region artifacts are written (default: output)
	Dir string `env:"OUTPUT_DIR" default:"output"`

	// Delimiter joins table cells (default: ;)
	Delimiter string `env:"OUTPUT_DELIMITER" default:";"`

	// JSONIndent is the indent unit of the JSON artifact; "tab" means a tab (default: 2 spaces)
	JSONIndent string `env:"OUTPUT_JSON_INDENT" default:"2"`
}

// CatalogConfig holds settings for acquiring and parsing the raw catalog.
type CatalogConfig struct {
	// URL is the remote catalog location
	URL string `env:"CATALOG_URL"`

	// Path is a local catalog file; takes precedence over URL
	Path string `env:"CATALOG_PATH"`

	// Encoding is the catalog charset: latin1, windows-1252 or utf-8 (default: latin1)
	Encoding string `env:"CATALOG_ENCODING" default:"latin1"`

	// Delimiter separates catalog cells (default: ;)
	Delimiter string `env:"CATALOG_DELIMITER" default:";"`

	// ExcludedRegion is dropped before grouping (default: EX)
	ExcludedRegion string `env:"CATALOG_EXCLUDED_REGION" default:"EX"`

	// FetchTimeout bounds the catalog download (default: 60s)
	FetchTimeout time.Duration `env:"CATALOG_FETCH_TIMEOUT" default:"60s"`

	// MaxBytes is the largest catalog accepted (default: 32MB)
	MaxBytes int64 `env:"CATALOG_MAX_BYTES" default:"33554432"`
}

// RunConfig holds pipeline failure policy and scheduling.
type RunConfig struct {
	// ContinueOnError keeps processing later regions after one fails (default: false)
	ContinueOnError bool `env:"RUN_CONTINUE_ON_ERROR" default:"false"`

	// Interval re-runs the pipeline periodically in serve mode; 0 disables (default: 0s)
	Interval time.Duration `env:"RUN_INTERVAL" default:"0s"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// RateLimit is the number of requests allowed per minute per IP (default: 100)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`

	// APIKeys is a comma-separated list of keys accepted for POST /api/runs;
	// empty leaves the endpoint open
	APIKeys string `env:"SERVER_API_KEYS"`
}

// DatabaseConfig holds the optional run-history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty keeps history in memory
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// APIKeyList returns the configured API keys, trimmed, without empties.
func (c *ServerConfig) APIKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Indent returns the JSON indent string. A number means that many spaces.
func (c *OutputConfig) Indent() string {
	switch c.JSONIndent {
	case "tab", "\t":
		return "\t"
	}
	if n, err := strconv.Atoi(c.JSONIndent); err == nil && n > 0 {
		return strings.Repeat(" ", n)
	}
	return c.JSONIndent
}
