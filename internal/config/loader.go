package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/munihash/internal/catalog"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup. An empty value counts as
// unset.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct recursively populates struct fields from tagged variables.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, getenv); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := getenv(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = getenv(alt)
			}
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Hash validation
	if c.Hash.Iterations <= 0 {
		errs = append(errs, fmt.Sprintf("HASH_ITERATIONS (%d) must be positive", c.Hash.Iterations))
	}
	if c.Hash.KeyLength <= 0 {
		errs = append(errs, fmt.Sprintf("HASH_KEY_LENGTH (%d) must be positive", c.Hash.KeyLength))
	}
	if c.Hash.Workers < 0 {
		errs = append(errs, "HASH_WORKERS must be non-negative")
	}
	if c.Hash.UnitTimeout < 0 {
		errs = append(errs, "HASH_UNIT_TIMEOUT must be non-negative")
	}
	if c.Hash.ProgressInterval <= 0 {
		errs = append(errs, "PROGRESS_INTERVAL must be positive")
	}

	// Output validation
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, "OUTPUT_DIR is required")
	}
	if c.Output.Delimiter == "" || strings.ContainsAny(c.Output.Delimiter, "\r\n") {
		errs = append(errs, "OUTPUT_DELIMITER must be non-empty and single-line")
	}

	// Catalog validation
	if catalog.NormalizeEncoding(c.Catalog.Encoding) == "" {
		errs = append(errs, fmt.Sprintf("CATALOG_ENCODING (%q) must be one of: latin1, windows-1252, utf-8", c.Catalog.Encoding))
	}
	if utf8.RuneCountInString(c.Catalog.Delimiter) != 1 {
		errs = append(errs, fmt.Sprintf("CATALOG_DELIMITER (%q) must be a single character", c.Catalog.Delimiter))
	}
	if c.Catalog.FetchTimeout <= 0 {
		errs = append(errs, "CATALOG_FETCH_TIMEOUT must be positive")
	}
	if c.Catalog.MaxBytes <= 0 {
		errs = append(errs, "CATALOG_MAX_BYTES must be positive")
	}

	// Run validation
	if c.Run.Interval < 0 {
		errs = append(errs, "RUN_INTERVAL must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "SERVER_RATE_LIMIT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Database validation (only when history is persisted)
	if c.Database.URL != "" {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RequireCatalog reports whether a catalog source is configured. Commands
// that fetch the catalog call it after Load.
func (c *Config) RequireCatalog() error {
	if strings.TrimSpace(c.Catalog.URL) == "" && strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("config validation: one of CATALOG_URL or CATALOG_PATH is required")
	}
	return nil
}

// CatalogDelimiter returns the catalog delimiter as a rune.
func (c *CatalogConfig) CatalogDelimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Database.URL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Hash: {Iterations: %d, KeyLength: %d, Workers: %d}, ",
		c.Hash.Iterations, c.Hash.KeyLength, c.Hash.Workers)
	fmt.Fprintf(&b, "Output: {Dir: %q, Delimiter: %q}, ", c.Output.Dir, c.Output.Delimiter)
	fmt.Fprintf(&b, "Catalog: {URL: %q, Path: %q, Encoding: %q}, ",
		c.Catalog.URL, c.Catalog.Path, c.Catalog.Encoding)
	fmt.Fprintf(&b, "Run: {ContinueOnError: %v, Interval: %s}, ", c.Run.ContinueOnError, c.Run.Interval)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeyList()))
	fmt.Fprintf(&b, "Database: {URL: %q, MaxConns: %d}, ", dbURL, c.Database.MaxConns)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
