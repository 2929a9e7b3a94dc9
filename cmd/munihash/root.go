package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/munihash/internal/config"
	"github.com/JonMunkholm/munihash/internal/history"
	"github.com/JonMunkholm/munihash/internal/kdf"
	"github.com/JonMunkholm/munihash/internal/logging"
)

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitConfig   = 2
	exitMismatch = 3
)

var (
	envFile  string
	logLevel string

	// cfg is loaded by PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

var errConfig = errors.New("configuration error")

var rootCmd = &cobra.Command{
	Use:   "munihash",
	Short: "Derive per-region municipality hashes",
	Long: `munihash fetches the municipality catalog, groups it by region and
writes, for every region, a delimited table and a JSON document in which each
record carries a salted PBKDF2-HMAC-SHA256 hash.

Configuration comes from the environment, optionally loaded from a .env file.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load (overrides existing variables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads the env file and configuration, then sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	// Overload overwrites existing env vars
	envLoaded := false
	if envFile != "" {
		if err := godotenv.Overload(envFile); err == nil {
			envLoaded = true
		} else if cmd.Flags().Changed("env-file") {
			return fmt.Errorf("%w: load %s: %v", errConfig, envFile, err)
		}
	}

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	cfg = loaded

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "env_file_loaded", envLoaded, "config", cfg.String())

	return nil
}

// openRecorder returns the history recorder: PostgreSQL when DATABASE_URL is
// set, memory otherwise. The returned func releases its resources.
func openRecorder(ctx context.Context, cfg *config.Config) (history.Recorder, func(), error) {
	if cfg.Database.URL == "" {
		return history.NewMemoryStore(history.DefaultMemoryCapacity), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse database URL: %v", errConfig, err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := history.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	return store, pool.Close, nil
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var mismatch *mismatchError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig), errors.Is(err, kdf.ErrInvalidParameter):
		return exitConfig
	case errors.As(err, &mismatch):
		return exitMismatch
	default:
		return exitFailure
	}
}
