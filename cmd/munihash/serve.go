package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/munihash/internal/core"
	"github.com/JonMunkholm/munihash/internal/web"
)

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to serve on (overrides SERVER_PORT)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve regions, artifacts and runs over HTTP",
	Long: `Starts the HTTP API. Runs are triggered with POST /api/runs, and
periodically when RUN_INTERVAL is set.

Example:
  munihash serve            # Listen on SERVER_HOST:SERVER_PORT
  munihash serve -p 9090    # Listen on port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.RequireCatalog(); err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	ctx := cmd.Context()

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	service, err := core.NewService(cfg, recorder)
	if err != nil {
		return err
	}

	server := web.NewServer(service, cfg.Server)

	// Background jobs stop with the command context
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	if cfg.Run.Interval > 0 {
		go service.StartScheduler(core.ContextWithTrigger(jobCtx, core.TriggerSchedule), cfg.Run.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Wait for active runs to stop (with timeout)
	if active := service.Limiter().ActiveCount(); active > 0 {
		slog.Info("waiting for runs to stop", "active", active)
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Warn("runs did not stop in time", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
