package core

// scheduler.go re-runs the pipeline periodically in serve mode.
//
// Scheduled runs wait for the run limiter instead of failing fast, so an
// interactive run that holds the slot only delays the tick. A failed run is
// logged and the scheduler keeps going.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StartScheduler runs the pipeline immediately and then every interval until
// ctx is cancelled. It blocks; call it in its own goroutine.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("run scheduler started", "interval", interval.String())

	s.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("run scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

// runScheduled performs one scheduled run.
func (s *Service) runScheduled(ctx context.Context) {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			slog.Warn("scheduled run skipped", "reason", "another run is still active")
		}
		return
	}
	defer s.limiter.Release()

	start := time.Now()
	report, err := s.execute(ctx, uuid.New().String(), TriggerSchedule)
	if err != nil {
		slog.Error("scheduled run failed",
			"run_id", report.RunID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	}
}
