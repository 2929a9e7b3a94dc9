// Package history records the lifecycle of pipeline runs: when they started,
// how each region went and how they finished.
//
// Recording is auxiliary. A Recorder failure is logged by the caller and
// never fails a run.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Status is the state of a run or of one region within it.
type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// RegionOutcome is the result of processing one region.
type RegionOutcome struct {
	Region   string        `json:"region"`
	Status   Status        `json:"status"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Run is one pipeline execution.
type Run struct {
	ID         string          `json:"id"`
	Trigger    string          `json:"trigger"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	Regions    []RegionOutcome `json:"regions"`
}

// Recorder persists run history.
type Recorder interface {
	StartRun(ctx context.Context, id, trigger string, startedAt time.Time) error
	RecordRegion(ctx context.Context, runID string, outcome RegionOutcome) error
	FinishRun(ctx context.Context, runID string, status Status, errMsg string, finishedAt time.Time) error
	Get(ctx context.Context, runID string) (Run, error)
	Recent(ctx context.Context, limit int) ([]Run, error)
}
