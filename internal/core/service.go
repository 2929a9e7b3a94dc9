package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/munihash/internal/catalog"
	"github.com/JonMunkholm/munihash/internal/config"
	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/history"
	"github.com/JonMunkholm/munihash/internal/kdf"
	"github.com/JonMunkholm/munihash/internal/logging"
	"github.com/JonMunkholm/munihash/internal/schema"
)

// RecorderTimeout bounds each history write.
var RecorderTimeout = 5 * time.Second

// Service runs the pipeline: fetch the catalog, group it by region, derive
// every region's hashes and emit its artifacts.
type Service struct {
	cfg      *config.Config
	source   catalog.Source
	coord    *Coordinator
	emitter  *emit.Emitter
	recorder history.Recorder
	limiter  *RunLimiter

	// baseCtx parents runs started in the background; Shutdown cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	current *RunStatus
}

// RunStatus describes the run in progress.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"started_at"`
	Progress  Progress  `json:"progress"`
}

// RegionReport is the outcome of one region.
type RegionReport struct {
	Region    string          `json:"region"`
	Status    history.Status  `json:"status"`
	Records   int             `json:"records"`
	Duration  time.Duration   `json:"duration_ns"`
	Artifacts *emit.Artifacts `json:"artifacts,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RunReport summarizes a run.
type RunReport struct {
	RunID     string         `json:"run_id"`
	Trigger   string         `json:"trigger"`
	Status    history.Status `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Source    string         `json:"source"`
	Rejected  int            `json:"rejected"`
	Regions   []RegionReport `json:"regions"`
	Error     string         `json:"error,omitempty"`
}

// NewService validates the derivation settings and wires the pipeline.
// A nil recorder keeps history in memory.
func NewService(cfg *config.Config, recorder history.Recorder) (*Service, error) {
	if recorder == nil {
		recorder = history.NewMemoryStore(history.DefaultMemoryCapacity)
	}

	s := &Service{
		cfg: cfg,
		source: catalog.Source{
			URL:      cfg.Catalog.URL,
			Path:     cfg.Catalog.Path,
			Timeout:  cfg.Catalog.FetchTimeout,
			MaxBytes: cfg.Catalog.MaxBytes,
		},
		recorder: recorder,
		limiter:  NewRunLimiter(DefaultMaxConcurrentRuns, DefaultMaxWaitTime),
	}

	coord, err := NewCoordinator(CoordinatorConfig{
		Params: kdf.Params{
			Iterations: cfg.Hash.Iterations,
			KeyLength:  cfg.Hash.KeyLength,
		},
		Workers:          cfg.Hash.Workers,
		UnitTimeout:      cfg.Hash.UnitTimeout,
		ProgressInterval: cfg.Hash.ProgressInterval,
		OnProgress:       s.onProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}
	s.coord = coord

	emitter, err := emit.New(emit.Options{
		Dir:       cfg.Output.Dir,
		Delimiter: cfg.Output.Delimiter,
		Indent:    cfg.Output.Indent(),
	})
	if err != nil {
		return nil, fmt.Errorf("create emitter: %w", err)
	}
	s.emitter = emitter

	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	return s, nil
}

// Run executes one run synchronously. It fails with ErrRunInProgress when
// another run is active.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	if !s.limiter.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer s.limiter.Release()

	return s.execute(ctx, uuid.New().String(), GetTriggerFromContext(ctx))
}

// Start begins a run in the background and returns its id. The run outlives
// ctx and stops only on Shutdown.
func (s *Service) Start(ctx context.Context) (string, error) {
	if !s.limiter.TryAcquire() {
		return "", ErrRunInProgress
	}

	runID := uuid.New().String()
	trigger := GetTriggerFromContext(ctx)

	go func() {
		defer s.limiter.Release()
		if _, err := s.execute(s.baseCtx, runID, trigger); err != nil {
			slog.Error("background run failed", "run_id", runID, "error", err)
		}
	}()

	return runID, nil
}

// Shutdown cancels background runs and waits for them to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.limiter.WaitForDrain(ctx)
}

// Current returns the run in progress, or nil.
func (s *Service) Current() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	cur := *s.current
	return &cur
}

// Limiter exposes the run limiter for status reporting.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Params returns the derivation parameters in use.
func (s *Service) Params() kdf.Params {
	return s.coord.Params()
}

func (s *Service) execute(ctx context.Context, runID, trigger string) (*RunReport, error) {
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	started := time.Now()
	report := &RunReport{
		RunID:     runID,
		Trigger:   trigger,
		Status:    history.StatusRunning,
		StartedAt: started,
		Source:    s.source.Describe(),
		Regions:   []RegionReport{},
	}

	s.setCurrent(&RunStatus{RunID: runID, Trigger: trigger, StartedAt: started})
	defer s.setCurrent(nil)

	s.record(ctx, "start run", func(rctx context.Context) error {
		return s.recorder.StartRun(rctx, runID, trigger, started)
	})

	logger.Info("run started",
		"trigger", trigger,
		"source", report.Source,
		"workers", s.coord.Workers(),
		"iterations", s.coord.Params().Iterations,
	)

	err := s.process(ctx, report)

	report.Duration = time.Since(started)
	report.Status = history.StatusOK
	if err != nil {
		report.Status = history.StatusFailed
		report.Error = err.Error()
	}

	s.record(ctx, "finish run", func(rctx context.Context) error {
		return s.recorder.FinishRun(rctx, runID, report.Status, report.Error, time.Now())
	})

	if err != nil {
		logger.Error("run failed",
			"regions", len(report.Regions),
			"duration_ms", report.Duration.Milliseconds(),
			"error", err,
		)
		return report, err
	}

	logger.Info("run completed",
		"regions", len(report.Regions),
		"rejected", report.Rejected,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// process runs every step after StartRun. Regions already emitted stay on
// disk when a later one fails.
func (s *Service) process(ctx context.Context, report *RunReport) error {
	logger := logging.FromContext(ctx)

	groups, rejected, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}
	report.Rejected = rejected
	if groups.Len() == 0 {
		return fmt.Errorf("%w: no records after grouping", ErrEmptyCatalog)
	}

	if err := os.MkdirAll(s.emitter.Dir(), 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", emit.ErrWrite, s.emitter.Dir(), err)
	}

	var errs []error
	for _, region := range groups.Regions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		rr, err := s.processRegion(ctx, region, groups.Batches[region])
		report.Regions = append(report.Regions, rr)

		s.record(ctx, "record region", func(rctx context.Context) error {
			return s.recorder.RecordRegion(rctx, report.RunID, history.RegionOutcome{
				Region:   rr.Region,
				Status:   rr.Status,
				Records:  rr.Records,
				Duration: rr.Duration,
				Error:    rr.Error,
			})
		})

		if err != nil {
			regionErr := &RegionError{Region: region, Err: err}
			if !s.cfg.Run.ContinueOnError {
				return regionErr
			}
			logger.Warn("region failed, continuing", "region", region, "error", err)
			errs = append(errs, regionErr)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) processRegion(ctx context.Context, region string, batch schema.Batch) (RegionReport, error) {
	logger := logging.WithFields(ctx, "region", region)
	start := time.Now()
	rr := RegionReport{Region: region, Records: len(batch)}

	s.mu.Lock()
	if s.current != nil {
		s.current.Progress = Progress{Region: region, Total: len(batch)}
	}
	s.mu.Unlock()

	logger.Info("deriving region", "total", len(batch))

	results, err := s.coord.DeriveBatch(ctx, region, batch)
	if err == nil {
		var arts emit.Artifacts
		arts, err = s.emitter.Emit(ctx, region, results)
		if err == nil {
			rr.Artifacts = &arts
		}
	}

	rr.Duration = time.Since(start)
	if err != nil {
		rr.Status = history.StatusFailed
		rr.Error = err.Error()
		logger.Error("region failed", "duration_ms", rr.Duration.Milliseconds(), "error", err)
		return rr, err
	}

	rr.Status = history.StatusOK
	logger.Info("region emitted",
		"records", len(results),
		"table", rr.Artifacts.Table,
		"json", rr.Artifacts.JSON,
		"duration_ms", rr.Duration.Milliseconds(),
	)
	return rr, nil
}

// loadCatalog fetches, decodes, parses and groups the catalog. It returns
// the number of rejected rows.
func (s *Service) loadCatalog(ctx context.Context) (catalog.Groups, int, error) {
	logger := logging.FromContext(ctx)

	raw, err := s.source.Fetch(ctx)
	if err != nil {
		return catalog.Groups{}, 0, err
	}

	decoded, err := catalog.NewDecoder(bytes.NewReader(raw), s.cfg.Catalog.Encoding)
	if err != nil {
		return catalog.Groups{}, 0, fmt.Errorf("%w: %v", catalog.ErrParse, err)
	}

	parsed, err := catalog.Parse(decoded, catalog.Options{Delimiter: s.cfg.Catalog.CatalogDelimiter()})
	if err != nil {
		return catalog.Groups{}, 0, err
	}

	for _, rej := range parsed.Rejected {
		logger.Debug("row rejected", "line", rej.Line, "reason", rej.Reason)
	}
	if len(parsed.Rejected) > 0 {
		logger.Warn("catalog rows rejected", "rejected", len(parsed.Rejected))
	}

	groups := catalog.Group(parsed.Records, s.cfg.Catalog.ExcludedRegion)
	logger.Info("catalog loaded",
		"bytes", len(raw),
		"records", len(parsed.Records),
		"regions", len(groups.Regions),
		"header_line", parsed.HeaderLine,
	)

	return groups, len(parsed.Rejected), nil
}

func (s *Service) onProgress(p Progress) {
	s.mu.Lock()
	runID := ""
	if s.current != nil {
		s.current.Progress = p
		runID = s.current.RunID
	}
	s.mu.Unlock()

	slog.Info("progress",
		"run_id", runID,
		"region", p.Region,
		"done", p.Done,
		"total", p.Total,
	)
}

func (s *Service) setCurrent(st *RunStatus) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
}

// record writes to the history recorder. Failures are logged and never fail
// the run.
func (s *Service) record(ctx context.Context, op string, fn func(context.Context) error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecorderTimeout)
	defer cancel()

	if err := fn(rctx); err != nil {
		logging.FromContext(ctx).Warn("history write failed", "op", op, "error", err)
	}
}
