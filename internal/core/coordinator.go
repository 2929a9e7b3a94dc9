package core

// coordinator.go fans one region's records out to a bounded worker pool.
//
// Every unit writes its result into the slot matching its input position, so
// the returned slice keeps the batch order no matter which unit finishes
// first. The first failing unit cancels the rest and fails the whole batch.

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/munihash/internal/kdf"
	"github.com/JonMunkholm/munihash/internal/schema"
)

// DefaultProgressInterval is how many completed units trigger a report.
const DefaultProgressInterval = 50

// Progress is a snapshot of one batch.
type Progress struct {
	Region string `json:"region"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
}

// ProgressFunc receives progress reports. Calls are serialized.
type ProgressFunc func(Progress)

// HashFunc computes the hash of one record.
type HashFunc func(schema.Record) (string, error)

// CoordinatorConfig configures a Coordinator. Zero values pick defaults.
type CoordinatorConfig struct {
	Params kdf.Params

	// Workers bounds concurrent units; <= 0 uses runtime.NumCPU().
	Workers int

	// UnitTimeout fails a unit that runs longer; 0 disables.
	UnitTimeout time.Duration

	// ProgressInterval defaults to DefaultProgressInterval.
	ProgressInterval int
	OnProgress       ProgressFunc

	// Hash overrides Params.HashHex.
	Hash HashFunc
}

// Coordinator derives the hashes of a region batch concurrently.
type Coordinator struct {
	params      kdf.Params
	workers     int
	unitTimeout time.Duration
	interval    int
	onProgress  ProgressFunc
	hash        HashFunc
}

// NewCoordinator validates the derivation parameters and returns a
// Coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	hash := cfg.Hash
	if hash == nil {
		hash = cfg.Params.HashHex
	}

	return &Coordinator{
		params:      cfg.Params,
		workers:     workers,
		unitTimeout: cfg.UnitTimeout,
		interval:    interval,
		onProgress:  cfg.OnProgress,
		hash:        hash,
	}, nil
}

// Params returns the derivation parameters.
func (c *Coordinator) Params() kdf.Params {
	return c.params
}

// Workers returns the worker pool size.
func (c *Coordinator) Workers() int {
	return c.workers
}

// DeriveBatch returns one result per record, in batch order. An empty batch
// returns an empty, non-nil slice.
func (c *Coordinator) DeriveBatch(ctx context.Context, region string, batch schema.Batch) ([]schema.Result, error) {
	results := make([]schema.Result, len(batch))
	if len(batch) == 0 {
		return results, nil
	}

	tracker := &progressTracker{
		region: region,
		total:  len(batch),
		every:  c.interval,
		report: c.onProgress,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, rec := range batch {
		g.Go(func() error {
			hash, err := c.runUnit(gctx, rec)
			if err != nil {
				return &DerivationError{Region: region, Index: i, IBGE: rec.IBGE, Err: err}
			}
			results[i] = schema.Result{Record: rec, Hash: hash}
			tracker.add()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: region %s: %w", ErrDerivation, region, err)
	}

	return results, nil
}

// runUnit computes one hash, bounded by the unit timeout when set. A unit
// that overruns keeps computing in the background; its result is dropped.
func (c *Coordinator) runUnit(ctx context.Context, rec schema.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.unitTimeout <= 0 {
		return c.hash(rec)
	}

	ctx, cancel := context.WithTimeout(ctx, c.unitTimeout)
	defer cancel()

	type outcome struct {
		hash string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		h, err := c.hash(rec)
		done <- outcome{hash: h, err: err}
	}()

	select {
	case o := <-done:
		return o.hash, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("unit timeout after %s: %w", c.unitTimeout, ctx.Err())
		}
		return "", ctx.Err()
	}
}

// progressTracker counts completed units and reports every interval and on
// the last unit. Reports happen under the lock, so Done never goes backwards.
type progressTracker struct {
	mu     sync.Mutex
	region string
	done   int
	total  int
	every  int
	report ProgressFunc
}

func (p *progressTracker) add() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.report == nil {
		return
	}
	if p.done%p.every == 0 || p.done == p.total {
		p.report(Progress{Region: p.region, Done: p.done, Total: p.total})
	}
}
