package history

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMemoryCapacity is how many runs a MemoryStore keeps.
const DefaultMemoryCapacity = 100

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	order    []string
	capacity int
}

// NewMemoryStore creates a store that keeps at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		runs:     make(map[string]*Run),
		capacity: capacity,
	}
}

var _ Recorder = (*MemoryStore)(nil)

func (m *MemoryStore) StartRun(_ context.Context, id, trigger string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[id]; exists {
		return fmt.Errorf("run %s already started", id)
	}
	m.runs[id] = &Run{ID: id, Trigger: trigger, Status: StatusRunning, StartedAt: startedAt}
	m.order = append(m.order, id)

	for len(m.order) > m.capacity {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryStore) RecordRegion(_ context.Context, runID string, outcome RegionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.Regions = append(run.Regions, outcome)
	return nil
}

func (m *MemoryStore) FinishRun(_ context.Context, runID string, status Status, errMsg string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &finishedAt
	return nil
}

func (m *MemoryStore) Get(_ context.Context, runID string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return copyRun(run), nil
}

// Recent returns up to limit runs, most recently started first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, copyRun(m.runs[m.order[i]]))
	}
	return out, nil
}

func copyRun(r *Run) Run {
	c := *r
	c.Regions = make([]RegionOutcome, len(r.Regions))
	copy(c.Regions, r.Regions)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
