package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used by PGStore.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS munihash_runs (
	id          UUID PRIMARY KEY,
	trigger     TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS munihash_run_regions (
	run_id      UUID NOT NULL REFERENCES munihash_runs(id) ON DELETE CASCADE,
	region      TEXT NOT NULL,
	status      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, region)
);

CREATE INDEX IF NOT EXISTS munihash_runs_started_at_idx ON munihash_runs (started_at DESC);
`

// PGStore records run history in PostgreSQL.
type PGStore struct {
	db DBTX
}

// NewPGStore creates a store over db. Call EnsureSchema once before use.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

var _ Recorder = (*PGStore)(nil)

// EnsureSchema creates the history tables if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (s *PGStore) StartRun(ctx context.Context, id, trigger string, startedAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO munihash_runs (id, trigger, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, trigger, string(StatusRunning), startedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

func (s *PGStore) RecordRegion(ctx context.Context, runID string, o RegionOutcome) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO munihash_run_regions (run_id, region, status, records, duration_ms, error)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, region) DO UPDATE
		 SET status = EXCLUDED.status, records = EXCLUDED.records,
		     duration_ms = EXCLUDED.duration_ms, error = EXCLUDED.error`,
		runID, o.Region, string(o.Status), o.Records, o.Duration.Milliseconds(), o.Error,
	)
	if err != nil {
		return fmt.Errorf("insert region %s for run %s: %w", o.Region, runID, err)
	}
	return nil
}

func (s *PGStore) FinishRun(ctx context.Context, runID string, status Status, errMsg string, finishedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE munihash_runs SET status = $2, error = $3, finished_at = $4 WHERE id = $1`,
		runID, string(status), errMsg, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id::text, trigger, status, started_at, finished_at, error
		 FROM munihash_runs WHERE id = $1`, runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	regions, err := s.regions(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	run.Regions = regions
	return run, nil
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultMemoryCapacity
	}
	rows, err := s.db.Query(ctx,
		`SELECT id::text, trigger, status, started_at, finished_at, error
		 FROM munihash_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Regions = []RegionOutcome{}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *PGStore) regions(ctx context.Context, runID string) ([]RegionOutcome, error) {
	rows, err := s.db.Query(ctx,
		`SELECT region, status, records, duration_ms, error
		 FROM munihash_run_regions WHERE run_id = $1 ORDER BY recorded_at, region`, runID)
	if err != nil {
		return nil, fmt.Errorf("list regions of run %s: %w", runID, err)
	}
	defer rows.Close()

	out := []RegionOutcome{}
	for rows.Next() {
		var (
			o          RegionOutcome
			status     string
			durationMS int64
		)
		if err := rows.Scan(&o.Region, &status, &o.Records, &durationMS, &o.Error); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		o.Status = Status(status)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (Run, error) {
	var (
		run      Run
		status   string
		finished pgtype.Timestamptz
	)
	if err := row.Scan(&run.ID, &run.Trigger, &status, &run.StartedAt, &finished, &run.Error); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
