package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/history"
	"github.com/JonMunkholm/munihash/internal/schema"
)

// DefaultHistoryLimit is how many runs History returns when limit <= 0.
const DefaultHistoryLimit = 20

// Regions returns the regions with complete artifacts on disk.
func (s *Service) Regions() ([]string, error) {
	return s.emitter.List()
}

// RegionArtifacts returns the artifact paths of a region that has been
// emitted.
func (s *Service) RegionArtifacts(region string) (emit.Artifacts, error) {
	region = strings.ToUpper(strings.TrimSpace(region))

	arts, err := s.emitter.Paths(region)
	if err != nil {
		return emit.Artifacts{}, fmt.Errorf("%w: %v", ErrUnknownRegion, err)
	}
	for _, p := range []string{arts.Table, arts.JSON} {
		if _, err := os.Stat(p); err != nil {
			return emit.Artifacts{}, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
		}
	}
	return arts, nil
}

// RegionResults reads back a region's JSON artifact.
func (s *Service) RegionResults(region string) ([]schema.Result, error) {
	arts, err := s.RegionArtifacts(region)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(arts.JSON)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", arts.JSON, err)
	}
	defer f.Close()

	results, err := emit.ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", arts.JSON, err)
	}
	return results, nil
}

// History returns the most recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.recorder.Recent(ctx, limit)
}

// GetRun returns one run by id.
func (s *Service) GetRun(ctx context.Context, runID string) (history.Run, error) {
	return s.recorder.Get(ctx, runID)
}
