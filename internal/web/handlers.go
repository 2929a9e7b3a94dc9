package web

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/munihash/internal/core"
	"github.com/JonMunkholm/munihash/internal/logging"
)

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string                `json:"status"`
	Runs    core.RunLimiterStatus `json:"runs"`
	Current *core.RunStatus       `json:"current,omitempty"`
}

// StartRunResponse is returned when a run is accepted.
type StartRunResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// handleHealth reports liveness and the run slot state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Runs:    s.service.Limiter().Status(),
		Current: s.service.Current(),
	})
}

// handleListRegions lists the regions with artifacts on disk.
func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.service.Regions()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

// handleRegionJSON returns the region's results as JSON.
func (s *Server) handleRegionJSON(w http.ResponseWriter, r *http.Request) {
	region := regionParam(r)

	results, err := s.service.RegionResults(region)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleRegionTable serves the region's delimited table file.
func (s *Server) handleRegionTable(w http.ResponseWriter, r *http.Request) {
	region := regionParam(r)

	arts, err := s.service.RegionArtifacts(region)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(arts.Table)+"\"")
	http.ServeFile(w, r, arts.Table)
}

// handleStartRun starts a background run. Returns 202 with the run id, or
// 429 when a run is already active.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	ctx := core.ContextWithTrigger(r.Context(), core.TriggerHTTP)

	runID, err := s.service.Start(ctx)
	if err != nil {
		if errors.Is(err, core.ErrRunInProgress) {
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("run accepted", "run_id", runID)

	resp := StartRunResponse{RunID: runID, StatusURL: "/api/runs/" + runID}
	w.Header().Set("Location", resp.StatusURL)
	writeJSON(w, http.StatusAccepted, resp)
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleCurrentRun returns the run in progress, or 204 when idle.
func (s *Server) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	cur := s.service.Current()
	if cur == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// handleGetRun returns one run with its region outcomes.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// regionParam returns the normalized {uf} URL parameter.
func regionParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "uf")))
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
