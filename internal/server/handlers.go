package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/registry"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRuns serves GET /api/runs?status=&limit=&offset=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := registry.RunFilter{
		Limit:  limitParam(r),
		Offset: intParam(r, "offset", 0),
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		switch registry.RunStatus(status) {
		case registry.RunStatusRunning, registry.RunStatusComplete, registry.RunStatusFailed:
			filter.Status = registry.RunStatus(status)
		default:
			writeError(w, http.StatusBadRequest, "unknown status "+status)
			return
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.serverError(w, err, "list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun serves GET /api/runs/{runID}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if eris.Is(err, registry.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.serverError(w, err, "get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleListResults serves GET /api/runs/{runID}/results?limit=&offset=.
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		if eris.Is(err, registry.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.serverError(w, err, "get run")
		return
	}

	limit := limitParam(r)
	offset := intParam(r, "offset", 0)
	results, err := s.store.ListResults(r.Context(), runID, limit, offset)
	if err != nil {
		s.serverError(w, err, "list results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"limit":   limit,
		"offset":  offset,
		"results": results,
	})
}

// handleSearchDistricts serves GET /api/districts?q=&state=&limit=.
func (s *Server) handleSearchDistricts(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	state := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("state")))

	districts, err := s.store.SearchDistricts(r.Context(), state, q, limitParam(r))
	if err != nil {
		s.serverError(w, err, "search districts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"districts": districts})
}

// handleCoverage serves GET /api/coverage.
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	cov, err := s.store.Coverage(r.Context())
	if err != nil {
		s.serverError(w, err, "coverage")
		return
	}
	writeJSON(w, http.StatusOK, cov)
}

func (s *Server) serverError(w http.ResponseWriter, err error, action string) {
	s.log.Error("handler failed", zap.String("action", action), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func limitParam(r *http.Request) int {
	limit := intParam(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
