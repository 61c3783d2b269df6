package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"
)

var (
	errInvalidTop = errors.New("top must be a non-negative integer")
	errNoStats    = errors.New("stats are not available")
)

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// progressHandler returns the derived progress view, ?top=N limits top sources
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	topN := defaultTopSources
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			RenderError(w, r, errInvalidTop, http.StatusBadRequest)
			return
		}
		topN = min(n, 100)
	}

	view, err := s.progress.View(r.Context(), topN)
	if err != nil {
		lgr.Printf("[ERROR] failed to load progress: %v", err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, view)
}

// statsHandler returns cache, breaker and storage counters
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		RenderError(w, r, errNoStats, http.StatusNotFound)
		return
	}
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		lgr.Printf("[ERROR] failed to collect stats: %v", err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, st)
}
