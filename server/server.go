// Package server exposes a read-only status endpoint for dashboards watching the ingestion run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/denius89/news-ai-bot-sub002/pkg/cache"
	"github.com/denius89/news-ai-bot-sub002/pkg/progress"
)

//go:generate moq -out mocks/progress.go -pkg mocks -skip-ensure -fmt goimports . ProgressViewer
//go:generate moq -out mocks/stats.go -pkg mocks -skip-ensure -fmt goimports . StatsProvider

// Server represents HTTP server instance
type Server struct {
	cfg      Config
	progress ProgressViewer
	stats    StatsProvider
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Config holds listen address and request timeout
type Config struct {
	Listen  string
	Timeout time.Duration
}

// ProgressViewer returns the derived view of the current run
type ProgressViewer interface {
	View(ctx context.Context, topN int) (progress.View, error)
}

// StatsProvider reports runtime counters of the pipeline
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Stats is the body of the stats endpoint
type Stats struct {
	Cache          cache.Stats `json:"cache"`
	BlockedDomains []string    `json:"blocked_domains"`
	StoredNews     int         `json:"stored_news"`
	ScoreCacheSize int         `json:"score_cache_size"`
	DedupIndexSize int         `json:"dedup_index_size"`
}

const defaultTopSources = 10

// New initializes a new server instance. stats may be nil.
func New(cfg Config, pv ProgressViewer, stats StatsProvider, version string, debug bool) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		progress: pv,
		stats:    stats,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	lgr.Printf("[INFO] starting status server on %s", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}
	srv := s.httpServer
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Handler returns the router, used by tests and embedding callers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("newsbot", "denius89", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024))
}

func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /progress", s.progressHandler)
		r.HandleFunc("GET /stats", s.statsHandler)
	})
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
