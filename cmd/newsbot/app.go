package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/denius89/news-ai-bot-sub002/pkg/breaker"
	"github.com/denius89/news-ai-bot-sub002/pkg/cache"
	"github.com/denius89/news-ai-bot-sub002/pkg/config"
	"github.com/denius89/news-ai-bot-sub002/pkg/content"
	"github.com/denius89/news-ai-bot-sub002/pkg/dedup"
	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/events"
	"github.com/denius89/news-ai-bot-sub002/pkg/feed"
	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
	"github.com/denius89/news-ai-bot-sub002/pkg/llm"
	"github.com/denius89/news-ai-bot-sub002/pkg/progress"
	"github.com/denius89/news-ai-bot-sub002/pkg/quality"
	"github.com/denius89/news-ai-bot-sub002/pkg/ratelimit"
	"github.com/denius89/news-ai-bot-sub002/pkg/repository"
	"github.com/denius89/news-ai-bot-sub002/pkg/scheduler"
	"github.com/denius89/news-ai-bot-sub002/pkg/scoring"
	"github.com/denius89/news-ai-bot-sub002/server"
)

// app holds the wired pipeline
type app struct {
	cfg       *config.Config
	filter    config.Filter
	sources   []domain.Source
	cache     *cache.SmartCache
	breaker   *breaker.Breaker
	repos     *repository.Repositories
	dedup     *dedup.Deduplicator
	scorer    *scoring.Cached
	tracker   *progress.Tracker
	orch      *scheduler.Orchestrator
	collector *events.Collector
	maint     *sourceMaintenance
}

func newApp(ctx context.Context, opts Opts, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, filter: config.Filter{Categories: opts.Categories, Subcategories: opts.Subcategories}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cat, err := config.LoadCatalogue(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	if a.sources = cat.Sources(a.filter); len(a.sources) == 0 {
		return nil, errors.New("no sources match the filter")
	}
	lgr.Printf("[INFO] loaded %d sources from %s", len(a.sources), cfg.Sources)

	if err = ensureDir(dsnPath(cfg.Database.DSN)); err != nil {
		return nil, err
	}
	a.repos, err = repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a.cache, err = cache.New(ctx, cache.Options{
		Dir: cfg.Cache.Dir, MaxSize: cfg.Cache.MaxSize, FreshFor: cfg.Cache.FreshFor, RetainFor: cfg.Cache.RetainFor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	nc := cat.Network
	a.breaker = breaker.New(nc.FailThreshold, config.Duration(nc.CoolDown))
	overrides := make(map[string]ratelimit.Limits, len(cat.RateLimits))
	for host, rl := range cat.RateLimits {
		overrides[host] = ratelimit.Limits(rl)
	}
	fetcher := fetch.New(fetch.Options{
		Cache:              a.cache,
		Breaker:            a.breaker,
		Limits:             ratelimit.NewRegistry(overrides, ratelimit.ProviderLimits["rss"]),
		TimeoutTotal:       config.Duration(nc.TimeoutTotal),
		TimeoutConnect:     config.Duration(nc.TimeoutConnect),
		TimeoutRead:        config.Duration(nc.TimeoutRead),
		MaxResponseBytes:   nc.MaxResponseBytes,
		MaxRetries:         nc.MaxRetries,
		RetryBase:          config.Duration(nc.RetryBase),
		RetryFactor:        nc.RetryFactor,
		ProblematicDomains: nc.ProblematicDomains,
		ProblematicRetries: nc.ProblematicRetries,
		FreshFor:           cfg.Cache.FreshFor,
	})

	a.dedup = dedup.New(dedup.Options{
		SimHashThreshold: cat.Parser.SimhashThreshold,
		MinHashThreshold: cat.Parser.MinhashThreshold,
		MaxItems:         cfg.Dedup.MaxItems,
		TTL:              cfg.Dedup.TTL,
	})
	seedWindow := time.Duration(cfg.Dedup.SeedHours) * time.Hour
	if _, serr := scheduler.SeedDedup(ctx, a.repos.News, a.dedup, seedWindow, cfg.Dedup.MaxItems); serr != nil {
		lgr.Printf("[WARN] dedup starts empty: %v", serr)
	}

	var base scoring.Scorer = scoring.NewHeuristic(cfg.Scoring.TrustedDomains)
	if cfg.LLM.Enabled {
		lgr.Printf("[INFO] scoring with llm %s at %s", cfg.LLM.Model, cfg.LLM.Endpoint)
		base = llm.NewScorer(cfg.GetLLMConfig())
	}
	a.scorer = scoring.NewCached(base, cfg.Scoring.CacheSize, cfg.Scoring.CacheTTL)

	store, err := progress.NewFileStore(cfg.Progress.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress file: %w", err)
	}
	a.tracker = progress.NewTracker(store)

	params := scheduler.Params{
		Fetcher:       fetcher,
		Parser:        feed.NewParser(nc.MaxResponseBytes),
		Extractor:     content.NewExtractor(nil),
		Quality:       quality.New(cat.Parser.MinContentQuality, cat.Parser.Languages),
		Dedup:         a.dedup,
		Scorer:        a.scorer,
		Store:         a.repos.News,
		Progress:      a.tracker,
		MinImportance: cfg.Scoring.MinImportance,
		MaxConcurrent: nc.MaxConcurrent,
		MaxEntries:    nc.MaxRSSEntries,
		EnrichShort:   opts.Enrich,
	}
	if opts.MaxConcurrent > 0 {
		params.MaxConcurrent = opts.MaxConcurrent
	}
	if cat.Parser.EnableBrowserFallback {
		params.Browser = content.NewBrowserLoader(cat.Parser.Headless(), config.Duration(cat.Parser.BrowserTimeout))
		params.BrowserMatch = content.NewPatternMatcher(cat.Parser.BrowserFallbackPatterns).Match
	}
	a.orch = scheduler.NewOrchestrator(params)

	if cfg.Events.Enabled && len(cfg.Events.Providers) > 0 {
		providers := make([]events.Provider, 0, len(cfg.Events.Providers))
		for _, p := range cfg.Events.Providers {
			b := events.NewBase(p.Name, p.Category)
			if p.PerMinute > 0 {
				b = events.NewBaseWithLimiter(p.Name, p.Category, ratelimit.New(p.Name, ratelimit.Limits{PerMinute: p.PerMinute}))
			}
			providers = append(providers, events.NewJSONProvider(b, p.URL, fetcher))
		}
		a.collector = events.NewCollector(a.repos.Event, cfg.Events.Concurrency, providers...)
	}

	a.maint = newSourceMaintenance(cfg.LogDir, filepath.Join(filepath.Dir(cfg.Progress.Path), "sources_last_run.json"))
	return a, nil
}

// runOnce runs news ingestion and event collection, returns the exit code
func (a *app) runOnce(ctx context.Context) int {
	if err := a.maint.Record(a.sources); err != nil {
		lgr.Printf("[WARN] source maintenance: %v", err)
	}

	summary := a.orch.Run(ctx, a.sources)
	for _, r := range summary.Results {
		if r.Stale {
			lgr.Printf("[INFO] %s served from stale cache", r.Source)
		}
	}
	lgr.Printf("[INFO] cache: %s", a.cache.Stats(ctx))
	if blocked := a.breaker.Stats().BlockedDomains(); len(blocked) > 0 {
		lgr.Printf("[INFO] circuit open for %s", strings.Join(blocked, ", "))
	}

	if a.collector != nil && ctx.Err() == nil {
		start := time.Now().UTC()
		end := start.AddDate(0, 0, a.cfg.Events.WindowDays)
		saved := 0
		for _, r := range a.collector.Collect(ctx, start, end) {
			saved += r.Saved
		}
		lgr.Printf("[INFO] events saved: %d", saved)
	}
	return summary.ExitCode()
}

// reloadSources re-reads the catalogue between periodic runs
func (a *app) reloadSources() error {
	cat, err := config.LoadCatalogue(a.cfg.Sources)
	if err != nil {
		return err
	}
	sources := cat.Sources(a.filter)
	if len(sources) == 0 {
		return errors.New("no sources match the filter")
	}
	a.sources = sources
	return nil
}

// Stats implements server.StatsProvider
func (a *app) Stats(ctx context.Context) (server.Stats, error) {
	stored, err := a.repos.News.Count(ctx)
	if err != nil {
		return server.Stats{}, fmt.Errorf("count news: %w", err)
	}
	return server.Stats{
		Cache:          a.cache.Stats(ctx),
		BlockedDomains: a.breaker.Stats().BlockedDomains(),
		StoredNews:     stored,
		ScoreCacheSize: a.scorer.Len(),
		DedupIndexSize: a.dedup.Len(),
	}, nil
}

// Close releases database and cache handles
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			lgr.Printf("[WARN] close cache: %v", err)
		}
	}
	if a.repos != nil {
		if err := a.repos.Close(); err != nil {
			lgr.Printf("[WARN] close database: %v", err)
		}
	}
}

// dsnPath extracts the database file path from a sqlite dsn, empty for in-memory databases
func dsnPath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return ""
	}
	return p
}

func ensureDir(file string) error {
	if file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return fmt.Errorf("make dir for %s: %w", file, err)
	}
	return nil
}
