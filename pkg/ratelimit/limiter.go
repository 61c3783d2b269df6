// Package ratelimit provides per-provider and per-domain token-bucket limiters.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/time/rate"
)

// Limits configures a limiter. If several fields are set the most restrictive wins.
type Limits struct {
	PerSecond float64 `yaml:"per_second"`
	PerMinute float64 `yaml:"per_minute"`
	PerHour   float64 `yaml:"per_hour"`
	PerDay    float64 `yaml:"per_day"`
}

// Rate returns the effective requests-per-second, zero if nothing is configured
func (l Limits) Rate() float64 {
	candidates := []float64{l.PerSecond, l.PerMinute / 60, l.PerHour / 3600, l.PerDay / 86400}
	res := math.Inf(1)
	for _, c := range candidates {
		if c > 0 && c < res {
			res = c
		}
	}
	if math.IsInf(res, 1) {
		return 0
	}
	return res
}

// DefaultLimits is used for unknown providers, 1 req/s
var DefaultLimits = Limits{PerSecond: 1}

// ProviderLimits maps known provider names to limiter parameters
var ProviderLimits = map[string]Limits{
	"coingecko":     {PerMinute: 30},
	"coinmarketcal": {PerMinute: 60},
	"defillama":     {PerSecond: 5},
	"pandascore":    {PerHour: 1000},
	"football-data": {PerMinute: 10},
	"thesportsdb":   {PerMinute: 30},
	"finnhub":       {PerMinute: 60},
	"alphavantage":  {PerDay: 25},
	"github":        {PerHour: 60},
	"snapshot":      {PerSecond: 2},
	"liquipedia":    {PerMinute: 30},
	"tradingview":   {PerSecond: 1},
	"rss":           {PerSecond: 2},
}

// Limiter enforces a minimal interval between Acquire completions.
// Callers are serialised through an internal mutex, so waiting order follows lock acquisition.
type Limiter struct {
	name        string
	minInterval time.Duration
	mu          sync.Mutex
	bucket      *rate.Limiter
}

// New makes a limiter for the given limits, falling back to DefaultLimits when nothing is set
func New(name string, limits Limits) *Limiter {
	perSecond := limits.Rate()
	if perSecond <= 0 {
		perSecond = DefaultLimits.Rate()
	}
	return &Limiter{
		name:        name,
		minInterval: time.Duration(float64(time.Second) / perSecond),
		bucket:      rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// ForProvider makes a limiter from the predefined provider table
func ForProvider(name string) *Limiter {
	limits, ok := ProviderLimits[name]
	if !ok {
		lgr.Printf("[WARN] no rate limit configured for provider %q, using 1 req/s", name)
		limits = DefaultLimits
	}
	return New(name, limits)
}

// Acquire blocks until at least MinInterval has elapsed since the previous Acquire completion
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", l.name, err)
	}
	return nil
}

// MinInterval returns the enforced gap between acquisitions
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Name returns the provider or domain this limiter guards
func (l *Limiter) Name() string {
	return l.name
}

// Registry lazily creates one limiter per domain, with optional per-domain overrides
type Registry struct {
	mu        sync.Mutex
	limiters  map[string]*Limiter
	overrides map[string]Limits
	fallback  Limits
}

// NewRegistry makes a registry. Domains without overrides use fallback.
func NewRegistry(overrides map[string]Limits, fallback Limits) *Registry {
	if fallback.Rate() <= 0 {
		fallback = DefaultLimits
	}
	if overrides == nil {
		overrides = map[string]Limits{}
	}
	return &Registry{limiters: map[string]*Limiter{}, overrides: overrides, fallback: fallback}
}

// Get returns the shared limiter for a domain
func (r *Registry) Get(domain string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[domain]; ok {
		return l
	}
	limits, ok := r.overrides[domain]
	if !ok {
		limits = r.fallback
	}
	l := New(domain, limits)
	r.limiters[domain] = l
	return l
}
