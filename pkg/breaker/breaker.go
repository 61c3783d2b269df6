// Package breaker implements a per-domain circuit breaker that blocks a domain
// for a cool-down period after a run of consecutive failures.
package breaker

import (
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// Defaults used when zero values are passed to New
const (
	DefaultFailThreshold = 5
	DefaultCoolDown      = 300 * time.Second
)

// Breaker tracks consecutive failures per domain. Memory only, a restart clears all state.
type Breaker struct {
	threshold int
	coolDown  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	domains map[string]*domainState
}

type domainState struct {
	failures     int
	blockedUntil time.Time
}

// Stats describes currently blocked domains
type Stats struct {
	Blocked map[string]time.Time `json:"blocked"`
	Tracked int                  `json:"tracked"`
}

// Option customises a Breaker
type Option func(*Breaker)

// WithClock replaces time.Now, used in tests
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New makes a breaker with the given threshold and cool-down
func New(threshold int, coolDown time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailThreshold
	}
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	b := &Breaker{threshold: threshold, coolDown: coolDown, now: time.Now, domains: map[string]*domainState{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow returns false while the domain is blocked
func (b *Breaker) Allow(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.domains[domain]
	if !ok {
		return true
	}
	return !b.now().Before(st.blockedUntil)
}

// Report records the outcome of a call. Success resets the counter and clears any block.
func (b *Breaker) Report(domain string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		delete(b.domains, domain)
		return
	}
	st, ok := b.domains[domain]
	if !ok {
		st = &domainState{}
		b.domains[domain] = st
	}
	st.failures++
	if st.failures >= b.threshold {
		st.blockedUntil = b.now().Add(b.coolDown)
		st.failures = 0
		lgr.Printf("[WARN] circuit open for %s, blocked until %s", domain, st.blockedUntil.Format(time.RFC3339))
	}
}

// Stats returns blocked domains with their unblock time
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := Stats{Blocked: map[string]time.Time{}, Tracked: len(b.domains)}
	now := b.now()
	for d, st := range b.domains {
		if now.Before(st.blockedUntil) {
			res.Blocked[d] = st.blockedUntil
		}
	}
	return res
}

// BlockedDomains returns blocked domain names, sorted
func (s Stats) BlockedDomains() []string {
	res := make([]string, 0, len(s.Blocked))
	for d := range s.Blocked {
		res = append(res, d)
	}
	sort.Strings(res)
	return res
}
