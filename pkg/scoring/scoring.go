// Package scoring evaluates admitted candidates for importance and credibility.
package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// Request is one item to score. Link is optional and only used for credibility hints.
type Request struct {
	Title    string
	Content  string
	Category string
	Link     string
}

// Scorer returns importance and credibility in [0,1]
type Scorer interface {
	Score(ctx context.Context, req Request) (domain.Score, error)
}

// Cached memoises verdicts of another scorer keyed by a content fingerprint
type Cached struct {
	next  Scorer
	cache *expirable.LRU[string, domain.Score]
}

// NewCached wraps next with a bounded cache. Errors are never cached.
func NewCached(next Scorer, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 5000
	}
	return &Cached{next: next, cache: expirable.NewLRU[string, domain.Score](size, nil, ttl)}
}

// Score returns the cached verdict or asks the wrapped scorer
func (c *Cached) Score(ctx context.Context, req Request) (domain.Score, error) {
	key := Fingerprint(req)
	if s, ok := c.cache.Get(key); ok {
		return s, nil
	}
	s, err := c.next.Score(ctx, req)
	if err != nil {
		return domain.Score{}, err
	}
	s = s.Clamp()
	c.cache.Add(key, s)
	lgr.Printf("[DEBUG] scored %q: importance=%.2f credibility=%.2f", req.Title, s.Importance, s.Credibility)
	return s, nil
}

// Len returns the number of cached verdicts
func (c *Cached) Len() int { return c.cache.Len() }

// Fingerprint is hex SHA-256 of category|title|content
func Fingerprint(req Request) string {
	sum := sha256.Sum256([]byte(req.Category + "|" + req.Title + "|" + req.Content))
	return hex.EncodeToString(sum[:])
}
