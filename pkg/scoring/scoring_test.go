package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

type countingScorer struct {
	calls int
	score domain.Score
	err   error
}

func (c *countingScorer) Score(context.Context, Request) (domain.Score, error) {
	c.calls++
	return c.score, c.err
}

func TestCached(t *testing.T) {
	next := &countingScorer{score: domain.Score{Importance: 1.4, Credibility: 0.7}}
	c := NewCached(next, 10, time.Hour)

	req := Request{Title: "t", Content: "body", Category: "crypto"}
	s, err := c.Score(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.Score{Importance: 1, Credibility: 0.7}, s, "clamped")

	s, err = c.Score(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Importance, 1e-9)
	assert.Equal(t, 1, next.calls, "second call served from cache")

	_, err = c.Score(context.Background(), Request{Title: "t", Content: "body", Category: "sports"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "category is part of the key")
	assert.Equal(t, 2, c.Len())
}

func TestCached_ErrorNotCached(t *testing.T) {
	next := &countingScorer{err: errors.New("boom")}
	c := NewCached(next, 10, time.Hour)
	_, err := c.Score(context.Background(), Request{Title: "t"})
	require.Error(t, err)
	_, err = c.Score(context.Background(), Request{Title: "t"})
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, c.Len())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(Request{Category: "c", Title: "t", Content: "x"})
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint(Request{Category: "c", Title: "t", Content: "x", Link: "https://ignored"}))
	assert.NotEqual(t, a, Fingerprint(Request{Category: "c", Title: "t", Content: "y"}))
}

func TestHeuristic(t *testing.T) {
	h := NewHeuristic(nil)
	long := strings.Repeat("word ", 400)

	tbl := []struct {
		name    string
		req     Request
		minImp  float64
		maxImp  float64
		minCred float64
		maxCred float64
	}{
		{name: "breaking with numbers from trusted outlet",
			req:    Request{Title: "Breaking: Bitcoin surges 12% to record", Content: long, Link: "https://www.reuters.com/a"},
			minImp: 0.85, maxImp: 1, minCred: 0.85, maxCred: 0.95},
		{name: "plain title, short body, unknown site",
			req:    Request{Title: "Weekly notes", Content: "short", Link: "http://blog.example.org/x"},
			minImp: 0.25, maxImp: 0.35, minCred: 0.45, maxCred: 0.55},
		{name: "clickbait",
			req:    Request{Title: "You won't believe this coin", Content: long, Link: "https://spam.example.com"},
			minImp: 0.15, maxImp: 0.25, minCred: 0.3, maxCred: 0.4},
		{name: "subdomain of trusted",
			req:    Request{Title: "Markets close", Content: long, Link: "https://markets.bloomberg.com/x"},
			minImp: 0.45, maxImp: 0.55, minCred: 0.85, maxCred: 0.95},
		{name: "no link",
			req:    Request{Title: "Срочно: рекорд", Content: long},
			minImp: 0.65, maxImp: 0.75, minCred: 0.5, maxCred: 0.5},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			s, err := h.Score(context.Background(), tt.req)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s.Importance, tt.minImp)
			assert.LessOrEqual(t, s.Importance, tt.maxImp)
			assert.GreaterOrEqual(t, s.Credibility, tt.minCred)
			assert.LessOrEqual(t, s.Credibility, tt.maxCred)
		})
	}
}

func TestHeuristic_CustomTrusted(t *testing.T) {
	h := NewHeuristic([]string{" WWW.Example.COM "})
	assert.True(t, h.isTrusted("example.com"))
	assert.True(t, h.isTrusted("news.example.com"))
	assert.False(t, h.isTrusted("notexample.com"))
	assert.False(t, h.isTrusted("reuters.com"))
}
