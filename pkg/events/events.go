// Package events holds the shared contract of event providers: rate-limited fetching,
// normalisation of raw provider payloads into domain.EventRecord, and bounded collection.
package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/feed"
	"github.com/denius89/news-ai-bot-sub002/pkg/ratelimit"
)

// defaults applied by NormalizeEvent
const (
	DefaultSubcategory = "general"
	DefaultImportance  = 0.5
)

// Raw is one provider payload entry before normalisation. Recognised keys are title, starts_at,
// ends_at, subcategory, link, importance, description, location, organizer, status and metadata.
// Any other key is carried into metadata.
type Raw map[string]any

// Provider fetches raw events starting in [start, end)
type Provider interface {
	Name() string
	Category() string
	FetchEvents(ctx context.Context, start, end time.Time) ([]Raw, error)
}

// Base carries what every provider shares. Adapters embed it and call Wait before each HTTP request.
type Base struct {
	name     string
	category string
	limiter  *ratelimit.Limiter
}

// NewBase makes a base with the limiter from the provider table
func NewBase(name, category string) Base {
	return Base{name: name, category: category, limiter: ratelimit.ForProvider(name)}
}

// NewBaseWithLimiter makes a base with an explicit limiter
func NewBaseWithLimiter(name, category string, limiter *ratelimit.Limiter) Base {
	return Base{name: name, category: category, limiter: limiter}
}

// Name returns provider name, also used as event source
func (b Base) Name() string { return b.name }

// Category returns the category assigned to provider events
func (b Base) Category() string { return b.category }

// Wait blocks until the provider limiter allows the next request
func (b Base) Wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("provider %s: %w", b.name, err)
	}
	return nil
}

// Normalize converts raw into an event of this provider, nil when title or starts_at is missing
func (b Base) Normalize(raw Raw) *domain.EventRecord {
	return NormalizeEvent(raw, b.name, b.category)
}

var knownKeys = map[string]bool{
	"title": true, "starts_at": true, "ends_at": true, "subcategory": true, "link": true, "importance": true,
	"description": true, "location": true, "organizer": true, "status": true, "metadata": true, "source": true,
	"category": true,
}

// NormalizeEvent validates title and starts_at, computes the unique hash and applies defaults.
// Source and category from raw override the given ones when present.
func NormalizeEvent(raw Raw, source, category string) *domain.EventRecord {
	title := strings.TrimSpace(asString(raw["title"]))
	startsAt, ok := asTime(raw["starts_at"])
	if title == "" || !ok {
		return nil
	}
	if s := asString(raw["source"]); s != "" {
		source = s
	}
	if c := asString(raw["category"]); c != "" {
		category = c
	}

	ev := &domain.EventRecord{
		Title:       title,
		Category:    category,
		Subcategory: asString(raw["subcategory"]),
		StartsAt:    startsAt,
		Source:      source,
		Link:        asString(raw["link"]),
		Importance:  DefaultImportance,
		Description: asString(raw["description"]),
		Location:    asString(raw["location"]),
		Organizer:   asString(raw["organizer"]),
		Status:      asString(raw["status"]),
		Metadata:    map[string]any{},
	}
	if ev.Subcategory == "" {
		ev.Subcategory = DefaultSubcategory
	}
	if ev.Status == "" {
		ev.Status = domain.EventStatusUpcoming
	}
	if v, ok := asFloat(raw["importance"]); ok {
		ev.Importance = clamp01(v)
	}
	if endsAt, ok := asTime(raw["ends_at"]); ok && !endsAt.Before(startsAt) {
		ev.EndsAt = &endsAt
	}
	if md, ok := raw["metadata"].(map[string]any); ok {
		for k, v := range md {
			ev.Metadata[k] = v
		}
	}
	for k, v := range raw {
		if !knownKeys[k] {
			ev.Metadata[k] = v
		}
	}
	ev.UniqueHash = domain.EventHash(ev.Title, ev.StartsAt, ev.Source)
	return ev
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asTime accepts time.Time, date strings in common layouts and unix seconds, result is UTC
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		if ts, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil && ts > 0 {
			return time.Unix(ts, 0).UTC(), true
		}
		parsed := feed.ParseDate(t)
		if parsed == nil {
			return time.Time{}, false
		}
		return *parsed, true
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.Unix(t, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func clamp01(v float64) float64 {
	return domain.Score{Importance: v}.Clamp().Importance
}
