package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrInvalidItem is returned for parsed entries missing a title or url
var ErrInvalidItem = errors.New("item has no title or url")

// FeedItem is the common per-parser output shape. It lives only inside one worker invocation.
type FeedItem struct {
	Title         string
	URL           string // absolute
	ContentHTML   string
	ContentText   string
	Summary       string
	DatePublished *time.Time // always UTC when set
}

// Validate rejects items without title or url
func (f FeedItem) Validate() error {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.URL) == "" {
		return ErrInvalidItem
	}
	return nil
}

// BestHTML returns the richest available body, html content first
func (f FeedItem) BestHTML() string {
	switch {
	case strings.TrimSpace(f.ContentHTML) != "":
		return f.ContentHTML
	case strings.TrimSpace(f.ContentText) != "":
		return f.ContentText
	default:
		return f.Summary
	}
}

// PublishedISO formats DatePublished as RFC 3339 with explicit offset, empty if unknown
func (f FeedItem) PublishedISO() string {
	if f.DatePublished == nil {
		return ""
	}
	return f.DatePublished.UTC().Format(time.RFC3339)
}

// NewsRecord is the persisted, admitted news item
type NewsRecord struct {
	UID         string
	Title       string
	Content     string
	Link        string
	Source      string
	Category    string
	Subcategory string
	PublishedAt *time.Time
	Importance  float64
	Credibility float64
}

// NewsUID returns the deterministic identity of a news record: hex(SHA-256(link|title))
func NewsUID(link, title string) string {
	sum := sha256.Sum256([]byte(link + "|" + title))
	return hex.EncodeToString(sum[:])
}

// Score is the scorer verdict for one item
type Score struct {
	Importance  float64
	Credibility float64
}

// Clamp limits both values to [0,1]
func (s Score) Clamp() Score {
	return Score{Importance: clamp01(s.Importance), Credibility: clamp01(s.Credibility)}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
