package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewsUID(t *testing.T) {
	a := NewsUID("https://example.com/a", "Title")
	assert.Equal(t, a, NewsUID("https://example.com/a", "Title"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, NewsUID("https://example.com/a", "Title 2"))
	assert.NotEqual(t, a, NewsUID("https://example.com/b", "Title"))
	assert.Equal(t, "fcf8654504da070ea3cad92dc279744cf5e8442e5a00fe560c929685cb34704f", NewsUID("l", "t"))
}

func TestEventHash(t *testing.T) {
	start := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	base := EventHash("Final Match", start, "HLTV")

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, base, EventHash("final MATCH", start, "hltv"))
	})

	t.Run("equivalent zones", func(t *testing.T) {
		loc := time.FixedZone("UTC+3", 3*3600)
		assert.Equal(t, base, EventHash("Final Match", start.In(loc), "HLTV"))
	})

	t.Run("different time", func(t *testing.T) {
		assert.NotEqual(t, base, EventHash("Final Match", start.Add(time.Minute), "HLTV"))
	})
}

func TestISOFormat(t *testing.T) {
	assert.Equal(t, "2025-03-01T18:30:00+00:00", ISOFormat(time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2025-03-01T18:30:00.500000+00:00", ISOFormat(time.Date(2025, 3, 1, 18, 30, 0, 500_000_000, time.UTC)))
}

func TestFeedItem_Validate(t *testing.T) {
	assert.NoError(t, FeedItem{Title: "t", URL: "https://x"}.Validate())
	assert.ErrorIs(t, FeedItem{Title: " ", URL: "https://x"}.Validate(), ErrInvalidItem)
	assert.ErrorIs(t, FeedItem{Title: "t"}.Validate(), ErrInvalidItem)
}

func TestFeedItem_BestHTML(t *testing.T) {
	assert.Equal(t, "<p>h</p>", FeedItem{ContentHTML: "<p>h</p>", ContentText: "t", Summary: "s"}.BestHTML())
	assert.Equal(t, "t", FeedItem{ContentText: "t", Summary: "s"}.BestHTML())
	assert.Equal(t, "s", FeedItem{Summary: "s"}.BestHTML())
}

func TestScore_Clamp(t *testing.T) {
	assert.Equal(t, Score{Importance: 1, Credibility: 0}, Score{Importance: 1.4, Credibility: -0.2}.Clamp())
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://WWW.Example.com:8080/path"))
	assert.Equal(t, "", HostOf("::bad"))
	assert.Equal(t, "example.com", Source{URL: "https://example.com/feed"}.Domain())
}
