package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts Options) *SmartCache {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSmartCache_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Options{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.GetFeed(ctx, "https://example.com/feed", 6*time.Hour)
	assert.False(t, ok)

	require.NoError(t, c.SaveFeedWithMeta(ctx, "https://example.com/feed", []byte("<rss/>"), `"abc"`, "Wed, 01 May 2024 10:00:00 GMT"))
	body, ok := c.GetFeed(ctx, "https://example.com/feed", 6*time.Hour)
	require.True(t, ok)
	assert.Equal(t, "<rss/>", string(body))

	_, err := os.Stat(filepath.Join(c.opts.Dir, Key("https://example.com/feed")+".cache"))
	require.NoError(t, err)

	now = now.Add(7 * time.Hour)
	_, ok = c.GetFeed(ctx, "https://example.com/feed", 6*time.Hour)
	assert.False(t, ok, "outside freshness window")

	stats := c.Stats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(6), stats.SizeBytes)
	assert.Contains(t, stats.String(), "entries=1")
}

func TestSmartCache_ConditionalHeaders(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Options{})

	assert.Empty(t, c.ConditionalHeaders(ctx, "https://example.com/feed"))

	require.NoError(t, c.SaveFeedWithMeta(ctx, "https://example.com/feed", []byte("x"), `"v1"`, "Wed, 01 May 2024 10:00:00 GMT"))
	h := c.ConditionalHeaders(ctx, "https://example.com/feed")
	assert.Equal(t, `"v1"`, h.Get("If-None-Match"))
	assert.Equal(t, "Wed, 01 May 2024 10:00:00 GMT", h.Get("If-Modified-Since"))

	require.NoError(t, c.SaveFeedWithMeta(ctx, "https://example.com/other", []byte("x"), "", ""))
	assert.Empty(t, c.ConditionalHeaders(ctx, "https://example.com/other"))

	require.NoError(t, c.DropMeta(ctx, "https://example.com/feed"))
	assert.Empty(t, c.ConditionalHeaders(ctx, "https://example.com/feed"))
}

func TestSmartCache_StaleAndRevalidated(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Options{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.GetStale(ctx, "https://example.com/feed")
	assert.False(t, ok)

	require.NoError(t, c.SaveFeedWithMeta(ctx, "https://example.com/feed", []byte("body"), `"e"`, "lm"))
	before, ok := c.Meta(ctx, "https://example.com/feed")
	require.True(t, ok)

	now = now.Add(48 * time.Hour)
	body, ok := c.GetStale(ctx, "https://example.com/feed")
	require.True(t, ok)
	assert.Equal(t, "body", string(body))
	assert.Equal(t, int64(1), c.Stats(ctx).StaleUsed)

	body, ok = c.Revalidated(ctx, "https://example.com/feed")
	require.True(t, ok)
	assert.Equal(t, "body", string(body))
	after, ok := c.Meta(ctx, "https://example.com/feed")
	require.True(t, ok)
	assert.Equal(t, before.ETag, after.ETag)
	assert.Equal(t, before.LastModified, after.LastModified)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updated_at refreshed")

	stats := c.Stats(ctx)
	assert.Equal(t, int64(1), stats.StaleUsed, "revalidation is not a stale use")
	assert.Equal(t, int64(1), stats.Hits)
}

func TestSmartCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Options{MaxSize: 10})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { now = now.Add(time.Second); return now }

	require.NoError(t, c.SaveFeedWithMeta(ctx, "u1", []byte("aaaa"), "", ""))
	require.NoError(t, c.SaveFeedWithMeta(ctx, "u2", []byte("bbbb"), "", ""))
	require.NoError(t, c.SaveFeedWithMeta(ctx, "u3", []byte("cccc"), "", ""))

	_, ok := c.GetStale(ctx, "u1")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.GetStale(ctx, "u3")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Stats(ctx).SizeBytes, int64(10))

	_, err := os.Stat(filepath.Join(c.opts.Dir, Key("u1")+".cache"))
	assert.True(t, os.IsNotExist(err))
}

func TestSmartCache_EvictionDropsValidators(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Options{MaxSize: 10})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { now = now.Add(time.Second); return now }

	require.NoError(t, c.SaveFeedWithMeta(ctx, "u1", []byte("aaaa"), `"v1"`, ""))
	require.NoError(t, c.SaveFeedWithMeta(ctx, "u2", []byte("bbbb"), `"v2"`, ""))
	require.NoError(t, c.SaveFeedWithMeta(ctx, "u3", []byte("cccc"), `"v3"`, ""))

	_, ok := c.Meta(ctx, "u1")
	assert.False(t, ok, "evicted body takes its validators along")
	assert.Empty(t, c.ConditionalHeaders(ctx, "u1"))
	m, ok := c.Meta(ctx, "u3")
	require.True(t, ok)
	assert.Equal(t, `"v3"`, m.ETag)
}

func TestSmartCache_PurgeOnOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := New(ctx, Options{Dir: dir, RetainFor: time.Hour})
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, c.SaveFeedWithMeta(ctx, "old", []byte("x"), "", ""))
	require.NoError(t, c.Close())

	c2, err := New(ctx, Options{Dir: dir, RetainFor: time.Hour})
	require.NoError(t, err)
	defer c2.Close()
	_, ok := c2.GetStale(ctx, "old")
	assert.False(t, ok)
	assert.Equal(t, 0, c2.Stats(ctx).Entries)
	_, ok = c2.Meta(ctx, "old")
	assert.False(t, ok, "purged entry has no validators left")
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}
