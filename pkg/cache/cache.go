// Package cache keeps fetched feed bodies on disk together with their HTTP validators.
// Bodies are files named by MD5 of the url, metadata and size accounting live in a sqlite index.
package cache

import (
	"context"
	"crypto/md5" //nolint:gosec // used as a file key, not for security
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schemaSQL string

// Options for SmartCache
type Options struct {
	Dir       string
	MaxSize   int64         // total bytes on disk, oldest entries evicted above it
	FreshFor  time.Duration // default freshness window
	RetainFor time.Duration // absolute retention of a body
}

// SmartCache stores feed bodies with conditional-request metadata and provides stale fallback
type SmartCache struct {
	opts Options
	db   *sqlx.DB
	now  func() time.Time

	mu        sync.Mutex // serialises writes and eviction
	hits      atomic.Int64
	misses    atomic.Int64
	staleUsed atomic.Int64
}

// Meta holds validators for a url
type Meta struct {
	URL          string
	ETag         string
	LastModified string
	UpdatedAt    time.Time
}

// Stats reports cache counters and disk usage
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	StaleUsed int64 `json:"stale_used"`
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// String returns a short human-readable summary
func (s Stats) String() string {
	return fmt.Sprintf("hits=%d, misses=%d, stale=%d, entries=%d, size=%s",
		s.Hits, s.Misses, s.StaleUsed, s.Entries, humanize.Bytes(uint64(max(s.SizeBytes, 0)))) //nolint:gosec // clamped above
}

type entrySQL struct {
	Key       string `db:"key"`
	URL       string `db:"url"`
	Size      int64  `db:"size"`
	StoredAt  int64  `db:"stored_at"`
	ExpiresAt int64  `db:"expires_at"`
}

type metaSQL struct {
	URL          string `db:"url"`
	ETag         string `db:"etag"`
	LastModified string `db:"last_modified"`
	UpdatedAt    int64  `db:"updated_at"`
}

// New opens or creates a cache in opts.Dir and purges entries past retention
func New(ctx context.Context, opts Options) (*SmartCache, error) {
	if opts.Dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1 << 30
	}
	if opts.FreshFor <= 0 {
		opts.FreshFor = 6 * time.Hour
	}
	if opts.RetainFor <= 0 {
		opts.RetainFor = 7 * 24 * time.Hour
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("make cache dir: %w", err)
	}

	dsn := "file:" + filepath.Join(opts.Dir, "index.db") + "?cache=shared&mode=rwc"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	c := &SmartCache{opts: opts, db: db, now: time.Now}
	if err := c.purgeExpired(ctx); err != nil {
		lgr.Printf("[WARN] cache purge failed: %v", err)
	}
	return c, nil
}

// Close closes the index database
func (c *SmartCache) Close() error {
	return c.db.Close()
}

// FreshFor returns the configured freshness window
func (c *SmartCache) FreshFor() time.Duration {
	return c.opts.FreshFor
}

// Key returns the storage key for a url
func Key(url string) string {
	sum := md5.Sum([]byte(url)) //nolint:gosec // not a security use
	return hex.EncodeToString(sum[:])
}

// GetFeed returns cached bytes if they were stored within maxAge
func (c *SmartCache) GetFeed(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool) {
	entry, err := c.entry(ctx, url)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	now := c.now()
	if now.Sub(time.Unix(0, entry.StoredAt)) > maxAge || now.After(time.Unix(0, entry.ExpiresAt)) {
		c.misses.Add(1)
		return nil, false
	}
	body, err := os.ReadFile(c.path(entry.Key))
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return body, true
}

// GetStale returns cached bytes regardless of age and counts the stale use
func (c *SmartCache) GetStale(ctx context.Context, url string) ([]byte, bool) {
	entry, err := c.entry(ctx, url)
	if err != nil {
		return nil, false
	}
	body, err := os.ReadFile(c.path(entry.Key))
	if err != nil {
		return nil, false
	}
	c.staleUsed.Add(1)
	lgr.Printf("[DEBUG] stale cache used for %s, stored %s", url, time.Unix(0, entry.StoredAt).Format(time.RFC3339))
	return body, true
}

// Revalidated handles a 304 answer: returns the stored body and refreshes only updated_at of the metadata.
// Counted as a hit, not as stale use, since the origin confirmed the copy.
func (c *SmartCache) Revalidated(ctx context.Context, url string) ([]byte, bool) {
	entry, err := c.entry(ctx, url)
	if err != nil {
		return nil, false
	}
	body, err := os.ReadFile(c.path(entry.Key))
	if err != nil {
		return nil, false
	}
	if err := c.TouchMeta(ctx, url); err != nil {
		lgr.Printf("[WARN] touch cache meta for %s: %v", url, err)
	}
	c.hits.Add(1)
	return body, true
}

// ConditionalHeaders returns If-None-Match and If-Modified-Since for a url with known validators
func (c *SmartCache) ConditionalHeaders(ctx context.Context, url string) http.Header {
	res := http.Header{}
	m, ok := c.Meta(ctx, url)
	if !ok {
		return res
	}
	if m.ETag != "" {
		res.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		res.Set("If-Modified-Since", m.LastModified)
	}
	return res
}

// Meta returns stored validators for a url
func (c *SmartCache) Meta(ctx context.Context, url string) (Meta, bool) {
	var m metaSQL
	if err := c.db.GetContext(ctx, &m, "SELECT url, etag, last_modified, updated_at FROM feed_meta WHERE url = ?", url); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			lgr.Printf("[WARN] read cache meta for %s: %v", url, err)
		}
		return Meta{}, false
	}
	return Meta{URL: m.URL, ETag: m.ETag, LastModified: m.LastModified, UpdatedAt: time.Unix(0, m.UpdatedAt)}, true
}

// SaveFeedWithMeta writes the body atomically with retention expiry and stores its validators
func (c *SmartCache) SaveFeedWithMeta(ctx context.Context, url string, body []byte, etag, lastModified string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(url)
	if err := c.writeFile(key, body); err != nil {
		return err
	}
	now := c.now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO entries (key, url, size, stored_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET url = excluded.url, size = excluded.size,
			stored_at = excluded.stored_at, expires_at = excluded.expires_at`,
		key, url, len(body), now.UnixNano(), now.Add(c.opts.RetainFor).UnixNano())
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO feed_meta (url, etag, last_modified, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET etag = excluded.etag, last_modified = excluded.last_modified,
			updated_at = excluded.updated_at`,
		url, etag, lastModified, now.UnixNano())
	if err != nil {
		return fmt.Errorf("save cache meta: %w", err)
	}
	return c.enforceSize(ctx)
}

// TouchMeta refreshes updated_at of a url's metadata, leaving validators untouched
func (c *SmartCache) TouchMeta(ctx context.Context, url string) error {
	if _, err := c.db.ExecContext(ctx, "UPDATE feed_meta SET updated_at = ? WHERE url = ?", c.now().UnixNano(), url); err != nil {
		return fmt.Errorf("touch meta: %w", err)
	}
	return nil
}

// DropMeta removes validators so the next request is unconditional
func (c *SmartCache) DropMeta(ctx context.Context, url string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM feed_meta WHERE url = ?", url); err != nil {
		return fmt.Errorf("drop meta: %w", err)
	}
	return nil
}

// Stats returns counters and disk usage
func (c *SmartCache) Stats(ctx context.Context) Stats {
	res := Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), StaleUsed: c.staleUsed.Load()}
	var agg struct {
		Count int   `db:"cnt"`
		Size  int64 `db:"total"`
	}
	if err := c.db.GetContext(ctx, &agg, "SELECT COUNT(*) AS cnt, COALESCE(SUM(size), 0) AS total FROM entries"); err != nil {
		lgr.Printf("[WARN] cache stats: %v", err)
		return res
	}
	res.Entries, res.SizeBytes = agg.Count, agg.Size
	return res
}

func (c *SmartCache) entry(ctx context.Context, url string) (entrySQL, error) {
	var e entrySQL
	err := c.db.GetContext(ctx, &e, "SELECT key, url, size, stored_at, expires_at FROM entries WHERE key = ?", Key(url))
	return e, err
}

func (c *SmartCache) path(key string) string {
	return filepath.Join(c.opts.Dir, key+".cache")
}

// writeFile writes into a temp file in the same directory and renames it over the target
func (c *SmartCache) writeFile(key string, body []byte) error {
	tmp, err := os.CreateTemp(c.opts.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// enforceSize evicts oldest entries until the total size fits MaxSize, caller holds mu
func (c *SmartCache) enforceSize(ctx context.Context) error {
	var total int64
	if err := c.db.GetContext(ctx, &total, "SELECT COALESCE(SUM(size), 0) FROM entries"); err != nil {
		return fmt.Errorf("cache size: %w", err)
	}
	if total <= c.opts.MaxSize {
		return nil
	}
	var entries []entrySQL
	if err := c.db.SelectContext(ctx, &entries, "SELECT key, url, size, stored_at, expires_at FROM entries ORDER BY stored_at ASC"); err != nil {
		return fmt.Errorf("list cache entries: %w", err)
	}
	evicted := 0
	for _, e := range entries {
		if total <= c.opts.MaxSize {
			break
		}
		if err := c.remove(ctx, e.Key); err != nil {
			return err
		}
		total -= e.Size
		evicted++
	}
	lgr.Printf("[DEBUG] cache evicted %d entries, size now %s", evicted, humanize.Bytes(uint64(max(total, 0)))) //nolint:gosec // clamped
	return nil
}

func (c *SmartCache) purgeExpired(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	if err := c.db.SelectContext(ctx, &keys, "SELECT key FROM entries WHERE expires_at < ?", c.now().UnixNano()); err != nil {
		return fmt.Errorf("list expired entries: %w", err)
	}
	for _, k := range keys {
		if err := c.remove(ctx, k); err != nil {
			return err
		}
	}
	if len(keys) > 0 {
		lgr.Printf("[INFO] cache purged %d expired entries", len(keys))
	}
	return nil
}

// remove drops the body, its entry and the url's validators, so the next fetch is unconditional. Caller holds mu.
func (c *SmartCache) remove(ctx context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file %s: %w", key, err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM feed_meta WHERE url IN (SELECT url FROM entries WHERE key = ?)", key); err != nil {
		return fmt.Errorf("delete cache meta %s: %w", key, err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}
