// Package fetch implements the HTTP layer of the pipeline: a GET with size cap, conditional
// requests backed by the feed cache, jittered retries, per-domain rate limits and a circuit breaker.
package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/ratelimit"
)

// Cache is the storage used for fresh hits, conditional requests and stale fallback
type Cache interface {
	GetFeed(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool)
	GetStale(ctx context.Context, url string) ([]byte, bool)
	Revalidated(ctx context.Context, url string) ([]byte, bool)
	ConditionalHeaders(ctx context.Context, url string) http.Header
	SaveFeedWithMeta(ctx context.Context, url string, body []byte, etag, lastModified string) error
	DropMeta(ctx context.Context, url string) error
}

// Breaker decides whether a domain may be contacted
type Breaker interface {
	Allow(domain string) bool
	Report(domain string, success bool)
}

// Options configures SafeFetcher. Zero values get defaults.
type Options struct {
	Cache              Cache
	Breaker            Breaker
	Limits             *ratelimit.Registry
	Client             *http.Client
	TimeoutTotal       time.Duration
	TimeoutConnect     time.Duration
	TimeoutRead        time.Duration
	MaxResponseBytes   int64
	MaxRetries         int
	RetryBase          time.Duration
	RetryFactor        float64
	ProblematicDomains []string
	ProblematicRetries int
	FreshFor           time.Duration
}

// Result of a successful fetch
type Result struct {
	URL         string
	ContentType string
	Body        []byte
	Status      int
	FromCache   bool
	Stale       bool
}

// SafeFetcher performs guarded HTTP GETs
type SafeFetcher struct {
	opts        Options
	client      *http.Client
	problematic map[string]bool
	sleep       func(ctx context.Context, d time.Duration) error
}

// New makes a SafeFetcher
func New(opts Options) *SafeFetcher {
	if opts.TimeoutTotal <= 0 {
		opts.TimeoutTotal = 90 * time.Second
	}
	if opts.TimeoutConnect <= 0 {
		opts.TimeoutConnect = 20 * time.Second
	}
	if opts.TimeoutRead <= 0 {
		opts.TimeoutRead = 60 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = 8 << 20
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryFactor <= 0 {
		opts.RetryFactor = 2
	}
	if opts.ProblematicRetries <= 0 {
		opts.ProblematicRetries = 5
	}
	if opts.FreshFor <= 0 {
		opts.FreshFor = 6 * time.Hour
	}

	client := opts.Client
	if client == nil {
		dialer := &net.Dialer{Timeout: opts.TimeoutConnect, KeepAlive: 30 * time.Second}
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   opts.TimeoutConnect,
				ResponseHeaderTimeout: opts.TimeoutRead,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	problematic := make(map[string]bool, len(opts.ProblematicDomains))
	for _, d := range opts.ProblematicDomains {
		problematic[strings.TrimPrefix(strings.ToLower(d), "www.")] = true
	}

	return &SafeFetcher{opts: opts, client: client, problematic: problematic, sleep: sleepCtx}
}

// MaxResponseBytes returns the body size cap
func (f *SafeFetcher) MaxResponseBytes() int64 {
	return f.opts.MaxResponseBytes
}

// Fetch downloads a feed url
func (f *SafeFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	return f.fetch(ctx, url, acceptFeed)
}

// FetchPage downloads an article page, same guards as Fetch with page-style headers
func (f *SafeFetcher) FetchPage(ctx context.Context, url string) (Result, error) {
	return f.fetch(ctx, url, acceptPage)
}

func (f *SafeFetcher) fetch(ctx context.Context, url, accept string) (Result, error) {
	host := domain.HostOf(url)
	if host == "" {
		return Result{}, fmt.Errorf("invalid url %q", url)
	}
	if f.opts.Breaker != nil && !f.opts.Breaker.Allow(host) {
		return Result{}, fmt.Errorf("fetch %s: %w", url, ErrCircuitOpen)
	}

	if f.opts.Cache != nil {
		if body, ok := f.opts.Cache.GetFeed(ctx, url, f.opts.FreshFor); ok {
			lgr.Printf("[DEBUG] cache hit for %s", url)
			return Result{URL: url, Body: body, Status: http.StatusOK, FromCache: true}, nil
		}
	}

	res, err := f.withRetry(ctx, url, host, accept)
	if err == nil {
		f.report(host, true)
		return res, nil
	}

	if errors.Is(err, ErrNotModifiedNoCache) {
		// origin answered, the failure is ours; next run goes unconditional
		f.report(host, true)
		if f.opts.Cache != nil {
			if derr := f.opts.Cache.DropMeta(ctx, url); derr != nil {
				lgr.Printf("[WARN] drop cache meta for %s: %v", url, derr)
			}
		}
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}

	f.report(host, false)
	if f.opts.Cache != nil && ctx.Err() == nil {
		if body, ok := f.opts.Cache.GetStale(ctx, url); ok {
			lgr.Printf("[WARN] fetch %s failed, using stale copy: %v", url, err)
			return Result{URL: url, Body: body, Status: http.StatusOK, FromCache: true, Stale: true}, nil
		}
	}
	return Result{}, fmt.Errorf("fetch %s: %w", url, err)
}

func (f *SafeFetcher) report(host string, success bool) {
	if f.opts.Breaker != nil {
		f.opts.Breaker.Report(host, success)
	}
}

// withRetry runs attempts with delay = base * factor^attempt * uniform(0.8, 1.2), x1.5 for TLS failures
func (f *SafeFetcher) withRetry(ctx context.Context, url, host, accept string) (Result, error) {
	attempts := f.opts.MaxRetries
	if f.problematic[host] {
		attempts = f.opts.ProblematicRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		res, err := f.once(ctx, url, host, accept)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryable(ctx, err) || attempt == attempts-1 {
			break
		}
		delay := f.backoff(attempt, isTLSError(err))
		lgr.Printf("[DEBUG] attempt %d/%d for %s failed: %v, retry in %v", attempt+1, attempts, url, err, delay)
		if serr := f.sleep(ctx, delay); serr != nil {
			return Result{}, serr
		}
	}
	return Result{}, lastErr
}

func (f *SafeFetcher) backoff(attempt int, tlsErr bool) time.Duration {
	jitter := 0.8 + rand.Float64()*0.4 //nolint:gosec // jitter only
	d := float64(f.opts.RetryBase) * math.Pow(f.opts.RetryFactor, float64(attempt)) * jitter
	if tlsErr {
		d *= 1.5
	}
	return time.Duration(d)
}

// once performs a single GET
func (f *SafeFetcher) once(ctx context.Context, url, host, accept string) (Result, error) {
	if f.opts.Limits != nil {
		if err := f.opts.Limits.Get(host).Acquire(ctx); err != nil {
			return Result{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.TimeoutTotal)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, accept)
	if f.opts.Cache != nil {
		for k, v := range f.opts.Cache.ConditionalHeaders(ctx, url) {
			req.Header[k] = v
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if f.opts.Cache == nil {
			return Result{}, ErrNotModifiedNoCache
		}
		body, ok := f.opts.Cache.Revalidated(ctx, url)
		if !ok {
			return Result{}, ErrNotModifiedNoCache
		}
		return Result{URL: url, Body: body, Status: resp.StatusCode, FromCache: true}, nil

	case resp.StatusCode == http.StatusOK:
		body, err := readLimited(resp.Body, f.opts.MaxResponseBytes)
		if err != nil {
			return Result{}, err
		}
		if f.opts.Cache != nil {
			etag, lm := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
			if err := f.opts.Cache.SaveFeedWithMeta(ctx, url, body, etag, lm); err != nil {
				lgr.Printf("[WARN] cache save for %s: %v", url, err)
			}
		}
		return Result{URL: url, ContentType: resp.Header.Get("Content-Type"), Body: body, Status: resp.StatusCode}, nil

	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Result{}, &HTTPError{Status: resp.StatusCode, Retryable: retryableStatus(resp.StatusCode)}
	}
}

// readLimited streams the body and fails once more than limit bytes arrive
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOversized, limit)
	}
	return body, nil
}

// isRetryable reports transport failures and retryable statuses. Caller cancellation is final.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable
	}
	if errors.Is(err, ErrOversized) || errors.Is(err, ErrNotModifiedNoCache) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || isTLSError(err)
}

func isTLSError(err error) bool {
	var (
		recErr  tls.RecordHeaderError
		certErr *tls.CertificateVerificationError
		uaErr   x509.UnknownAuthorityError
		hostErr x509.HostnameError
	)
	if errors.As(err, &recErr) || errors.As(err, &certErr) || errors.As(err, &uaErr) || errors.As(err, &hostErr) {
		return true
	}
	return strings.Contains(err.Error(), "tls:")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
