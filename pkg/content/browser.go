package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-pkgz/lgr"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
)

// ErrChallenge is returned when a Cloudflare interstitial did not clear in time
var ErrChallenge = errors.New("cloudflare challenge not passed")

// challengeMarkers identify Cloudflare interstitial pages
var challengeMarkers = []string{
	"just a moment...",
	"checking your browser",
	"cf-browser-verification",
	"challenge-platform",
	"cf_chl_opt",
	"attention required! | cloudflare",
}

// BrowserLoader renders pages in headless Chrome for JS-heavy hosts
type BrowserLoader struct {
	Headless     bool
	Timeout      time.Duration
	PollInterval time.Duration
	ExecPath     string
}

// NewBrowserLoader makes a loader with the given headless mode and per-page timeout
func NewBrowserLoader(headless bool, timeout time.Duration) *BrowserLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserLoader{Headless: headless, Timeout: timeout, PollInterval: 2 * time.Second}
}

// Load navigates to the url and returns the rendered html, waiting out Cloudflare challenges
func (b *BrowserLoader) Load(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(fetch.RandomUserAgent()),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.Timeout)
	defer cancelTimeout()

	var title, html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser load %s: %w", pageURL, err)
	}

	for IsChallenge(title, html) {
		lgr.Printf("[DEBUG] cloudflare challenge on %s, waiting", pageURL)
		err := chromedp.Run(tabCtx,
			chromedp.Sleep(b.PollInterval),
			chromedp.Title(&title),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			if tabCtx.Err() != nil {
				return nil, fmt.Errorf("browser load %s: %w", pageURL, ErrChallenge)
			}
			return nil, fmt.Errorf("browser poll %s: %w", pageURL, err)
		}
	}
	return []byte(html), nil
}

// IsChallenge reports a Cloudflare interstitial by page title or body markers
func IsChallenge(title, html string) bool {
	lt := strings.ToLower(title)
	if strings.Contains(lt, "just a moment") || strings.Contains(lt, "attention required") {
		return true
	}
	lh := strings.ToLower(html)
	if len(lh) > 64<<10 {
		lh = lh[:64<<10]
	}
	for _, m := range challengeMarkers {
		if strings.Contains(lh, m) {
			return true
		}
	}
	return false
}

// PatternMatcher decides whether a url needs the browser path. Patterns are host globs
// ("*.medium.com"), domains matching the host and its subdomains, or url fragments containing "/".
type PatternMatcher struct {
	patterns []string
}

// NewPatternMatcher makes a matcher, empty patterns are ignored
func NewPatternMatcher(patterns []string) *PatternMatcher {
	res := &PatternMatcher{}
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			res.patterns = append(res.patterns, p)
		}
	}
	return res
}

// Match reports whether the url matches any pattern
func (m *PatternMatcher) Match(rawURL string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	host := domain.HostOf(rawURL)
	lower := strings.ToLower(rawURL)
	for _, p := range m.patterns {
		if strings.ContainsAny(p, "*?[") {
			if ok, _ := path.Match(p, host); ok {
				return true
			}
			continue
		}
		if strings.Contains(p, "/") {
			if strings.Contains(lower, p) {
				return true
			}
			continue
		}
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}
