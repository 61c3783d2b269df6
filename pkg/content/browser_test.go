package content

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsChallenge(t *testing.T) {
	assert.True(t, IsChallenge("Just a moment...", "<html></html>"))
	assert.True(t, IsChallenge("", `<html><script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script></html>`))
	assert.True(t, IsChallenge("Attention Required! | Cloudflare", ""))
	assert.False(t, IsChallenge("Daily news", "<html><body><article>story</article></body></html>"))
}

func TestPatternMatcher(t *testing.T) {
	m := NewPatternMatcher([]string{"*.medium.com", "bloomberg.com", "/amp/", " "})
	tbl := []struct {
		url  string
		want bool
	}{
		{"https://blog.medium.com/post", true},
		{"https://medium.com/post", false},
		{"https://www.bloomberg.com/news/x", true},
		{"https://markets.bloomberg.com/x", true},
		{"https://notbloomberg.com/x", false},
		{"https://bloomberg.com.evil.io/x", false},
		{"https://example.com/amp/story", true},
		{"https://example.com/story", false},
	}
	for _, tt := range tbl {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.url))
		})
	}

	var empty *PatternMatcher
	assert.False(t, empty.Match("https://example.com"))
	assert.False(t, NewPatternMatcher(nil).Match("https://example.com"))
}

func TestBrowserLoader_Load(t *testing.T) {
	if os.Getenv("BROWSER_TESTS") == "" {
		t.Skip("set BROWSER_TESTS=1 to run tests requiring chrome")
	}
	b := NewBrowserLoader(true, 30*time.Second)
	html, err := b.Load(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, string(html), "Example Domain")
}
