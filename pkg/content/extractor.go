// Package content extracts a title and main text from article pages through a cascade of strategies.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	readability "github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"

	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
)

// ErrNoContent is returned when no strategy produced a result
var ErrNoContent = errors.New("no content extracted")

// method tags reported in Article.Method
const (
	MethodTrafilatura = "trafilatura"
	MethodReadability = "readability"
	MethodSelectors   = "selectors"
)

// minReadabilityChars is the body length readability needs to count as a success
const minReadabilityChars = 100

// minSelectorChars drops selector matches that are mostly navigation
const minSelectorChars = 50

// Article is an extraction result
type Article struct {
	Title  string
	Text   string
	Method string
}

// PageFetcher downloads a page by url
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (fetch.Result, error)
}

// Strategy returns an article or nil when it cannot handle the page
type Strategy interface {
	Name() string
	Extract(ctx context.Context, pageURL string, html []byte) *Article
}

// Extractor runs strategies in order, the first non-nil result wins
type Extractor struct {
	strategies []Strategy
}

// NewExtractor makes the default cascade: trafilatura, readability, selectors.
// fetcher may be nil, then trafilatura works on the buffered html only.
func NewExtractor(fetcher PageFetcher) *Extractor {
	return &Extractor{strategies: []Strategy{
		&TrafilaturaStrategy{Fetcher: fetcher},
		&ReadabilityStrategy{},
		&SelectorStrategy{},
	}}
}

// NewExtractorWith makes an extractor with custom strategies
func NewExtractorWith(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract returns the first successful strategy result
func (e *Extractor) Extract(ctx context.Context, pageURL string, html []byte) (*Article, error) {
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if art := s.Extract(ctx, pageURL, html); art != nil {
			lgr.Printf("[DEBUG] extracted %s with %s, %d chars", pageURL, s.Name(), utf8.RuneCountInString(art.Text))
			return art, nil
		}
		lgr.Printf("[DEBUG] strategy %s found nothing for %s", s.Name(), pageURL)
	}
	return nil, fmt.Errorf("%s: %w", pageURL, ErrNoContent)
}

// TrafilaturaStrategy uses the news-oriented extractor, first on a fresh download of the url
// then on the buffered html
type TrafilaturaStrategy struct {
	Fetcher PageFetcher
}

// Name returns the method tag
func (s *TrafilaturaStrategy) Name() string { return MethodTrafilatura }

// Extract implements Strategy
func (s *TrafilaturaStrategy) Extract(ctx context.Context, pageURL string, html []byte) *Article {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		parsedURL = nil
	}

	if s.Fetcher != nil && parsedURL != nil {
		res, err := s.Fetcher.FetchPage(ctx, pageURL)
		if err == nil {
			if art := trafilaturaExtract(fetch.DecodeBody(res.Body, res.ContentType), parsedURL); art != nil {
				return art
			}
		} else {
			lgr.Printf("[DEBUG] trafilatura fetch %s: %v", pageURL, err)
		}
	}
	if len(html) == 0 {
		return nil
	}
	return trafilaturaExtract(fetch.DecodeBody(html, ""), parsedURL)
}

func trafilaturaExtract(page string, pageURL *url.URL) *Article {
	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     pageURL,
	}
	result, err := trafilatura.Extract(strings.NewReader(page), opts)
	if err != nil || result == nil {
		return nil
	}
	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return nil
	}
	return &Article{Title: strings.TrimSpace(result.Metadata.Title), Text: text, Method: MethodTrafilatura}
}

// ReadabilityStrategy uses the readability port; needs at least 100 characters of text
type ReadabilityStrategy struct{}

// Name returns the method tag
func (s *ReadabilityStrategy) Name() string { return MethodReadability }

// Extract implements Strategy
func (s *ReadabilityStrategy) Extract(_ context.Context, pageURL string, html []byte) *Article {
	if len(html) == 0 {
		return nil
	}
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	art, err := readability.FromReader(strings.NewReader(fetch.DecodeBody(html, "")), parsedURL)
	if err != nil {
		return nil
	}
	text := normalizeSpace(art.TextContent)
	if utf8.RuneCountInString(text) < minReadabilityChars {
		return nil
	}
	return &Article{Title: strings.TrimSpace(art.Title), Text: text, Method: MethodReadability}
}

// selectors are content containers checked by SelectorStrategy
var selectors = []string{
	"article",
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	".story-body",
	"[itemprop=articleBody]",
	"main",
	"#content",
	".content",
}

// SelectorStrategy picks the longest text among common content containers
type SelectorStrategy struct{}

// Name returns the method tag
func (s *SelectorStrategy) Name() string { return MethodSelectors }

// Extract implements Strategy
func (s *SelectorStrategy) Extract(_ context.Context, _ string, html []byte) *Article {
	if len(html) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(fetch.DecodeBody(html, ""))))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript, nav, footer, aside").Remove()

	best := ""
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if text := normalizeSpace(node.Text()); len(text) > len(best) {
				best = text
			}
		})
	}
	if utf8.RuneCountInString(best) < minSelectorChars {
		return nil
	}

	title := normalizeSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = normalizeSpace(doc.Find("title").First().Text())
	}
	return &Article{Title: title, Text: best, Method: MethodSelectors}
}

// normalizeSpace collapses runs of whitespace
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
