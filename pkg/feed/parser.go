// Package feed detects feed formats and turns RSS, Atom, JSON Feed and WordPress REST payloads
// into a common item shape.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	jsonfeed "github.com/mmcdole/gofeed/json"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
)

// ErrUnknownFormat is returned when no parser matches the payload
var ErrUnknownFormat = errors.New("unknown feed format")

// Parsed is a parsed document of one of the supported kinds
type Parsed interface {
	Kind() Kind
	FeedItems() []domain.FeedItem
}

// Parser dispatches payloads to the matching format parser
type Parser struct {
	maxBytes int64
}

// NewParser makes a parser. maxBytes limits XML documents, zero disables the check.
func NewParser(maxBytes int64) *Parser {
	return &Parser{maxBytes: maxBytes}
}

// Parse detects the payload kind and parses it. feedURL is used to resolve relative links.
func (p *Parser) Parse(body []byte, contentType, feedURL string) (Parsed, error) {
	kind := Detect(body, contentType)
	switch kind {
	case KindRSS:
		return p.parseXML(body, func(b []byte) (Parsed, error) {
			f, err := gofeed.NewParser().Parse(bytes.NewReader(b))
			if err != nil {
				return nil, fmt.Errorf("parse rss: %w", err)
			}
			return &RSSDoc{Feed: f, BaseURL: feedURL}, nil
		})
	case KindAtom:
		return p.parseXML(body, func(b []byte) (Parsed, error) {
			ap := &atom.Parser{}
			f, err := ap.Parse(bytes.NewReader(b))
			if err != nil {
				return nil, fmt.Errorf("parse atom: %w", err)
			}
			return &AtomDoc{Feed: f, BaseURL: feedURL}, nil
		})
	case KindJSON:
		jp := &jsonfeed.Parser{}
		f, err := jp.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse json feed: %w", err)
		}
		return &JSONFeedDoc{Feed: f, BaseURL: feedURL}, nil
	case KindWordPress:
		var posts []wpPost
		if err := json.Unmarshal(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")), &posts); err != nil {
			return nil, fmt.Errorf("parse wordpress: %w", err)
		}
		return &WordPressDoc{Posts: posts, BaseURL: feedURL}, nil
	case KindHTML:
		return &HTMLDoc{Body: body, ContentType: contentType, BaseURL: feedURL}, nil
	}
	return nil, ErrUnknownFormat
}

// parseXML guards the document and parses it, retrying once with control bytes stripped
func (p *Parser) parseXML(body []byte, parse func([]byte) (Parsed, error)) (Parsed, error) {
	res, err := p.guarded(body, parse)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, fetch.ErrXMLEntity) || errors.Is(err, fetch.ErrXMLTooDeep) || errors.Is(err, fetch.ErrOversized) {
		return nil, err
	}
	cleaned := fetch.StripControlBytes(body)
	if len(cleaned) == len(body) {
		return nil, err
	}
	lgr.Printf("[DEBUG] xml parse failed (%v), retrying without %d control bytes", err, len(body)-len(cleaned))
	return p.guarded(cleaned, parse)
}

func (p *Parser) guarded(body []byte, parse func([]byte) (Parsed, error)) (Parsed, error) {
	if err := fetch.CheckXML(body, p.maxBytes); err != nil {
		return nil, err
	}
	return parse(body)
}

// RSSDoc is a feed parsed by the generic gofeed parser
type RSSDoc struct {
	Feed    *gofeed.Feed
	BaseURL string
}

// Kind returns KindRSS
func (d *RSSDoc) Kind() Kind { return KindRSS }

// FeedItems converts entries, resolving relative links against the feed url
func (d *RSSDoc) FeedItems() []domain.FeedItem {
	res := make([]domain.FeedItem, 0, len(d.Feed.Items))
	for _, it := range d.Feed.Items {
		if it == nil {
			continue
		}
		link := it.Link
		if link == "" && len(it.Links) > 0 {
			link = it.Links[0]
		}
		if link == "" && strings.HasPrefix(it.GUID, "http") {
			link = it.GUID
		}
		item := domain.FeedItem{
			Title:       strings.TrimSpace(it.Title),
			URL:         ResolveURL(d.BaseURL, link),
			ContentHTML: it.Content,
			Summary:     it.Description,
		}
		switch {
		case it.PublishedParsed != nil:
			item.DatePublished = utc(*it.PublishedParsed)
		case it.UpdatedParsed != nil:
			item.DatePublished = utc(*it.UpdatedParsed)
		default:
			item.DatePublished = ParseDate(it.Published)
		}
		res = append(res, item)
	}
	return res
}

// AtomDoc is a feed parsed by the dedicated atom parser
type AtomDoc struct {
	Feed    *atom.Feed
	BaseURL string
}

// Kind returns KindAtom
func (d *AtomDoc) Kind() Kind { return KindAtom }

// FeedItems prefers content over summary and the alternate link over others
func (d *AtomDoc) FeedItems() []domain.FeedItem {
	res := make([]domain.FeedItem, 0, len(d.Feed.Entries))
	for _, e := range d.Feed.Entries {
		if e == nil {
			continue
		}
		item := domain.FeedItem{
			Title:   strings.TrimSpace(e.Title),
			URL:     ResolveURL(d.BaseURL, atomLink(e)),
			Summary: e.Summary,
		}
		if e.Content != nil && strings.TrimSpace(e.Content.Value) != "" {
			item.ContentHTML = e.Content.Value
		}
		switch {
		case e.PublishedParsed != nil:
			item.DatePublished = utc(*e.PublishedParsed)
		case e.UpdatedParsed != nil:
			item.DatePublished = utc(*e.UpdatedParsed)
		}
		res = append(res, item)
	}
	return res
}

// atomLink returns the rel=alternate href, then the first non-empty href, then a url-like id
func atomLink(e *atom.Entry) string {
	for _, l := range e.Links {
		if l != nil && l.Href != "" && strings.EqualFold(l.Rel, "alternate") {
			return l.Href
		}
	}
	for _, l := range e.Links {
		if l != nil && l.Href != "" {
			return l.Href
		}
	}
	if strings.HasPrefix(e.ID, "http://") || strings.HasPrefix(e.ID, "https://") {
		return e.ID
	}
	return ""
}

// JSONFeedDoc is a JSON Feed document
type JSONFeedDoc struct {
	Feed    *jsonfeed.Feed
	BaseURL string
}

// Kind returns KindJSON
func (d *JSONFeedDoc) Kind() Kind { return KindJSON }

// FeedItems reads the JSON Feed item fields
func (d *JSONFeedDoc) FeedItems() []domain.FeedItem {
	res := make([]domain.FeedItem, 0, len(d.Feed.Items))
	for _, it := range d.Feed.Items {
		if it == nil {
			continue
		}
		link := it.URL
		if link == "" {
			link = it.ExternalURL
		}
		item := domain.FeedItem{
			Title:       strings.TrimSpace(it.Title),
			URL:         ResolveURL(d.BaseURL, link),
			ContentHTML: it.ContentHTML,
			ContentText: it.ContentText,
			Summary:     it.Summary,
		}
		item.DatePublished = ParseDate(it.DatePublished)
		if item.DatePublished == nil {
			item.DatePublished = ParseDate(it.DateModified)
		}
		res = append(res, item)
	}
	return res
}

// WordPressDoc is a WP REST v2 posts array
type WordPressDoc struct {
	Posts   []wpPost
	BaseURL string
}

// Kind returns KindWordPress
func (d *WordPressDoc) Kind() Kind { return KindWordPress }

// FeedItems reads title.rendered, content.rendered, excerpt.rendered, link and date
func (d *WordPressDoc) FeedItems() []domain.FeedItem {
	res := make([]domain.FeedItem, 0, len(d.Posts))
	for _, p := range d.Posts {
		item := domain.FeedItem{
			Title:       strings.TrimSpace(string(p.Title)),
			URL:         ResolveURL(d.BaseURL, p.Link),
			ContentHTML: string(p.Content),
			Summary:     string(p.Excerpt),
		}
		if p.DateGMT != "" {
			item.DatePublished = ParseDate(p.DateGMT)
		}
		if item.DatePublished == nil {
			item.DatePublished = ParseDate(p.Date)
		}
		res = append(res, item)
	}
	return res
}

type wpPost struct {
	Title   wpText `json:"title"`
	Content wpText `json:"content"`
	Excerpt wpText `json:"excerpt"`
	Link    string `json:"link"`
	Date    string `json:"date"`
	DateGMT string `json:"date_gmt"`
}

// wpText accepts both {"rendered": "..."} and a plain string
type wpText string

// UnmarshalJSON implements json.Unmarshaler
func (t *wpText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = wpText(s)
		return nil
	}
	var obj struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("wordpress text: %w", err)
	}
	*t = wpText(obj.Rendered)
	return nil
}

// HTMLDoc is a landing page. It has no items of its own; the caller runs feed discovery
// and falls back to article extraction.
type HTMLDoc struct {
	Body        []byte
	ContentType string
	BaseURL     string
}

// Kind returns KindHTML
func (d *HTMLDoc) Kind() Kind { return KindHTML }

// FeedItems returns nil
func (d *HTMLDoc) FeedItems() []domain.FeedItem { return nil }

// Text returns the page decoded to UTF-8
func (d *HTMLDoc) Text() string {
	return fetch.DecodeBody(d.Body, d.ContentType)
}

// DiscoverFeeds lists feed links announced by the page
func (d *HTMLDoc) DiscoverFeeds() []string {
	return DiscoverFeeds(d.Text(), d.BaseURL)
}
