package feed

import (
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate parses feed and API date strings in any common layout. Dates without zone are taken as UTC.
// Result is UTC, nil for empty or unrecognised input.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return utc(t)
}

func utc(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// ResolveURL makes link absolute against base. Unparsable input is returned trimmed.
func ResolveURL(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return link
	}
	return b.ResolveReference(ref).String()
}
