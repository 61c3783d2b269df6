package domain

import (
	"net/url"
	"strings"
)

// Source is a single catalogue entry
type Source struct {
	Category    string
	Subcategory string
	Name        string
	URL         string
}

// Domain returns the lower-cased host of the source URL, without a leading "www."
func (s Source) Domain() string {
	return HostOf(s.URL)
}

// String returns a human-readable identifier used in logs
func (s Source) String() string {
	if s.Name != "" {
		return s.Category + "/" + s.Subcategory + "/" + s.Name
	}
	return s.URL
}

// HostOf extracts the lower-cased host part of a URL, empty for unparsable input
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
