package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// feedTypes are link types announcing a feed
var feedTypes = []string{"rss", "atom", "xml", "feed+json"}

// DiscoverFeeds returns absolute urls of <link rel="alternate"> feeds declared in an html page, in page order
func DiscoverFeeds(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var res []string
	seen := map[string]bool{}
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if !containsField(rel, "alternate") {
			return
		}
		typ := strings.ToLower(s.AttrOr("type", ""))
		if !matchesFeedType(typ) {
			return
		}
		href := ResolveURL(pageURL, s.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		res = append(res, href)
	})
	return res
}

func matchesFeedType(typ string) bool {
	for _, t := range feedTypes {
		if strings.Contains(typ, t) {
			return true
		}
	}
	return false
}

func containsField(s, field string) bool {
	for _, f := range strings.Fields(s) {
		if f == field {
			return true
		}
	}
	return false
}
