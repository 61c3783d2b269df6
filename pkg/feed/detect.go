package feed

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Kind of a fetched document
type Kind string

// supported kinds
const (
	KindRSS       Kind = "rss"
	KindAtom      Kind = "atom"
	KindJSON      Kind = "json"
	KindWordPress Kind = "wordpress_api"
	KindHTML      Kind = "html"
	KindUnknown   Kind = "unknown"
)

var atomRoot = regexp.MustCompile(`<([a-z0-9]+:)?feed[\s>]`)

// sniffLen limits how much of the body is scanned for markers
const sniffLen = 64 << 10

// Detect guesses the document kind from the payload and content type
func Detect(body []byte, contentType string) Kind {
	ct := strings.ToLower(contentType)
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))

	if strings.Contains(ct, "json") || (len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')) {
		if json.Valid(trimmed) {
			if isWordPressPayload(trimmed) {
				return KindWordPress
			}
			return KindJSON
		}
		if strings.Contains(ct, "json") {
			return KindJSON
		}
	}

	head := trimmed
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	lower := strings.ToLower(string(head))

	switch root := rootElement(lower); {
	case root == "feed" || strings.HasSuffix(root, ":feed"):
		return KindAtom
	case root == "rss" || root == "rdf:rdf":
		return KindRSS
	case root == "html":
		return KindHTML
	case root != "" && strings.Contains(lower, `"http://www.w3.org/2005/atom"`):
		return KindAtom
	case root != "" && strings.HasPrefix(lower, "<?xml"):
		return KindRSS
	}

	switch {
	case atomRoot.MatchString(lower):
		return KindAtom
	case strings.Contains(lower, "<rss"):
		return KindRSS
	case strings.Contains(lower, "<html") || strings.Contains(ct, "text/html"):
		return KindHTML
	case strings.Contains(ct, "xml"):
		return KindRSS
	}
	return KindUnknown
}

// isWordPressPayload reports a top-level array whose objects all carry title and content
func isWordPressPayload(body []byte) bool {
	if body[0] != '[' {
		return false
	}
	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(body, &arr); err != nil {
		return false
	}
	for _, obj := range arr {
		_, hasTitle := obj["title"]
		_, hasContent := obj["content"]
		if !hasTitle || !hasContent {
			return false
		}
	}
	return true
}

// rootElement returns the lower-cased name of the first element, skipping prolog, comments and doctype
func rootElement(doc string) string {
	for {
		i := strings.IndexByte(doc, '<')
		if i < 0 || i+1 >= len(doc) {
			return ""
		}
		doc = doc[i:]
		switch {
		case strings.HasPrefix(doc, "<?"):
			end := strings.Index(doc, "?>")
			if end < 0 {
				return ""
			}
			doc = doc[end+2:]
		case strings.HasPrefix(doc, "<!--"):
			end := strings.Index(doc, "-->")
			if end < 0 {
				return ""
			}
			doc = doc[end+3:]
		case strings.HasPrefix(doc, "<!"):
			end := strings.IndexByte(doc, '>')
			if end < 0 {
				return ""
			}
			doc = doc[end+1:]
		default:
			end := strings.IndexAny(doc[1:], " \t\r\n/>")
			if end < 0 {
				return ""
			}
			return doc[1 : end+1]
		}
	}
}
