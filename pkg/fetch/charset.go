package fetch

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DecodeBody converts a body to UTF-8 text. The encoding is detected from BOM, content type
// and meta/XML declarations; invalid sequences are dropped as a last resort.
func DecodeBody(body []byte, contentType string) string {
	if utf8.Valid(body) {
		return string(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc != nil && name != "utf-8" {
		if decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body))); err == nil {
			return string(decoded)
		}
	}
	return strings.ToValidUTF8(string(body), "")
}
