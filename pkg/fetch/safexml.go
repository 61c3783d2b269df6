package fetch

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// MaxXMLDepth is the deepest element nesting accepted by CheckXML
const MaxXMLDepth = 50

// CheckXML scans an XML document without expanding anything and rejects entity declarations,
// nesting deeper than MaxXMLDepth, and documents larger than maxBytes.
func CheckXML(body []byte, maxBytes int64) error {
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return fmt.Errorf("%w: xml of %d bytes", ErrOversized, len(body))
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = map[string]string{}

	depth := 0
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > MaxXMLDepth {
				return fmt.Errorf("%w: depth %d", ErrXMLTooDeep, depth)
			}
		case xml.EndElement:
			depth--
		case xml.Directive:
			if strings.Contains(strings.ToUpper(string(t)), "<!ENTITY") {
				return ErrXMLEntity
			}
		}
	}
}

// StripControlBytes removes C0 control bytes except tab, LF and CR
func StripControlBytes(body []byte) []byte {
	res := make([]byte, 0, len(body))
	for _, b := range body {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			continue
		}
		res = append(res, b)
	}
	return res
}
