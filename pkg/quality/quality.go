// Package quality gates candidate items before deduplication and scoring: it cleans html,
// detects the language, looks for paywalls and computes a weighted content score.
package quality

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/RadhiFadlillah/whatlanggo"
	"github.com/microcosm-cc/bluemonday"
)

// weights of the score components, they sum to 1
const (
	weightLength   = 0.4
	weightTitle    = 0.2
	weightLanguage = 0.2
	weightPaywall  = 0.2
)

// fullLengthChars is the body length that earns the full length score
const fullLengthChars = 500

// DefaultLanguages are accepted when none configured
var DefaultLanguages = []string{"en", "ru", "uk", "pl"}

var paywallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscribe.{0,40}to.{0,40}continue`),
	regexp.MustCompile(`(?i)\bpaywall\b`),
	regexp.MustCompile(`(?i)free.{0,20}articles?.{0,20}remaining`),
	regexp.MustCompile(`(?i)(for|only) subscribers only|subscribers?[- ]only (content|article)`),
	regexp.MustCompile(`(?i)to continue reading,? (please )?(subscribe|log ?in|sign ?in)`),
	regexp.MustCompile(`(?i)this (article|content) is (only )?available to (paid )?subscribers`),
	regexp.MustCompile(`(?i)только для подписчиков|оформите подписку, чтобы`),
}

// Verdict is the outcome of Evaluate
type Verdict struct {
	Score         float64
	ShouldProcess bool
	Language      string
	Paywall       bool
	CleanHTML     string
	Text          string
	Issues        []string
}

// Scorer evaluates content quality
type Scorer struct {
	minQuality float64
	languages  map[string]bool
	policy     *bluemonday.Policy
	textPolicy *bluemonday.Policy
}

// New makes a scorer with the minimal score and accepted ISO 639-1 language codes
func New(minQuality float64, languages []string) *Scorer {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	langs := make(map[string]bool, len(languages))
	for _, l := range languages {
		langs[strings.ToLower(strings.TrimSpace(l))] = true
	}

	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br", "strong", "em", "b", "i", "u", "a", "blockquote", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("href").OnElements("a")

	textPolicy := bluemonday.StrictPolicy()
	textPolicy.AddSpaceWhenStrippingTag(true)

	return &Scorer{minQuality: minQuality, languages: langs, policy: policy, textPolicy: textPolicy}
}

// CleanHTML keeps the allow-listed tags and drops everything else, script and style included
func (s *Scorer) CleanHTML(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// PlainText strips all markup, unescapes entities and collapses whitespace
func (s *Scorer) PlainText(raw string) string {
	text := html.UnescapeString(s.textPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

// Evaluate scores an item from its title and raw html or text body
func (s *Scorer) Evaluate(title, rawHTML string) Verdict {
	v := Verdict{CleanHTML: s.CleanHTML(rawHTML)}
	v.Text = s.PlainText(v.CleanHTML)
	title = strings.TrimSpace(s.PlainText(title))

	bodyLen := utf8.RuneCountInString(v.Text)
	if bodyLen == 0 {
		v.Issues = append(v.Issues, "empty_content")
	}
	lengthScore := min(float64(bodyLen)/fullLengthChars, 1)
	if bodyLen > 0 && lengthScore < 0.4 {
		v.Issues = append(v.Issues, fmt.Sprintf("short_content:%d", bodyLen))
	}

	titleScore := titleBand(utf8.RuneCountInString(title))
	if titleScore < 1 {
		v.Issues = append(v.Issues, fmt.Sprintf("title_length:%d", utf8.RuneCountInString(title)))
	}

	v.Language = DetectLanguage(title + ". " + v.Text)
	langOK := s.languages[v.Language]
	if !langOK {
		v.Issues = append(v.Issues, "unsupported_language:"+v.Language)
	}

	v.Paywall = IsPaywalled(v.Text)
	if v.Paywall {
		v.Issues = append(v.Issues, "paywall")
	}

	v.Score = weightLength*lengthScore + weightTitle*titleScore
	if langOK {
		v.Score += weightLanguage
	}
	if !v.Paywall {
		v.Score += weightPaywall
	}
	if v.Score < s.minQuality {
		v.Issues = append(v.Issues, fmt.Sprintf("low_quality:%.2f<%.2f", v.Score, s.minQuality))
	}
	v.ShouldProcess = v.Score >= s.minQuality && !v.Paywall && langOK && bodyLen > 0
	return v
}

// titleBand rates title length: 20..200 chars is best, 10..300 acceptable
func titleBand(n int) float64 {
	switch {
	case n >= 20 && n <= 200:
		return 1
	case n >= 10 && n <= 300:
		return 0.5
	default:
		return 0
	}
}

// DetectLanguage returns the ISO 639-1 code of the text, empty when unknown
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}

// IsPaywalled matches text against known paywall phrases
func IsPaywalled(text string) bool {
	for _, re := range paywallPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
