package scoring

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

var (
	// strong signals of newsworthiness, any language we ingest
	signalRe = regexp.MustCompile(`(?i)\b(breaking|urgent|record|surge[sd]?|plunge[sd]?|crash(es|ed)?|hack(ed)?|exploit|` +
		`launch(es|ed)?|approve[sd]?|ban(s|ned)?|lawsuit|sec|etf|halving|acquire[sd]?|merger|bankrupt(cy)?|` +
		`final|champion(s|ship)?|transfer|earnings|rate (hike|cut)|inflation|election|sanctions?)\b|` +
		`(?i)(срочно|рекорд|обвал|взлом|запуск|санкци|терміново|pilne|rekord)`)
	numberRe    = regexp.MustCompile(`\d+([.,]\d+)?\s?(%|\$|€|₽|[kmb]n?\b|млн|млрд)`)
	clickbaitRe = regexp.MustCompile(`(?i)(you won'?t believe|this one trick|shocking|top \d+ reasons|sponsored|partner content)`)
)

// defaultTrusted lists outlets given raised credibility when no list is configured
var defaultTrusted = []string{
	"reuters.com", "apnews.com", "bloomberg.com", "ft.com", "wsj.com", "bbc.co.uk", "bbc.com",
	"coindesk.com", "theblock.co", "cointelegraph.com", "espn.com", "theguardian.com", "nytimes.com",
	"interfax.ru", "tass.ru", "rbc.ru", "pravda.com.ua",
}

// Heuristic scores items from textual cues and the source domain. It is deterministic
// and used when no model-backed scorer is configured.
type Heuristic struct {
	trusted []string
}

// NewHeuristic makes a heuristic scorer, trusted domains match the host or any parent domain
func NewHeuristic(trusted []string) *Heuristic {
	if len(trusted) == 0 {
		trusted = defaultTrusted
	}
	res := &Heuristic{}
	for _, d := range trusted {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			res.trusted = append(res.trusted, strings.TrimPrefix(d, "www."))
		}
	}
	return res
}

// Score never fails
func (h *Heuristic) Score(_ context.Context, req Request) (domain.Score, error) {
	return domain.Score{Importance: h.importance(req), Credibility: h.credibility(req)}.Clamp(), nil
}

func (h *Heuristic) importance(req Request) float64 {
	res := 0.4
	signals := len(signalRe.FindAllString(req.Title, 3))
	res += 0.1 * float64(signals)
	if numberRe.MatchString(req.Title) {
		res += 0.1
	}
	switch n := utf8.RuneCountInString(req.Content); {
	case n >= 1500:
		res += 0.1
	case n < 200:
		res -= 0.1
	}
	if clickbaitRe.MatchString(req.Title) {
		res -= 0.3
	}
	return res
}

func (h *Heuristic) credibility(req Request) float64 {
	res := 0.5
	u, err := url.Parse(req.Link)
	if err != nil || u.Host == "" {
		return res
	}
	if u.Scheme == "https" {
		res += 0.05
	}
	if h.isTrusted(domain.HostOf(req.Link)) {
		res += 0.35
	}
	if clickbaitRe.MatchString(req.Title) {
		res -= 0.2
	}
	return res
}

func (h *Heuristic) isTrusted(host string) bool {
	for _, d := range h.trusted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
