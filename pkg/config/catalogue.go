package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// reserved top-level keys of the catalogue, everything else is a category
const (
	keyNetwork    = "network"
	keyRateLimits = "rate_limits"
	keyParser     = "parser"
)

// Catalogue is the parsed sources.yaml
type Catalogue struct {
	Categories map[string]map[string]Subcategory
	Network    NetworkConfig
	RateLimits map[string]RateLimit
	Parser     ParserConfig
}

// Subcategory groups sources under one (category, subcategory) namespace
type Subcategory struct {
	Icon    string
	Sources []SourceEntry
}

// SourceEntry is a single named feed url
type SourceEntry struct {
	Name string
	URL  string
}

// NetworkConfig holds HTTP client settings, timeouts are in seconds
type NetworkConfig struct {
	TimeoutTotal       float64  `yaml:"timeout_total"`
	TimeoutConnect     float64  `yaml:"timeout_connect"`
	TimeoutRead        float64  `yaml:"timeout_read"`
	MaxResponseBytes   int64    `yaml:"max_response_bytes"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryBase          float64  `yaml:"retry_base"`
	RetryFactor        float64  `yaml:"retry_factor"`
	ProblematicDomains []string `yaml:"problematic_domains"`
	ProblematicRetries int      `yaml:"problematic_retries"`
	MaxConcurrent      int      `yaml:"max_concurrent"`
	MaxRSSEntries      int      `yaml:"max_rss_entries"`
	FailThreshold      int      `yaml:"fail_threshold"`
	CoolDown           float64  `yaml:"cool_down"`
}

// RateLimit configures one token bucket, at most one field is expected to be set
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	PerMinute float64 `yaml:"per_minute"`
	PerHour   float64 `yaml:"per_hour"`
	PerDay    float64 `yaml:"per_day"`
}

// ParserConfig holds parse/admission settings
type ParserConfig struct {
	SimhashThreshold        int      `yaml:"simhash_threshold"`
	MinhashThreshold        float64  `yaml:"minhash_threshold"`
	MinContentQuality       float64  `yaml:"min_content_quality"`
	BrowserHeadless         *bool    `yaml:"browser_headless"`
	BrowserTimeout          float64  `yaml:"browser_timeout"`
	BrowserFallbackPatterns []string `yaml:"browser_fallback_patterns"`
	EnableBrowserFallback   bool     `yaml:"enable_browser_fallback"`
	Languages               []string `yaml:"languages"`
}

// Filter restricts flattened sources, empty slices match everything
type Filter struct {
	Categories    []string
	Subcategories []string
}

// LoadCatalogue reads and parses the source catalogue
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from config
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue parses catalogue yaml. Malformed sources are skipped with a warning.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	cat := &Catalogue{Categories: map[string]map[string]Subcategory{}, RateLimits: map[string]RateLimit{}}
	if len(root.Content) == 0 {
		cat.applyDefaults()
		return cat, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse catalogue: top level must be a mapping")
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i].Value, top.Content[i+1]
		switch key {
		case keyNetwork:
			if err := val.Decode(&cat.Network); err != nil {
				return nil, fmt.Errorf("parse network section: %w", err)
			}
		case keyRateLimits:
			if err := val.Decode(&cat.RateLimits); err != nil {
				return nil, fmt.Errorf("parse rate_limits section: %w", err)
			}
		case keyParser:
			if err := val.Decode(&cat.Parser); err != nil {
				return nil, fmt.Errorf("parse parser section: %w", err)
			}
		default:
			subs, err := parseCategory(key, val)
			if err != nil {
				return nil, err
			}
			cat.Categories[key] = subs
		}
	}

	cat.applyDefaults()
	return cat, nil
}

func parseCategory(category string, node *yaml.Node) (map[string]Subcategory, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("category %s: expected mapping of subcategories", category)
	}
	res := map[string]Subcategory{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		subName, subNode := node.Content[i].Value, node.Content[i+1]
		var raw struct {
			Icon    string      `yaml:"icon"`
			Sources []yaml.Node `yaml:"sources"`
		}
		if err := subNode.Decode(&raw); err != nil {
			lgr.Printf("[WARN] catalogue %s/%s: skip malformed subcategory: %v", category, subName, err)
			continue
		}
		sub := Subcategory{Icon: raw.Icon}
		seen := map[string]bool{}
		for idx := range raw.Sources {
			entry, ok := parseSourceEntry(&raw.Sources[idx])
			if !ok {
				lgr.Printf("[WARN] catalogue %s/%s: skip malformed source #%d", category, subName, idx)
				continue
			}
			if seen[entry.URL] {
				lgr.Printf("[DEBUG] catalogue %s/%s: duplicate url %s", category, subName, entry.URL)
				continue
			}
			seen[entry.URL] = true
			sub.Sources = append(sub.Sources, entry)
		}
		res[subName] = sub
	}
	return res, nil
}

// parseSourceEntry accepts {name, url}, {Name: url} and "Name: url" forms
func parseSourceEntry(node *yaml.Node) (SourceEntry, bool) {
	switch node.Kind {
	case yaml.ScalarNode:
		name, u, found := strings.Cut(node.Value, ": ")
		if !found {
			return SourceEntry{}, false
		}
		return validEntry(name, u)
	case yaml.MappingNode:
		var entry struct {
			Name string `yaml:"name"`
			URL  string `yaml:"url"`
		}
		if err := node.Decode(&entry); err == nil && entry.URL != "" {
			return validEntry(entry.Name, entry.URL)
		}
		if len(node.Content) == 2 {
			return validEntry(node.Content[0].Value, node.Content[1].Value)
		}
	}
	return SourceEntry{}, false
}

func validEntry(name, u string) (SourceEntry, bool) {
	name, u = strings.TrimSpace(name), strings.TrimSpace(u)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return SourceEntry{}, false
	}
	if name == "" {
		name = domain.HostOf(u)
	}
	return SourceEntry{Name: name, URL: u}, true
}

func (c *Catalogue) applyDefaults() {
	n := &c.Network
	if n.TimeoutTotal == 0 {
		n.TimeoutTotal = 90
	}
	if n.TimeoutConnect == 0 {
		n.TimeoutConnect = 20
	}
	if n.TimeoutRead == 0 {
		n.TimeoutRead = 60
	}
	if n.MaxResponseBytes == 0 {
		n.MaxResponseBytes = 8 << 20
	}
	if n.MaxRetries == 0 {
		n.MaxRetries = 3
	}
	if n.RetryBase == 0 {
		n.RetryBase = 1
	}
	if n.RetryFactor == 0 {
		n.RetryFactor = 2
	}
	if n.ProblematicRetries == 0 {
		n.ProblematicRetries = 5
	}
	if n.MaxConcurrent == 0 {
		n.MaxConcurrent = 10
	}
	if n.MaxRSSEntries == 0 {
		n.MaxRSSEntries = 50
	}
	if n.FailThreshold == 0 {
		n.FailThreshold = 5
	}
	if n.CoolDown == 0 {
		n.CoolDown = 300
	}

	p := &c.Parser
	if p.SimhashThreshold == 0 {
		p.SimhashThreshold = 3
	}
	if p.MinhashThreshold == 0 {
		p.MinhashThreshold = 0.8
	}
	if p.MinContentQuality == 0 {
		p.MinContentQuality = 0.5
	}
	if p.BrowserHeadless == nil {
		headless := true
		p.BrowserHeadless = &headless
	}
	if p.BrowserTimeout == 0 {
		p.BrowserTimeout = 30
	}
	if len(p.Languages) == 0 {
		p.Languages = []string{"en", "ru", "uk", "pl"}
	}
}

// Sources flattens the catalogue into a deterministic list: categories and subcategories
// sorted by name, sources in file order.
func (c *Catalogue) Sources(f Filter) []domain.Source {
	cats := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		if matches(f.Categories, name) {
			cats = append(cats, name)
		}
	}
	sort.Strings(cats)

	var res []domain.Source
	for _, catName := range cats {
		subs := c.Categories[catName]
		subNames := make([]string, 0, len(subs))
		for name := range subs {
			if matches(f.Subcategories, name) {
				subNames = append(subNames, name)
			}
		}
		sort.Strings(subNames)
		for _, subName := range subNames {
			for _, s := range subs[subName].Sources {
				res = append(res, domain.Source{Category: catName, Subcategory: subName, Name: s.Name, URL: s.URL})
			}
		}
	}
	return res
}

func matches(allowed []string, name string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Duration converts seconds to time.Duration
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Headless reports whether the browser fallback runs headless
func (p ParserConfig) Headless() bool {
	return p.BrowserHeadless == nil || *p.BrowserHeadless
}
