package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
)

// Getter loads a url, fetch.SafeFetcher satisfies it
type Getter interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// aliases of canonical Raw keys seen in calendar-style APIs
var fieldAliases = map[string][]string{
	"title":     {"name", "event", "summary"},
	"starts_at": {"start", "start_time", "date", "begin_at", "scheduled_at"},
	"ends_at":   {"end", "end_time", "end_at"},
	"link":      {"url", "html_url", "source_url"},
}

// JSONProvider reads events from an endpoint returning a JSON array, or an object with
// an "events", "data" or "results" array. {start} and {end} in the url are replaced
// with window bounds as YYYY-MM-DD.
type JSONProvider struct {
	Base
	url    string
	getter Getter
}

// NewJSONProvider makes a provider for a calendar endpoint
func NewJSONProvider(base Base, url string, getter Getter) *JSONProvider {
	return &JSONProvider{Base: base, url: url, getter: getter}
}

// FetchEvents loads the endpoint once per call
func (p *JSONProvider) FetchEvents(ctx context.Context, start, end time.Time) ([]Raw, error) {
	if err := p.Wait(ctx); err != nil {
		return nil, err
	}
	url := strings.NewReplacer("{start}", start.UTC().Format("2006-01-02"), "{end}", end.UTC().Format("2006-01-02")).Replace(p.url)
	res, err := p.getter.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	items, err := decodeItems(res.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	raws := make([]Raw, 0, len(items))
	for _, it := range items {
		raws = append(raws, canonicalKeys(it))
	}
	return raws, nil
}

func decodeItems(body []byte) ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range []string{"events", "data", "results"} {
		if raw, ok := wrapped[key]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("no events array in response")
}

func canonicalKeys(item map[string]any) Raw {
	res := make(Raw, len(item))
	for k, v := range item {
		res[k] = v
	}
	for canonical, aliases := range fieldAliases {
		if _, ok := res[canonical]; ok {
			continue
		}
		for _, a := range aliases {
			if v, ok := res[a]; ok {
				res[canonical] = v
				delete(res, a)
				break
			}
		}
	}
	return res
}
