package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// Store persists normalised events
type Store interface {
	Upsert(ctx context.Context, events []domain.EventRecord) error
}

// ProviderResult is the outcome of one provider run
type ProviderResult struct {
	Provider string
	Fetched  int
	Saved    int
	Invalid  int
	Err      error
	Duration time.Duration
}

// Collector runs providers with bounded parallelism and stores what they return
type Collector struct {
	providers   []Provider
	store       Store
	concurrency int
}

// NewCollector makes a collector, concurrency <= 0 means 4
func NewCollector(store Store, concurrency int, providers ...Provider) *Collector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{providers: providers, store: store, concurrency: concurrency}
}

// Collect fetches events starting in [start, end) from all providers. A failing provider never aborts the others,
// results are sorted by provider name.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) []ProviderResult {
	var mu sync.Mutex
	results := make([]ProviderResult, 0, len(c.providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, p := range c.providers {
		g.Go(func() error {
			res := c.runProvider(gctx, p, start, end)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	return results
}

func (c *Collector) runProvider(ctx context.Context, p Provider, start, end time.Time) (res ProviderResult) {
	res.Provider = p.Name()
	st := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("provider %s panic: %v", p.Name(), r)
		}
		res.Duration = time.Since(st)
		if res.Err != nil {
			lgr.Printf("[WARN] events %s failed: %v", res.Provider, res.Err)
			return
		}
		lgr.Printf("[INFO] events %s: fetched %d, saved %d, invalid %d in %v",
			res.Provider, res.Fetched, res.Saved, res.Invalid, res.Duration.Round(time.Millisecond))
	}()

	raws, err := p.FetchEvents(ctx, start, end)
	if err != nil {
		res.Err = fmt.Errorf("fetch events: %w", err)
		return res
	}
	res.Fetched = len(raws)

	records := make([]domain.EventRecord, 0, len(raws))
	for _, raw := range raws {
		ev := NormalizeEvent(raw, p.Name(), p.Category())
		if ev == nil {
			res.Invalid++
			continue
		}
		if ev.StartsAt.Before(start) || !ev.StartsAt.Before(end) {
			continue
		}
		records = append(records, *ev)
	}
	if len(records) == 0 {
		return res
	}
	if err := c.store.Upsert(ctx, records); err != nil {
		res.Err = fmt.Errorf("store events: %w", err)
		return res
	}
	res.Saved = len(records)
	return res
}
