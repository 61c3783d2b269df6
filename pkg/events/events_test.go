package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
	"github.com/denius89/news-ai-bot-sub002/pkg/ratelimit"
)

func TestNormalizeEvent(t *testing.T) {
	start := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		ev := NormalizeEvent(Raw{"title": " Final ", "starts_at": start}, "football-data", "sports")
		require.NotNil(t, ev)
		assert.Equal(t, "Final", ev.Title)
		assert.Equal(t, "sports", ev.Category)
		assert.Equal(t, DefaultSubcategory, ev.Subcategory)
		assert.InDelta(t, DefaultImportance, ev.Importance, 1e-9)
		assert.Equal(t, domain.EventStatusUpcoming, ev.Status)
		assert.Equal(t, domain.EventHash("Final", start, "football-data"), ev.UniqueHash)
		assert.Nil(t, ev.EndsAt)
	})

	t.Run("coercion and metadata", func(t *testing.T) {
		ev := NormalizeEvent(Raw{
			"title": "Upgrade", "starts_at": "2026-05-10T20:00:00+02:00", "ends_at": "1778443200",
			"importance": "0.8", "subcategory": "eth", "link": "https://x/1", "prize": 1000.0,
			"metadata": map[string]any{"chain": "eth"},
		}, "coinmarketcal", "crypto")
		require.NotNil(t, ev)
		assert.True(t, ev.StartsAt.Equal(start))
		assert.Equal(t, time.UTC, ev.StartsAt.Location())
		assert.InDelta(t, 0.8, ev.Importance, 1e-9)
		assert.Equal(t, "eth", ev.Subcategory)
		require.NotNil(t, ev.EndsAt)
		assert.Equal(t, map[string]any{"chain": "eth", "prize": 1000.0}, ev.Metadata)
	})

	t.Run("importance clamped and numeric", func(t *testing.T) {
		ev := NormalizeEvent(Raw{"title": "x", "starts_at": start, "importance": 7}, "s", "c")
		require.NotNil(t, ev)
		assert.InDelta(t, 1.0, ev.Importance, 1e-9)
	})

	t.Run("ends before start is dropped", func(t *testing.T) {
		ev := NormalizeEvent(Raw{"title": "x", "starts_at": start, "ends_at": start.Add(-time.Hour)}, "s", "c")
		require.NotNil(t, ev)
		assert.Nil(t, ev.EndsAt)
	})

	t.Run("invalid", func(t *testing.T) {
		assert.Nil(t, NormalizeEvent(Raw{"starts_at": start}, "s", "c"))
		assert.Nil(t, NormalizeEvent(Raw{"title": "x"}, "s", "c"))
		assert.Nil(t, NormalizeEvent(Raw{"title": "x", "starts_at": "soon"}, "s", "c"))
		assert.Nil(t, NormalizeEvent(Raw{"title": "  ", "starts_at": start}, "s", "c"))
	})

	t.Run("hash stable across case and zone", func(t *testing.T) {
		a := NormalizeEvent(Raw{"title": "Final", "starts_at": start}, "Football-Data", "sports")
		b := NormalizeEvent(Raw{"title": "FINAL", "starts_at": start.In(time.FixedZone("X", 3*3600))}, "football-data", "sports")
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, a.UniqueHash, b.UniqueHash)
	})
}

func TestImportanceHelpers(t *testing.T) {
	assert.InDelta(t, 1.0, PrizePoolImportance(2_000_000), 1e-9)
	assert.InDelta(t, 0.65, PrizePoolImportance(100_000), 1e-9)
	assert.InDelta(t, 0.3, PrizePoolImportance(10_000), 1e-9)
	assert.InDelta(t, 0.2, PrizePoolImportance(100), 1e-9)
	assert.InDelta(t, DefaultImportance, PrizePoolImportance(0), 1e-9)

	assert.InDelta(t, 1.0, TVLChangeImportance(-60), 1e-9)
	assert.InDelta(t, 0.65, TVLChangeImportance(12), 1e-9)
	assert.InDelta(t, 0.3, TVLChangeImportance(1), 1e-9)

	assert.InDelta(t, 0.2, VoteImportance(0), 1e-9)
	assert.InDelta(t, 0.8, VoteImportance(1000), 1e-9)
	assert.InDelta(t, 1.0, VoteImportance(100_000), 1e-9)

	assert.InDelta(t, 0.95, TierImportance("S"), 1e-9)
	assert.InDelta(t, 0.8, TierImportance("Tier A"), 1e-9)
	assert.InDelta(t, 0.6, TierImportance("b-tier"), 1e-9)
	assert.InDelta(t, 0.9, TierImportance("Major"), 1e-9)
	assert.InDelta(t, DefaultImportance, TierImportance("unknown"), 1e-9)
}

func TestBase(t *testing.T) {
	b := NewBase("coingecko", "crypto")
	assert.Equal(t, "coingecko", b.Name())
	assert.Equal(t, "crypto", b.Category())
	require.NoError(t, b.Wait(context.Background()))

	ev := b.Normalize(Raw{"title": "x", "starts_at": "2026-05-10"})
	require.NotNil(t, ev)
	assert.Equal(t, "coingecko", ev.Source)
	assert.Equal(t, "crypto", ev.Category)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewBaseWithLimiter("slow", "c", ratelimit.New("slow", ratelimit.Limits{PerMinute: 1}))
	require.NoError(t, slow.Wait(context.Background()))
	assert.Error(t, slow.Wait(ctx))
}

type memStore struct {
	mu     sync.Mutex
	events []domain.EventRecord
	err    error
}

func (m *memStore) Upsert(_ context.Context, events []domain.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

type funcProvider struct {
	Base
	fn func() ([]Raw, error)
}

func (f funcProvider) FetchEvents(context.Context, time.Time, time.Time) ([]Raw, error) { return f.fn() }

func TestCollector(t *testing.T) {
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)
	good := funcProvider{Base: NewBaseWithLimiter("good", "sports", nil), fn: func() ([]Raw, error) {
		return []Raw{
			{"title": "a", "starts_at": start.Add(time.Hour)},
			{"title": "b", "starts_at": start.Add(48 * time.Hour)},
			{"title": "late", "starts_at": end.Add(time.Hour)},
			{"starts_at": start},
		}, nil
	}}
	failing := funcProvider{Base: NewBaseWithLimiter("failing", "crypto", nil), fn: func() ([]Raw, error) {
		return nil, errors.New("api down")
	}}
	panicky := funcProvider{Base: NewBaseWithLimiter("panicky", "crypto", nil), fn: func() ([]Raw, error) {
		panic("boom")
	}}

	store := &memStore{}
	res := NewCollector(store, 2, good, failing, panicky).Collect(context.Background(), start, end)
	require.Len(t, res, 3)

	assert.Equal(t, "failing", res[0].Provider)
	require.Error(t, res[0].Err)
	assert.Contains(t, res[0].Err.Error(), "api down")

	assert.Equal(t, "good", res[1].Provider)
	require.NoError(t, res[1].Err)
	assert.Equal(t, 4, res[1].Fetched)
	assert.Equal(t, 2, res[1].Saved)
	assert.Equal(t, 1, res[1].Invalid)

	assert.Equal(t, "panicky", res[2].Provider)
	require.Error(t, res[2].Err)
	assert.Contains(t, res[2].Err.Error(), "panic")

	assert.Len(t, store.events, 2)
}

func TestCollector_StoreError(t *testing.T) {
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	p := funcProvider{Base: NewBaseWithLimiter("p", "c", nil), fn: func() ([]Raw, error) {
		return []Raw{{"title": "a", "starts_at": start}}, nil
	}}
	res := NewCollector(&memStore{err: errors.New("db gone")}, 0, p).Collect(context.Background(), start, start.Add(time.Hour))
	require.Len(t, res, 1)
	require.Error(t, res[0].Err)
	assert.Equal(t, 0, res[0].Saved)
}

func TestJSONProvider(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events": [
			{"name": "Halving", "date": "2026-05-12", "url": "https://x/h", "importance": 0.9, "id": 7},
			{"title": "Unlock", "start_time": "2026-05-11T10:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	f := fetch.New(fetch.Options{Client: srv.Client()})
	p := NewJSONProvider(NewBaseWithLimiter("cal", "crypto", nil), srv.URL+"/events?from={start}&to={end}", f)
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	raws, err := p.FetchEvents(context.Background(), start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "/events?from=2026-05-10&to=2026-05-17", gotPath)
	require.Len(t, raws, 2)
	assert.Equal(t, "Halving", raws[0]["title"])
	assert.Equal(t, "https://x/h", raws[0]["link"])

	ev := p.Normalize(raws[0])
	require.NotNil(t, ev)
	assert.Equal(t, "cal", ev.Source)
	assert.InDelta(t, 0.9, ev.Importance, 1e-9)
	assert.InDelta(t, 7.0, ev.Metadata["id"], 1e-9)
	assert.NotNil(t, p.Normalize(raws[1]))
}

func TestDecodeItems(t *testing.T) {
	items, err := decodeItems([]byte(`[{"title":"a"}]`))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = decodeItems([]byte(`{"data":[{"title":"a"},{"title":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = decodeItems([]byte(`{"other":1}`))
	require.Error(t, err)
	_, err = decodeItems([]byte(`nope`))
	require.Error(t, err)
}
