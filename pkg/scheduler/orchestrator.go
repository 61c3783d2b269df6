// Package scheduler runs the news ingestion pipeline over the source catalogue with bounded concurrency.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/denius89/news-ai-bot-sub002/pkg/content"
	"github.com/denius89/news-ai-bot-sub002/pkg/dedup"
	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/feed"
	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
	"github.com/denius89/news-ai-bot-sub002/pkg/progress"
	"github.com/denius89/news-ai-bot-sub002/pkg/quality"
	"github.com/denius89/news-ai-bot-sub002/pkg/scoring"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor
//go:generate moq -out mocks/browser.go -pkg mocks -skip-ensure -fmt goimports . Browser
//go:generate moq -out mocks/scorer.go -pkg mocks -skip-ensure -fmt goimports . Scorer
//go:generate moq -out mocks/news_store.go -pkg mocks -skip-ensure -fmt goimports . NewsStore

// Fetcher downloads feeds and article pages
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
	FetchPage(ctx context.Context, url string) (fetch.Result, error)
}

// Parser turns a downloaded body into a typed document
type Parser interface {
	Parse(body []byte, contentType, feedURL string) (feed.Parsed, error)
}

// Extractor pulls the main article out of an html page
type Extractor interface {
	Extract(ctx context.Context, pageURL string, html []byte) (*content.Article, error)
}

// Browser renders JS-heavy pages
type Browser interface {
	Load(ctx context.Context, pageURL string) ([]byte, error)
}

// QualityGate evaluates item content
type QualityGate interface {
	Evaluate(title, rawHTML string) quality.Verdict
}

// Deduplicator admits items not seen before. Forget releases an admission whose item was not persisted.
type Deduplicator interface {
	Check(title, text, url string) dedup.Result
	Add(title, text, url string) dedup.Result
	Forget(url string)
}

// Scorer returns importance and credibility of an item
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (domain.Score, error)
}

// NewsStore persists admitted records
type NewsStore interface {
	Upsert(ctx context.Context, records []domain.NewsRecord) error
}

// filter reasons reported in SourceResult.Filtered
const (
	ReasonInvalid       = "invalid"
	ReasonQuality       = "quality"
	ReasonDuplicate     = "duplicate"
	ReasonLowImportance = "low_importance"
)

// shortItemRunes is the body length under which an item is enriched from its article page
const shortItemRunes = 300

// Params holds orchestrator dependencies and settings. Browser, BrowserMatch and Extractor are optional.
type Params struct {
	Fetcher       Fetcher
	Parser        Parser
	Extractor     Extractor
	Browser       Browser
	BrowserMatch  func(url string) bool
	Quality       QualityGate
	Dedup         Deduplicator
	Scorer        Scorer
	Store         NewsStore
	Progress      progress.Sink
	MinImportance float64
	MaxConcurrent int
	MaxEntries    int
	EnrichShort   bool // fetch the article page for items with short bodies
}

// Orchestrator runs the per-source worker over a catalogue
type Orchestrator struct {
	Params
}

// SourceResult is the outcome of one source
type SourceResult struct {
	Source    domain.Source
	Success   bool
	Reason    string
	Kind      feed.Kind
	Found     int
	Saved     int
	Filtered  map[string]int
	Errors    int
	Stale     bool
	Duration  time.Duration
	scoreSums progress.AIStats
}

// FilteredTotal returns the number of items dropped for any reason
func (r SourceResult) FilteredTotal() int {
	res := 0
	for _, n := range r.Filtered {
		res += n
	}
	return res
}

// RunSummary aggregates a whole run
type RunSummary struct {
	RunID     string
	Sources   int
	Succeeded int
	Failed    int
	Found     int
	Saved     int
	Filtered  map[string]int
	Errors    int
	Aborted   bool
	Duration  time.Duration
	Results   []SourceResult
}

// exit codes of a run
const (
	ExitSaved   = 0
	ExitNothing = 1
	ExitAborted = 2
)

// NewOrchestrator makes an orchestrator, defaults are 10 concurrent sources and 50 entries per source
func NewOrchestrator(p Params) *Orchestrator {
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 10
	}
	if p.MaxEntries <= 0 {
		p.MaxEntries = 50
	}
	if p.Progress == nil {
		p.Progress = progress.NewTracker(&progress.MemoryStore{})
	}
	return &Orchestrator{Params: p}
}

// Run processes all sources. A failing source never aborts the run, results are in catalogue order.
// Cancelling ctx stops dispatching new sources, sources already running finish under their own timeouts.
func (o *Orchestrator) Run(ctx context.Context, sources []domain.Source) RunSummary {
	st := time.Now()
	summary := RunSummary{Sources: len(sources), Filtered: map[string]int{}}
	workCtx := context.WithoutCancel(ctx)
	runID, err := o.Progress.Start(workCtx, len(sources))
	if err != nil {
		lgr.Printf("[WARN] can't reset progress: %v", err)
	}
	summary.RunID = runID
	lgr.Printf("[INFO] run %s started: %d sources, %d concurrent", runID, len(sources), o.MaxConcurrent)

	results := make([]SourceResult, len(sources))
	var g errgroup.Group
	g.SetLimit(o.MaxConcurrent)
	for i, src := range sources {
		if ctx.Err() != nil {
			results[i] = SourceResult{Source: src, Reason: ctx.Err().Error(), Filtered: map[string]int{}}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil { // cancelled while waiting for a free slot
				results[i] = SourceResult{Source: src, Reason: ctx.Err().Error(), Filtered: map[string]int{}}
				return nil
			}
			results[i] = o.processSource(workCtx, src)
			o.reportProgress(workCtx, results[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Found += r.Found
		summary.Saved += r.Saved
		summary.Errors += r.Errors
		for reason, n := range r.Filtered {
			summary.Filtered[reason] += n
		}
	}
	summary.Results = results
	summary.Duration = time.Since(st)
	summary.Aborted = ctx.Err() != nil

	if err := o.Progress.Finish(workCtx); err != nil {
		lgr.Printf("[WARN] can't finish progress: %v", err)
	}
	lgr.Printf("[INFO] run %s done in %v: sources %d ok, %d failed; items found %d, saved %d, filtered %d, errors %d",
		runID, summary.Duration.Round(time.Millisecond), summary.Succeeded, summary.Failed, summary.Found,
		summary.Saved, summary.FilteredTotal(), summary.Errors)
	return summary
}

// ExitCode maps the summary to the process exit code: 0 when anything was saved,
// 1 for a complete run with nothing saved, 2 for an interrupted run
func (s RunSummary) ExitCode() int {
	switch {
	case s.Aborted:
		return ExitAborted
	case s.Saved > 0:
		return ExitSaved
	default:
		return ExitNothing
	}
}

// FilteredTotal returns the number of items dropped for any reason
func (s RunSummary) FilteredTotal() int {
	res := 0
	for _, n := range s.Filtered {
		res += n
	}
	return res
}

func (o *Orchestrator) processSource(ctx context.Context, src domain.Source) (res SourceResult) {
	res = SourceResult{Source: src, Filtered: map[string]int{}}
	st := time.Now()
	lgr.Printf("[INFO] START %s (%s)", src, src.URL)
	if err := o.Progress.Current(ctx, src.String()); err != nil {
		lgr.Printf("[WARN] can't set current source: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Reason = fmt.Sprintf("panic: %v", r)
			res.Errors++
			lgr.Printf("[ERROR] panic in %s: %v\n%s", src, r, debug.Stack())
		}
		res.Duration = time.Since(st)
		if res.Success {
			lgr.Printf("[INFO] DONE %s: found %d, saved %d, filtered %d, errors %d in %v",
				src, res.Found, res.Saved, res.FilteredTotal(), res.Errors, res.Duration.Round(time.Millisecond))
			return
		}
		lgr.Printf("[WARN] FAIL %s: %s", src, res.Reason)
	}()

	items, kind, stale, err := o.loadItems(ctx, src)
	res.Kind, res.Stale = kind, stale
	if err != nil {
		res.Reason = err.Error()
		res.Errors++
		return res
	}
	if len(items) > o.MaxEntries {
		items = items[:o.MaxEntries]
	}
	res.Found = len(items)

	for _, item := range items {
		o.processItem(ctx, src, item, &res)
	}
	res.Success = true
	return res
}

// loadItems downloads the source and returns its entries. Html pages get one feed discovery hop
// and are otherwise treated as a single article.
func (o *Orchestrator) loadItems(ctx context.Context, src domain.Source) (items []domain.FeedItem, kind feed.Kind, stale bool, err error) {
	body, contentType, stale, err := o.download(ctx, src.URL)
	if err != nil {
		return nil, feed.KindUnknown, false, err
	}

	parsed, err := o.Parser.Parse(body, contentType, src.URL)
	if err != nil {
		return nil, feed.KindUnknown, stale, fmt.Errorf("parse %s: %w", src.URL, err)
	}
	doc, isHTML := parsed.(*feed.HTMLDoc)
	if !isHTML {
		return parsed.FeedItems(), parsed.Kind(), stale, nil
	}

	if links := doc.DiscoverFeeds(); len(links) > 0 {
		lgr.Printf("[DEBUG] %s announces feed %s", src, links[0])
		if fr, ferr := o.Fetcher.Fetch(ctx, links[0]); ferr == nil {
			if p, perr := o.Parser.Parse(fr.Body, fr.ContentType, links[0]); perr == nil && p.Kind() != feed.KindHTML {
				return p.FeedItems(), p.Kind(), fr.Stale, nil
			}
		} else {
			lgr.Printf("[DEBUG] discovered feed %s failed: %v", links[0], ferr)
		}
	}

	if o.Extractor == nil {
		return nil, feed.KindHTML, stale, fmt.Errorf("html page %s has no feed", src.URL)
	}
	art, err := o.Extractor.Extract(ctx, src.URL, doc.Body)
	if err != nil {
		return nil, feed.KindHTML, stale, fmt.Errorf("extract %s: %w", src.URL, err)
	}
	title := art.Title
	if title == "" {
		title = src.Name
	}
	return []domain.FeedItem{{Title: title, URL: src.URL, ContentText: art.Text}}, feed.KindHTML, stale, nil
}

// download uses the browser for matching urls and as a fallback when http fails
func (o *Orchestrator) download(ctx context.Context, url string) (body []byte, contentType string, stale bool, err error) {
	useBrowser := o.Browser != nil && o.BrowserMatch != nil && o.BrowserMatch(url)
	if useBrowser {
		lgr.Printf("[DEBUG] browser path for %s", url)
		html, berr := o.Browser.Load(ctx, url)
		if berr != nil {
			return nil, "", false, fmt.Errorf("browser %s: %w", url, berr)
		}
		return html, "text/html; charset=utf-8", false, nil
	}

	res, err := o.Fetcher.Fetch(ctx, url)
	if err == nil {
		return res.Body, res.ContentType, res.Stale, nil
	}
	if o.Browser == nil || errors.Is(err, fetch.ErrCircuitOpen) || ctx.Err() != nil {
		return nil, "", false, err
	}
	lgr.Printf("[INFO] http failed for %s, trying browser: %v", url, err)
	html, berr := o.Browser.Load(ctx, url)
	if berr != nil {
		return nil, "", false, fmt.Errorf("%w; browser: %v", err, berr)
	}
	return html, "text/html; charset=utf-8", false, nil
}

// processItem runs quality, dedup and scoring, then persists. Item errors and panics never abort the source.
func (o *Orchestrator) processItem(ctx context.Context, src domain.Source, item domain.FeedItem, res *SourceResult) {
	admitted := false
	defer func() {
		if r := recover(); r != nil {
			if admitted {
				o.Dedup.Forget(item.URL)
			}
			res.Errors++
			lgr.Printf("[ERROR] panic on item %q of %s: %v\n%s", item.Title, src, r, debug.Stack())
		}
	}()

	item.Title = normalizeTitle(item.Title)
	item.URL = feed.ResolveURL(src.URL, item.URL)
	if err := item.Validate(); err != nil {
		res.Filtered[ReasonInvalid]++
		lgr.Printf("[DEBUG] skip item of %s: %v", src, err)
		return
	}

	body := item.BestHTML()
	if o.EnrichShort && o.Extractor != nil && utf8.RuneCountInString(strings.TrimSpace(body)) < shortItemRunes {
		if art := o.enrich(ctx, item.URL); art != nil && utf8.RuneCountInString(art.Text) > utf8.RuneCountInString(body) {
			body = art.Text
		}
	}

	verdict := o.Quality.Evaluate(item.Title, body)
	if !verdict.ShouldProcess {
		res.Filtered[ReasonQuality]++
		lgr.Printf("[DEBUG] quality reject %q (%.2f): %s", item.Title, verdict.Score, strings.Join(verdict.Issues, ", "))
		return
	}
	if strings.TrimSpace(verdict.Text) == "" {
		res.Filtered[ReasonInvalid]++
		return
	}

	if d := o.Dedup.Check(item.Title, verdict.Text, item.URL); d.IsDuplicate {
		res.Filtered[ReasonDuplicate]++
		lgr.Printf("[DEBUG] duplicate %q: %s %.2f", item.Title, d.Type, d.Similarity)
		return
	}

	score, err := o.Scorer.Score(ctx, scoring.Request{Title: item.Title, Content: verdict.Text, Category: src.Category, Link: item.URL})
	if err != nil {
		res.Errors++
		lgr.Printf("[WARN] score %q: %v", item.Title, err)
		return
	}
	score = score.Clamp()

	// admitted only once scored, a concurrent worker may have taken the slot meanwhile
	if d := o.Dedup.Add(item.Title, verdict.Text, item.URL); d.IsDuplicate {
		res.Filtered[ReasonDuplicate]++
		lgr.Printf("[DEBUG] duplicate %q: %s %.2f", item.Title, d.Type, d.Similarity)
		return
	}
	admitted = true
	if score.Importance < o.MinImportance {
		res.Filtered[ReasonLowImportance]++
		lgr.Printf("[DEBUG] low importance %.2f for %q", score.Importance, item.Title)
		return
	}

	rec := domain.NewsRecord{
		UID:         domain.NewsUID(item.URL, item.Title),
		Title:       item.Title,
		Content:     verdict.Text,
		Link:        item.URL,
		Source:      src.Name,
		Category:    src.Category,
		Subcategory: src.Subcategory,
		PublishedAt: item.DatePublished,
		Importance:  score.Importance,
		Credibility: score.Credibility,
	}
	if err := o.Store.Upsert(ctx, []domain.NewsRecord{rec}); err != nil {
		o.Dedup.Forget(item.URL)
		res.Errors++
		lgr.Printf("[WARN] save %q: %v", item.Title, err)
		return
	}
	res.Saved++
	res.scoreSums.Scored++
	res.scoreSums.ImportanceSum += score.Importance
	res.scoreSums.CredibilitySum += score.Credibility
}

func (o *Orchestrator) enrich(ctx context.Context, link string) *content.Article {
	page, err := o.Fetcher.FetchPage(ctx, link)
	if err != nil {
		lgr.Printf("[DEBUG] can't fetch article %s: %v", link, err)
		return nil
	}
	art, err := o.Extractor.Extract(ctx, link, page.Body)
	if err != nil {
		return nil
	}
	return art
}

func (o *Orchestrator) reportProgress(ctx context.Context, r SourceResult) {
	d := progress.Delta{
		SourcesProcessed: 1,
		NewsFound:        r.Found,
		NewsSaved:        r.Saved,
		NewsFiltered:     r.FilteredTotal(),
		Errors:           r.Errors,
		Category:         r.Source.Category,
		Source: &progress.SourceStat{Name: r.Source.String(), Category: r.Source.Category,
			Found: r.Found, Saved: r.Saved, Filtered: r.FilteredTotal(), Errors: r.Errors},
	}
	if r.scoreSums.Scored > 0 {
		ai := r.scoreSums
		d.AI = &ai
	}
	if !r.Success {
		d.Error = &progress.ErrorEntry{Source: r.Source.String(), Message: r.Reason}
	}
	if err := o.Progress.Apply(ctx, d); err != nil {
		lgr.Printf("[WARN] can't update progress for %s: %v", r.Source, err)
	}
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
