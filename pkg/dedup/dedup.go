// Package dedup detects duplicate and near-duplicate news items by canonical url,
// SimHash and MinHash LSH over a bounded, expiring in-memory index.
package dedup

import (
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DuplicateType names the check that matched
type DuplicateType string

// duplicate types
const (
	DuplicateNone     DuplicateType = ""
	DuplicateExactURL DuplicateType = "exact_url"
	DuplicateSimHash  DuplicateType = "simhash"
	DuplicateMinHash  DuplicateType = "minhash"
)

// minSimHashSimilarity is the similarity floor applied together with the hamming threshold
const minSimHashSimilarity = 0.8

// Options configures a Deduplicator. Zero values get defaults.
type Options struct {
	SimHashThreshold int
	MinHashThreshold float64
	MaxItems         int
	TTL              time.Duration
}

// Entry is an admitted item as kept in the index
type Entry struct {
	ID           string // md5 of the canonical url
	Title        string
	URL          string
	CanonicalURL string
	SimHash      uint64
	MinHash      MinHash
	AddedAt      time.Time
	hasFeatures  bool
}

// Result is the dedup verdict
type Result struct {
	IsDuplicate bool
	Type        DuplicateType
	Similarity  float64
	Existing    *Entry
}

// Deduplicator is safe for concurrent use. Entries are evicted by LRU size and age,
// and the LSH index follows the same evictions.
type Deduplicator struct {
	opts   Options
	hasher *MinHasher

	mu      sync.Mutex
	entries *expirable.LRU[string, *Entry]
	lsh     *LSH

	evictMu sync.Mutex
	evicted []*Entry // filled from the LRU callback, drained under mu
}

// New makes a Deduplicator
func New(opts Options) *Deduplicator {
	if opts.SimHashThreshold <= 0 {
		opts.SimHashThreshold = 3
	}
	if opts.MinHashThreshold <= 0 {
		opts.MinHashThreshold = 0.8
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 20000
	}
	if opts.TTL <= 0 {
		opts.TTL = 72 * time.Hour
	}
	d := &Deduplicator{opts: opts, hasher: NewMinHasher(), lsh: NewLSH(opts.MinHashThreshold)}
	d.entries = expirable.NewLRU[string, *Entry](opts.MaxItems, d.onEvict, opts.TTL)
	return d
}

// onEvict runs under the LRU lock, possibly from its cleanup goroutine, so it only queues
func (d *Deduplicator) onEvict(_ string, e *Entry) {
	d.evictMu.Lock()
	d.evicted = append(d.evicted, e)
	d.evictMu.Unlock()
}

// drainEvicted removes evicted entries from the LSH index, caller holds mu
func (d *Deduplicator) drainEvicted() {
	d.evictMu.Lock()
	pending := d.evicted
	d.evicted = nil
	d.evictMu.Unlock()
	for _, e := range pending {
		if cur, ok := d.entries.Peek(e.ID); ok && cur != e {
			continue // re-admitted under the same id
		}
		d.lsh.Remove(e.ID)
	}
}

// Check classifies an item against the index without admitting it
func (d *Deduplicator) Check(title, text, url string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainEvicted()
	res, _ := d.check(d.entry(title, text, url))
	return res
}

// Add checks an item and admits it when it is not a duplicate
func (d *Deduplicator) Add(title, text, url string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainEvicted()
	res, e := d.check(d.entry(title, text, url))
	if res.IsDuplicate {
		return res
	}
	d.insert(e)
	return res
}

// Seed admits an already persisted item without checking it
func (d *Deduplicator) Seed(title, text, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainEvicted()
	d.insert(d.entry(title, text, url))
}

// Forget drops the item admitted under url, freeing its slot for a later retry
func (d *Deduplicator) Forget(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Remove(URLHash(url))
	d.drainEvicted()
}

// Len returns the number of live entries
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainEvicted()
	return d.entries.Len()
}

func (d *Deduplicator) entry(title, text, url string) *Entry {
	canonical := CanonicalURL(url)
	features := Features(strings.TrimSpace(title) + " " + text)
	e := &Entry{
		ID:           URLHash(url),
		Title:        strings.TrimSpace(title),
		URL:          url,
		CanonicalURL: canonical,
		AddedAt:      time.Now(),
		hasFeatures:  len(features) > 0,
	}
	if e.hasFeatures {
		e.SimHash = SimHash(features)
		e.MinHash = d.hasher.Sum(features)
	}
	return e
}

func (d *Deduplicator) check(e *Entry) (Result, *Entry) {
	if existing, ok := d.entries.Peek(e.ID); ok {
		return Result{IsDuplicate: true, Type: DuplicateExactURL, Similarity: 1, Existing: existing}, e
	}
	if !e.hasFeatures {
		return Result{}, e
	}

	// simhash, linear scan
	bestDist, bestSimEntry := 65, (*Entry)(nil)
	for _, other := range d.entries.Values() {
		if other == nil || !other.hasFeatures {
			continue
		}
		dist := Hamming(e.SimHash, other.SimHash)
		if dist <= d.opts.SimHashThreshold && SimHashSimilarity(dist) >= minSimHashSimilarity && dist < bestDist {
			bestDist, bestSimEntry = dist, other
		}
	}
	if bestSimEntry != nil {
		return Result{IsDuplicate: true, Type: DuplicateSimHash, Similarity: SimHashSimilarity(bestDist), Existing: bestSimEntry}, e
	}

	// minhash candidates from lsh
	bestSim, bestEntry := 0.0, (*Entry)(nil)
	for _, id := range d.lsh.Query(e.MinHash) {
		other, ok := d.entries.Peek(id)
		if !ok {
			continue
		}
		if sim := e.MinHash.Jaccard(other.MinHash); sim >= d.opts.MinHashThreshold && sim > bestSim {
			bestSim, bestEntry = sim, other
		}
	}
	if bestEntry != nil {
		return Result{IsDuplicate: true, Type: DuplicateMinHash, Similarity: bestSim, Existing: bestEntry}, e
	}
	return Result{}, e
}

func (d *Deduplicator) insert(e *Entry) {
	d.entries.Add(e.ID, e)
	if e.hasFeatures {
		d.lsh.Insert(e.ID, e.MinHash)
	} else {
		d.lsh.Remove(e.ID)
	}
	lgr.Printf("[DEBUG] dedup admitted %s (%d entries)", e.CanonicalURL, d.entries.Len())
}
