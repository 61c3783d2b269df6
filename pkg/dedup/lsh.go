package dedup

import (
	"encoding/binary"
	"math"
)

// LSH is a banded locality-sensitive index over MinHash signatures
type LSH struct {
	bands, rows int
	tables      []map[string]map[string]struct{}
	keys        map[string][]string // id -> band keys, for removal
}

// NewLSH makes an index tuned for the Jaccard threshold
func NewLSH(threshold float64) *LSH {
	bands, rows := lshParams(threshold, NumPerm)
	l := &LSH{bands: bands, rows: rows, tables: make([]map[string]map[string]struct{}, bands), keys: map[string][]string{}}
	for i := range l.tables {
		l.tables[i] = map[string]map[string]struct{}{}
	}
	return l
}

// lshParams picks bands*rows = numPerm with the largest (1/b)^(1/r) not above threshold,
// favouring recall since candidates are verified by exact signature comparison
func lshParams(threshold float64, numPerm int) (bands, rows int) {
	bands, rows = numPerm, 1
	best := -1.0
	for r := 1; r <= numPerm; r++ {
		if numPerm%r != 0 {
			continue
		}
		b := numPerm / r
		t := math.Pow(1/float64(b), 1/float64(r))
		if t <= threshold && t > best {
			best, bands, rows = t, b, r
		}
	}
	return bands, rows
}

// Insert adds or replaces the signature of id
func (l *LSH) Insert(id string, mh MinHash) {
	l.Remove(id)
	keys := make([]string, l.bands)
	for i := 0; i < l.bands; i++ {
		k := l.bandKey(mh, i)
		keys[i] = k
		bucket, ok := l.tables[i][k]
		if !ok {
			bucket = map[string]struct{}{}
			l.tables[i][k] = bucket
		}
		bucket[id] = struct{}{}
	}
	l.keys[id] = keys
}

// Query returns ids sharing at least one band with the signature
func (l *LSH) Query(mh MinHash) []string {
	seen := map[string]struct{}{}
	var res []string
	for i := 0; i < l.bands; i++ {
		for id := range l.tables[i][l.bandKey(mh, i)] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			res = append(res, id)
		}
	}
	return res
}

// Remove drops id from all bands
func (l *LSH) Remove(id string) {
	keys, ok := l.keys[id]
	if !ok {
		return
	}
	for i, k := range keys {
		if bucket, ok := l.tables[i][k]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(l.tables[i], k)
			}
		}
	}
	delete(l.keys, id)
}

// Len returns the number of indexed ids
func (l *LSH) Len() int {
	return len(l.keys)
}

func (l *LSH) bandKey(mh MinHash, band int) string {
	buf := make([]byte, 8*l.rows)
	for j := 0; j < l.rows; j++ {
		binary.LittleEndian.PutUint64(buf[j*8:], mh[band*l.rows+j])
	}
	return string(buf)
}
