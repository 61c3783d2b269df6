package dedup

import (
	"hash/fnv"
	"math/bits"
)

// SimHash computes a 64-bit simhash with equal feature weights
func SimHash(features []string) uint64 {
	var v [64]int
	for _, f := range features {
		h := hash64(f)
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				v[i]++
			} else {
				v[i]--
			}
		}
	}
	var res uint64
	for i := 0; i < 64; i++ {
		if v[i] > 0 {
			res |= 1 << uint(i)
		}
	}
	return res
}

// Hamming returns the number of differing bits
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SimHashSimilarity converts a hamming distance to similarity 1 - d/64
func SimHashSimilarity(distance int) float64 {
	return 1 - float64(distance)/64
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
