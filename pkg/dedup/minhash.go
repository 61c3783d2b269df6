package dedup

import (
	"math"
	"math/bits"
	"math/rand"
)

// NumPerm is the number of permutations in a MinHash signature
const NumPerm = 128

// mersenne61 is the prime 2^61-1 used for universal hashing
const mersenne61 = (1 << 61) - 1

// minhashSeed keeps permutations identical across processes so signatures are comparable
const minhashSeed = 1

// MinHash is a signature of NumPerm minimal permuted hashes
type MinHash [NumPerm]uint64

// MinHasher holds the permutation parameters h_i(x) = (a_i*x + b_i) mod (2^61-1)
type MinHasher struct {
	a, b [NumPerm]uint64
}

// NewMinHasher makes a hasher with deterministic permutations
func NewMinHasher() *MinHasher {
	rnd := rand.New(rand.NewSource(minhashSeed)) //nolint:gosec // fixed permutations, not security
	m := &MinHasher{}
	for i := 0; i < NumPerm; i++ {
		m.a[i] = 1 + uint64(rnd.Int63n(mersenne61-1))
		m.b[i] = uint64(rnd.Int63n(mersenne61))
	}
	return m
}

// Sum computes the signature of a feature set
func (m *MinHasher) Sum(features []string) MinHash {
	var res MinHash
	for i := range res {
		res[i] = math.MaxUint64
	}
	for _, f := range features {
		x := hash64(f) & mersenne61
		for i := 0; i < NumPerm; i++ {
			if h := permute(m.a[i], m.b[i], x); h < res[i] {
				res[i] = h
			}
		}
	}
	return res
}

// Jaccard estimates the Jaccard similarity of the underlying sets
func (h MinHash) Jaccard(other MinHash) float64 {
	eq := 0
	for i := range h {
		if h[i] == other[i] {
			eq++
		}
	}
	return float64(eq) / NumPerm
}

// permute returns (a*x + b) mod 2^61-1 without overflow
func permute(a, b, x uint64) uint64 {
	hi, lo := bits.Mul64(a, x)
	// 2^64 = 8 (mod 2^61-1)
	r := mod61(hi<<3) + mod61(lo)
	r = mod61(r) + b
	return mod61(r)
}

func mod61(x uint64) uint64 {
	r := (x & mersenne61) + (x >> 61)
	if r >= mersenne61 {
		r -= mersenne61
	}
	return r
}
