// Package promocache is a fast negative cache of discount codes. It answers
// "does this code definitely not exist" without a store round trip, which
// keeps bulk-imported promo campaigns (millions of codes) cheap to probe
// from the order path. False positives fall through to the store lookup, so
// the cache can only be wrong in the safe direction.
package promocache

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const defaultFPR = 0.001

// Filter wraps a bloom filter over the known discount codes. Additions are
// append-only; invalidation is unnecessary because deactivated codes are
// rejected by the eligibility checks, not by the cache.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// New creates a Filter sized for the expected number of codes.
func New(capacity uint) *Filter {
	if capacity == 0 {
		capacity = 1
	}
	return &Filter{bf: bloom.NewWithEstimates(capacity, defaultFPR)}
}

// Seed creates a Filter preloaded with the given codes.
func Seed(codes []string) *Filter {
	f := New(uint(len(codes)))
	for _, code := range codes {
		f.Add(code)
	}
	return f
}

// Add registers a code. Codes are case-insensitive.
func (f *Filter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(strings.ToUpper(code))
}

// MayContain reports whether the code may exist. A false return is
// definitive: the code was never added.
func (f *Filter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(strings.ToUpper(code))
}
