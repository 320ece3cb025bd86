package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/dbpfindex/tgi"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// TGI returns a random key.
func (r *RNG) TGI() tgi.TGI {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tgi.New(r.rand.Uint32(), r.rand.Uint32(), r.rand.Uint32())
}

// UniqueTGIs returns n distinct random keys.
func (r *RNG) UniqueTGIs(n int) []tgi.TGI {
	seen := make(map[tgi.TGI]struct{}, n)
	out := make([]tgi.TGI, 0, n)
	for len(out) < n {
		key := r.TGI()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
