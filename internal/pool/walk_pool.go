// Package pool provides reusable scratch state for parent chain walks.
// Uses sync.Pool for memory reuse and bitsets for visited tracking.
package pool

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

const (
	// DefaultMaxEntries is the initial capacity of the visited bitset.
	DefaultMaxEntries = 1 << 16

	// DefaultChainCapacity is the initial capacity of the chain buffer.
	DefaultChainCapacity = 16
)

// Walk tracks the entry positions visited while following a chain of
// parent references, so cycles are detected in constant time per step.
type Walk struct {
	Visited *bitset.BitSet
	Chain   []uint32

	maxEntries uint32
}

var walkPool = sync.Pool{
	New: func() any {
		return &Walk{
			Visited:    bitset.New(DefaultMaxEntries),
			Chain:      make([]uint32, 0, DefaultChainCapacity),
			maxEntries: DefaultMaxEntries,
		}
	},
}

// Get retrieves a cleared Walk from the pool.
func Get() *Walk {
	w := walkPool.Get().(*Walk)
	w.Reset()
	return w
}

// Put returns w to the pool. Oversized bitsets are dropped.
func Put(w *Walk) {
	if w.Visited.Len() > DefaultMaxEntries*16 {
		w.Visited = bitset.New(DefaultMaxEntries)
		w.maxEntries = DefaultMaxEntries
	}
	walkPool.Put(w)
}

// Reset clears w for reuse.
func (w *Walk) Reset() {
	w.Visited.ClearAll()
	w.Chain = w.Chain[:0]
}

func (w *Walk) ensure(pos uint32) {
	if pos < w.maxEntries {
		return
	}
	size := max(pos+1, w.maxEntries*2)
	grown := bitset.New(uint(size))
	grown.InPlaceUnion(w.Visited)
	w.Visited = grown
	w.maxEntries = size
}

// Visit records pos. It returns false if pos was already visited, which
// means the chain loops.
func (w *Walk) Visit(pos uint32) bool {
	w.ensure(pos)
	if w.Visited.Test(uint(pos)) {
		return false
	}
	w.Visited.Set(uint(pos))
	w.Chain = append(w.Chain, pos)
	return true
}

// Seen reports whether pos was visited.
func (w *Walk) Seen(pos uint32) bool {
	if pos >= w.maxEntries {
		return false
	}
	return w.Visited.Test(uint(pos))
}

// Depth returns the number of visited positions.
func (w *Walk) Depth() int { return len(w.Chain) }
