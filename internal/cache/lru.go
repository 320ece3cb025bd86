package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/dbpfindex/internal/resource"
)

// LRU is a size-bounded least-recently-used cache. Every value carries a
// caller supplied size estimate; the sum of retained sizes never exceeds
// the budget. A budget of 0 never evicts.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	budget  int64
	size    int64
	items   map[K]*list.Element
	order   *list.List
	rc      *resource.Controller
	onEvict func(key K, size int64)

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
	Budget    int64
}

// New creates a cache holding at most budget bytes.
// If rc is provided, retained bytes are also reserved on it.
func New[K comparable, V any](budget int64, rc *resource.Controller) *LRU[K, V] {
	return &LRU[K, V]{
		budget: budget,
		items:  make(map[K]*list.Element),
		order:  list.New(),
		rc:     rc,
	}
}

// OnEvict registers fn to run after a value is evicted for space. It is
// not called for Remove or Purge.
func (c *LRU[K, V]) OnEvict(fn func(key K, size int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns a cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Contains reports whether key is cached without touching recency or
// counters.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Add caches value under key and evicts least recently used values until
// the budget holds. It returns false when the value was not retained: a
// single value larger than the budget is never cached.
func (c *LRU[K, V]) Add(key K, value V, size int64) bool {
	if size < 0 {
		size = 0
	}

	c.mu.Lock()
	evicted, ok := c.add(key, value, size)
	fn := c.onEvict
	c.mu.Unlock()

	if fn != nil {
		for _, e := range evicted {
			fn(e.key, e.size)
		}
	}
	return ok
}

func (c *LRU[K, V]) add(key K, value V, size int64) ([]*entry[K, V], bool) {
	// Replace in place by removing the old value first.
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	if c.budget > 0 && size > c.budget {
		return nil, false
	}

	var evicted []*entry[K, V]
	if c.budget > 0 {
		for c.size+size > c.budget {
			el := c.order.Back()
			if el == nil {
				break
			}
			evicted = append(evicted, c.removeElement(el))
		}
	}

	// The shared controller may still refuse; give back more of our own
	// space before giving up.
	for !c.rc.TryAcquireMemory(size) {
		el := c.order.Back()
		if el == nil {
			c.evictions.Add(int64(len(evicted)))
			return evicted, false
		}
		evicted = append(evicted, c.removeElement(el))
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, size: size})
	c.size += size
	c.evictions.Add(int64(len(evicted)))
	return evicted, true
}

// Remove drops key. It reports whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// Purge drops every value.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Back(); el != nil; el = c.order.Back() {
		c.removeElement(el)
	}
}

func (c *LRU[K, V]) removeElement(el *list.Element) *entry[K, V] {
	c.order.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.size -= e.size
	c.rc.ReleaseMemory(e.size)
	return e
}

// Len returns the number of cached values.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the retained bytes.
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Budget returns the configured budget.
func (c *LRU[K, V]) Budget() int64 { return c.budget }

// Stats returns the current counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   len(c.items),
		Bytes:     c.size,
		Budget:    c.budget,
	}
}
