package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dbpfindex/internal/resource"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](30, nil)

	var evicted []string
	c.OnEvict(func(k string, _ int64) { evicted = append(evicted, k) })

	require.True(t, c.Add("a", 1, 10))
	require.True(t, c.Add("b", 2, 10))
	require.True(t, c.Add("c", 3, 10))

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	require.True(t, c.Add("d", 4, 10))
	assert.Equal(t, []string{"b"}, evicted)
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("a"))
	assert.LessOrEqual(t, c.Size(), c.Budget())

	st := c.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, 3, st.Entries)
}

func TestLRU_OversizeNotRetained(t *testing.T) {
	c := New[int, []byte](50, nil)
	require.True(t, c.Add(1, make([]byte, 10), 10))

	assert.False(t, c.Add(2, make([]byte, 60), 60))
	assert.False(t, c.Contains(2))
	// Existing values survive.
	assert.True(t, c.Contains(1))
	assert.Equal(t, int64(10), c.Size())
}

func TestLRU_Replace(t *testing.T) {
	c := New[int, string](100, nil)
	c.Add(1, "x", 10)
	c.Add(1, "y", 40)

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "y", v)
	assert.Equal(t, int64(40), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Unbounded(t *testing.T) {
	c := New[int, int](0, nil)
	for i := range 1000 {
		require.True(t, c.Add(i, i, 1<<20))
	}
	assert.Equal(t, 1000, c.Len())
	assert.Zero(t, c.Stats().Evictions)
}

func TestLRU_SharedController(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 25})
	a := New[int, int](100, rc)
	b := New[int, int](100, rc)

	require.True(t, a.Add(1, 1, 20))
	// b cannot reserve and has nothing of its own to give back.
	assert.False(t, b.Add(1, 1, 10))

	// a evicts its own value to make room in the shared budget.
	require.True(t, a.Add(2, 2, 10))
	assert.False(t, a.Contains(1))
	assert.Equal(t, int64(10), rc.MemoryUsage())

	a.Remove(2)
	a.Purge()
	assert.Zero(t, rc.MemoryUsage())
}

func TestLRU_Concurrent(t *testing.T) {
	c := New[int, int](64, nil)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				c.Add(g*1000+i, i, 4)
				c.Get(g*1000 + i/2)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), int64(64))
}
