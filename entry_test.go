package dbpfindex

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/testutil"
	"github.com/hupe1980/dbpfindex/tgi"
)

func cacheFixture(t *testing.T, opts ...Option) (*Index, []*Entry) {
	t.Helper()
	dir := t.TempDir()
	testutil.NewArchive().
		Add(tgi.New(1, 1, 1), bytes.Repeat([]byte{'a'}, 60)).
		AddCompressed(tgi.New(1, 1, 2), bytes.Repeat([]byte{'b'}, 60)).
		Add(tgi.New(1, 1, 3), bytes.Repeat([]byte{'c'}, 200)).
		WriteFile(t, dir, "cache.dat")

	idx := newTestIndex(t, append([]Option{WithDirs(dir)}, opts...)...)
	mustBuild(t, idx)

	var out []*Entry
	for i := uint32(1); i <= 3; i++ {
		e, ok := idx.FindTGI(1, 1, i)
		require.True(t, ok)
		out = append(out, e)
	}
	return idx, out
}

func TestRead_CachesDecodedContent(t *testing.T) {
	idx, es := cacheFixture(t)

	assert.False(t, es[0].Cached())
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 60), []byte(readString(t, es[0])))
	assert.True(t, es[0].Cached())
	readString(t, es[0])

	stats := idx.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(60), stats.Bytes)
	assert.Zero(t, stats.Budget)

	idx.PurgeCache()
	assert.False(t, es[0].Cached())
	assert.Len(t, idx.Entries(), 3)
}

func TestRead_BudgetEvictsAndRereads(t *testing.T) {
	mc := &BasicMetricsCollector{}
	idx, es := cacheFixture(t, WithMemoryBudget(100), WithMetricsCollector(mc))

	readString(t, es[0])
	readString(t, es[1])
	assert.False(t, es[0].Cached(), "least recently used entry is evicted")
	assert.True(t, es[1].Cached())

	// An evicted entry decodes again on demand.
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 60), []byte(readString(t, es[0])))

	stats := idx.CacheStats()
	assert.LessOrEqual(t, stats.Bytes, int64(100))
	assert.Equal(t, int64(2), stats.Evictions)
	assert.Equal(t, int64(3), stats.Misses)

	got := mc.GetStats()
	assert.Equal(t, int64(2), got.Evictions)
	assert.Equal(t, int64(120), got.EvictedBytes)
	assert.Equal(t, int64(3), got.ReadMisses)
}

func TestRead_OversizeIsNotRetained(t *testing.T) {
	idx, es := cacheFixture(t, WithMemoryBudget(100))

	readString(t, es[0])
	assert.Len(t, readString(t, es[2]), 200)
	assert.False(t, es[2].Cached())
	assert.True(t, es[0].Cached(), "an oversize payload evicts nothing")
	assert.Zero(t, idx.CacheStats().Evictions)
}

func TestRead_SharedMemoryLimit(t *testing.T) {
	idx, es := cacheFixture(t, WithResourceLimits(ResourceLimits{MemoryLimitBytes: 100}))

	readString(t, es[0])
	readString(t, es[1])
	assert.LessOrEqual(t, idx.CacheStats().Bytes, int64(100))
	assert.False(t, es[0].Cached())
}

func TestRead_CancelledCallerDoesNotFailOthers(t *testing.T) {
	_, es := cacheFixture(t, WithResourceLimits(ResourceLimits{IOLimitBytesPerSec: 100}))
	slow := es[2]

	ctx, cancel := context.WithCancel(t.Context())
	first := make(chan error, 1)
	go func() {
		_, err := slow.Read(ctx)
		first <- err
	}()
	time.Sleep(50 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		v, err := slow.Read(t.Context())
		if err == nil && len(v.([]byte)) != 200 {
			err = fmt.Errorf("got %d bytes", len(v.([]byte)))
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	require.NoError(t, <-second)
	assert.True(t, slow.Cached())
}

func TestRead_RawAndDecompress(t *testing.T) {
	_, es := cacheFixture(t)

	raw, err := es[1].ReadRaw(t.Context())
	require.NoError(t, err)
	assert.Len(t, raw, int(es[1].CompressedSize))

	data, err := es[1].Decompress(t.Context())
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'b'}, 60), data)
	assert.False(t, es[1].Cached(), "Decompress bypasses the cache")
}

func TestRead_Exemplar(t *testing.T) {
	dir := t.TempDir()
	parent := cohortKey(1, 1)
	testutil.NewArchive().
		AddExemplar(exKey(2, 2), testutil.Building(parent, 0x100, 0x200)).
		Add(tgi.New(3, 3, 3), []byte("plain")).
		WriteFile(t, dir, "ex.dat")

	idx := newTestIndex(t, WithDirs(dir))
	mustBuild(t, idx)

	e, ok := idx.Find(tgi.Exact(exKey(2, 2)))
	require.True(t, ok)
	assert.True(t, e.IsExemplar())

	ex, err := e.Exemplar(t.Context())
	require.NoError(t, err)
	assert.Equal(t, parent, ex.Parent)
	v, ok := ex.Value(exemplar.BuildingpropFamily)
	require.True(t, ok)
	assert.Equal(t, []uint32{0x100, 0x200}, v.Uint32s())

	v2, err := e.Read(t.Context())
	require.NoError(t, err)
	assert.Same(t, ex, v2)

	plain, _ := idx.FindTGI(3, 3, 3)
	_, err = plain.Exemplar(t.Context())
	assert.ErrorIs(t, err, ErrNotExemplar)
}

func TestRead_ConcurrentFirstReadsShareDecode(t *testing.T) {
	dir := t.TempDir()
	testutil.NewArchive().AddExemplar(exKey(1, 1), testutil.Building(tgi.TGI{}, 0x1)).WriteFile(t, dir, "c.dat")

	idx := newTestIndex(t, WithDirs(dir))
	mustBuild(t, idx)
	e, _ := idx.Find(tgi.Exact(exKey(1, 1)))

	const n = 16
	results := make([]*exemplar.Exemplar, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex, err := e.Exemplar(t.Context())
			assert.NoError(t, err)
			results[i] = ex
		}()
	}
	wg.Wait()

	for _, ex := range results[1:] {
		assert.Same(t, results[0], ex)
	}
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	testutil.NewArchive().Add(exKey(1, 1), []byte("not an exemplar")).WriteFile(t, dir, "bad.dat")
	testutil.NewArchive().Add(tgi.New(5, 5, 5), bytes.Repeat([]byte{'x'}, 64)).WriteFile(t, dir, "flaky.dat")

	ffs := fs.NewFaultyFS(nil)
	idx := newTestIndex(t, WithDirs(dir), WithFileSystem(ffs))
	mustBuild(t, idx)

	e, _ := idx.Find(tgi.Exact(exKey(1, 1)))
	_, err := e.Read(t.Context())
	assert.ErrorIs(t, err, exemplar.ErrInvalidExemplar)
	assert.False(t, e.Cached())

	// Faults injected after the build hit reads only.
	ffs.AddRule("flaky.dat", fs.Fault{FailOnRead: true})
	flaky, _ := idx.FindTGI(5, 5, 5)
	_, err = flaky.Read(t.Context())
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Contains(t, err.Error(), flaky.String())
}
