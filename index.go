package dbpfindex

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/internal/cache"
	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/internal/resource"
	"github.com/hupe1980/dbpfindex/scan"
	"github.com/hupe1980/dbpfindex/tgi"
)

// source is one indexed archive file.
type source struct {
	path string
	id   int
}

// Index is a queryable index of the entries of many DBPF archives.
//
// Build registers entries in load order under a write lock; queries and
// reads may run concurrently with each other but wait for a running
// registration to finish.
type Index struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector
	fsys    fs.FileSystem
	scanner *scan.Scanner
	rc      *resource.Controller

	mu            sync.RWMutex
	entries       *tgi.Index[*Entry]
	sources       []*source
	byPath        map[string]*source
	families      map[uint32][]*Entry
	familiesBuilt bool
	generation    uint64 // bumped by register

	cache   *cache.LRU[*Entry, any]
	decodes singleflight.Group
}

// New creates an empty index. Configuration errors, such as a plugin
// directory that does not exist, are reported as *ConfigError.
func New(optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	if err := o.validate(); err != nil {
		return nil, err
	}

	dirs := o.dirs
	if o.includeBaseline {
		dirs = append([]string{o.baselineDir}, dirs...)
	}
	for _, dir := range dirs {
		info, err := o.fsys.Stat(dir)
		if err != nil {
			return nil, configErr("dirs", "cannot read "+dir, err)
		}
		if !info.IsDir() {
			return nil, configErr("dirs", dir+" is not a directory", nil)
		}
	}

	bg := o.limits.MaxBackgroundWorkers
	if bg == 0 {
		bg = runtime.GOMAXPROCS(0)
	}
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     o.limits.MemoryLimitBytes,
		MaxBackgroundWorkers: int64(bg),
		IOLimitBytesPerSec:   int64(o.limits.IOLimitBytesPerSec),
	})

	idx := &Index{
		opts:    o,
		logger:  o.logger,
		metrics: o.metricsCollector,
		fsys:    o.fsys,
		scanner: &scan.Scanner{
			FS:         o.fsys,
			Extensions: o.extensions,
			Logger:     o.logger.Logger,
		},
		rc:      rc,
		entries: tgi.NewIndex[*Entry](),
		byPath:  make(map[string]*source),
		cache:   cache.New[*Entry, any](o.memoryBudget, rc),
	}
	idx.cache.OnEvict(func(e *Entry, size int64) {
		idx.metrics.RecordEviction(size)
		idx.logger.LogEviction(context.Background(), e, size)
	})
	return idx, nil
}

// Len returns the number of registered entries, overridden ones included.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries.Len()
}

// Files returns the indexed archive paths in load order.
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.sources))
	for i, s := range idx.sources {
		out[i] = s.path
	}
	return out
}

// Entries returns every registered entry in registration order.
func (idx *Index) Entries() []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*Entry, 0, idx.entries.Len())
	for _, e := range idx.entries.All() {
		out = append(out, e)
	}
	return out
}

// Find returns the winning entry for q: the most recently registered
// match. The empty query matches nothing.
func (idx *Index) Find(q tgi.Query) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries.Find(q)
}

// FindTGI is Find for an exact key.
func (idx *Index) FindTGI(t, g, i uint32) (*Entry, bool) {
	return idx.Find(tgi.Exact(tgi.New(t, g, i)))
}

// FindFunc returns the most recently registered entry satisfying pred.
func (idx *Index) FindFunc(pred func(*Entry) bool) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries.FindFunc(pred)
}

// FindAll returns every entry matching q in registration order.
func (idx *Index) FindAll(q tgi.Query) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries.FindAll(q)
}

// FindAllFunc returns every entry satisfying pred in registration order.
func (idx *Index) FindAllFunc(pred func(*Entry) bool) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries.FindAllFunc(pred)
}

// Lookup is Find returning ErrNotFound on a miss.
func (idx *Index) Lookup(key tgi.TGI) (*Entry, error) {
	if e, ok := idx.Find(tgi.Exact(key)); ok {
		return e, nil
	}
	return nil, ErrNotFound
}

// CacheStats reports decoded payload cache counters.
func (idx *Index) CacheStats() cache.Stats {
	return idx.cache.Stats()
}

// PurgeCache drops every decoded payload. Entries stay registered.
func (idx *Index) PurgeCache() {
	idx.cache.Purge()
}

// register appends the entries of one opened archive. Callers hold mu.
func (idx *Index) register(path string, infos []dbpf.EntryInfo) int {
	src := &source{path: path, id: len(idx.sources)}
	idx.generation++
	idx.sources = append(idx.sources, src)
	idx.byPath[path] = src

	n := 0
	// Earlier rows of one archive win, so they are registered last.
	for i := len(infos) - 1; i >= 0; i-- {
		if infos[i].Key.Type == dbpf.TypeDIR {
			continue
		}
		idx.add(newEntry(idx, src, infos[i]))
		n++
	}
	return n
}

func (idx *Index) add(e *Entry) {
	e.pos = uint32(idx.entries.Len())
	idx.entries.Add(e)
}
