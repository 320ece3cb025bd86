package blobstore

import (
	"context"

	"github.com/hupe1980/dbpfindex/internal/cache"
)

// CachingStore keeps recently read blobs in memory in front of a slower
// store. Snapshots are read whole, so blobs are cached whole up to a
// byte budget. Writes and deletes through the store invalidate the entry.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU[string, []byte]
}

// NewCachingStore wraps inner with a cache of at most budget bytes. A
// budget of 0 is unbounded.
func NewCachingStore(inner BlobStore, budget int64) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: cache.New[string, []byte](budget, nil),
	}
}

// Open returns the cached content of name, fetching it on a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		return memoryBlob(data), nil
	}
	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	s.cache.Add(name, data, int64(len(data)))
	return memoryBlob(data), nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Remove(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats reports cache counters.
func (s *CachingStore) Stats() cache.Stats {
	return s.cache.Stats()
}
