package dbpfindex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/tgi"
)

// Entry is the handle of one registered archive entry. Its metadata is
// fixed; the decoded content is cached by the index and decoded again
// after eviction.
type Entry struct {
	Type     uint32
	Group    uint32
	Instance uint32

	Offset         uint32
	CompressedSize uint32
	FileSize       uint32
	Compressed     bool

	idx *Index
	src *source
	pos uint32 // registration position
}

func newEntry(idx *Index, src *source, info dbpf.EntryInfo) *Entry {
	return &Entry{
		Type:           info.Key.Type,
		Group:          info.Key.Group,
		Instance:       info.Key.Instance,
		Offset:         info.Offset,
		CompressedSize: info.CompressedSize,
		FileSize:       info.FileSize,
		Compressed:     info.Compressed,
		idx:            idx,
		src:            src,
	}
}

// TGI implements tgi.Indexable.
func (e *Entry) TGI() tgi.TGI {
	return tgi.New(e.Type, e.Group, e.Instance)
}

// Path returns the archive file holding the entry.
func (e *Entry) Path() string { return e.src.path }

func (e *Entry) String() string {
	return e.TGI().String() + "@" + e.src.path
}

// IsExemplar reports whether the entry decodes to an exemplar or cohort.
func (e *Entry) IsExemplar() bool { return dbpf.IsExemplar(e.Type) }

func (e *Entry) info() dbpf.EntryInfo {
	return dbpf.EntryInfo{
		Key:            e.TGI(),
		Offset:         e.Offset,
		CompressedSize: e.CompressedSize,
		FileSize:       e.FileSize,
		Compressed:     e.Compressed,
	}
}

// ReadRaw returns the stored, possibly compressed, bytes.
func (e *Entry) ReadRaw(ctx context.Context) ([]byte, error) {
	if err := e.idx.rc.AcquireIO(ctx, int(e.CompressedSize)); err != nil {
		return nil, err
	}
	f, err := fs.Open(e.idx.fsys, e.src.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dbpf.ReadRaw(f, e.info())
}

// Decompress returns the uncompressed bytes. It bypasses the cache.
func (e *Entry) Decompress(ctx context.Context) ([]byte, error) {
	raw, err := e.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}
	return dbpf.Decompress(e.info(), raw)
}

// Read returns the decoded content: *exemplar.Exemplar for exemplars and
// cohorts, []byte otherwise. The first read decodes and caches the
// content; concurrent first reads share one decode. The shared decode
// outlives a caller whose ctx ends, so each caller only sees its own ctx
// error.
func (e *Entry) Read(ctx context.Context) (any, error) {
	idx := e.idx
	if v, ok := idx.cache.Get(e); ok {
		idx.metrics.RecordRead(true, 0, nil)
		return v, nil
	}

	start := time.Now()
	ch := idx.decodes.DoChan(strconv.FormatUint(uint64(e.pos), 10), func() (any, error) {
		v, size, err := e.decode(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		idx.cache.Add(e, v, size)
		return v, nil
	})
	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	idx.metrics.RecordRead(false, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e, err)
	}
	return v, nil
}

func (e *Entry) decode(ctx context.Context) (any, int64, error) {
	data, err := e.Decompress(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !e.IsExemplar() {
		return data, int64(len(data)), nil
	}
	ex, err := exemplar.Decode(data)
	if err != nil {
		return nil, 0, err
	}
	return ex, int64(len(data)), nil
}

// Exemplar reads the entry as an exemplar or cohort.
func (e *Entry) Exemplar(ctx context.Context) (*exemplar.Exemplar, error) {
	if !e.IsExemplar() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotExemplar, e.TGI(), dbpf.TypeName(e.Type))
	}
	v, err := e.Read(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*exemplar.Exemplar), nil
}

// Cached reports whether the decoded content is currently cached.
func (e *Entry) Cached() bool {
	return e.idx.cache.Contains(e)
}
