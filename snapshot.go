package dbpfindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/dbpfindex/blobstore"
	"github.com/hupe1980/dbpfindex/codec"
	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/internal/hash"
	"github.com/hupe1980/dbpfindex/tgi"
)

// SnapshotVersion is the snapshot document version written by this
// package.
const SnapshotVersion = 1

// SnapshotEntry is one registered entry:
// type, group, instance, file, offset, compressed size, size, compressed.
type SnapshotEntry [8]uint32

// Snapshot is the portable form of an index. Entries are listed in
// registration order and refer to Files by position; Families refer to
// Entries by position.
type Snapshot struct {
	Version  int                 `json:"version"`
	ID       string              `json:"id"`
	Created  time.Time           `json:"created"`
	Files    []string            `json:"files"`
	Entries  []SnapshotEntry     `json:"entries"`
	Families map[uint32][]uint32 `json:"families,omitempty"`
}

// Snapshot captures the current entries and, when built, the families.
func (idx *Index) Snapshot() *Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s := &Snapshot{
		Version: SnapshotVersion,
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Files:   make([]string, len(idx.sources)),
		Entries: make([]SnapshotEntry, 0, idx.entries.Len()),
	}
	for i, src := range idx.sources {
		s.Files[i] = src.path
	}
	for _, e := range idx.entries.All() {
		var compressed uint32
		if e.Compressed {
			compressed = 1
		}
		s.Entries = append(s.Entries, SnapshotEntry{
			e.Type, e.Group, e.Instance, uint32(e.src.id),
			e.Offset, e.CompressedSize, e.FileSize, compressed,
		})
	}
	if idx.familiesBuilt {
		s.Families = make(map[uint32][]uint32, len(idx.families))
		for id, members := range idx.families {
			positions := make([]uint32, len(members))
			for i, e := range members {
				positions[i] = e.pos
			}
			s.Families[id] = positions
		}
	}
	return s
}

// ToJSON encodes Snapshot with the configured codec.
func (idx *Index) ToJSON() ([]byte, error) {
	return idx.opts.codec.Marshal(idx.Snapshot())
}

// FromJSON rebuilds an index from a document written by ToJSON. The
// result has the same entries and lookups without reading any archive;
// decoding still needs the files.
func FromJSON(data []byte, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	var s Snapshot
	if err := o.codec.Unmarshal(data, &s); err != nil {
		return nil, corruptErr("decode %s document: %v", o.codec.Name(), err)
	}
	return FromSnapshot(&s, opts...)
}

// FromSnapshot rebuilds an index from s. Options configure the new index
// as for New; sources given there are indexed after the snapshot's files
// on the next Build.
func FromSnapshot(s *Snapshot, opts ...Option) (*Index, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	idx, err := New(opts...)
	if err != nil {
		return nil, err
	}

	srcs := make([]*source, len(s.Files))
	for i, path := range s.Files {
		srcs[i] = &source{path: path, id: i}
		idx.byPath[path] = srcs[i]
	}
	idx.sources = srcs

	entries := make([]*Entry, len(s.Entries))
	for i, row := range s.Entries {
		e := newEntry(idx, srcs[row[3]], dbpf.EntryInfo{
			Key:            tgi.New(row[0], row[1], row[2]),
			Offset:         row[4],
			CompressedSize: row[5],
			FileSize:       row[6],
			Compressed:     row[7] == 1,
		})
		idx.add(e)
		entries[i] = e
	}
	idx.entries.Build()

	if s.Families != nil {
		idx.families = make(map[uint32][]*Entry, len(s.Families))
		for id, positions := range s.Families {
			members := make([]*Entry, len(positions))
			for i, pos := range positions {
				members[i] = entries[pos]
			}
			idx.families[id] = members
		}
		idx.familiesBuilt = true
	}
	return idx, nil
}

func (s *Snapshot) validate() error {
	if s == nil {
		return corruptErr("nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return corruptErr("unsupported version %d", s.Version)
	}
	seen := make(map[string]struct{}, len(s.Files))
	for _, path := range s.Files {
		if _, ok := seen[path]; ok {
			return corruptErr("duplicate file %q", path)
		}
		seen[path] = struct{}{}
	}
	for i, row := range s.Entries {
		if int(row[3]) >= len(s.Files) {
			return corruptErr("entry %d refers to file %d of %d", i, row[3], len(s.Files))
		}
		if row[7] > 1 {
			return corruptErr("entry %d has compressed flag %d", i, row[7])
		}
		if row[0] == dbpf.TypeDIR {
			return corruptErr("entry %d is a directory record", i)
		}
	}
	for id, positions := range s.Families {
		for _, pos := range positions {
			if int(pos) >= len(s.Entries) {
				return corruptErr("family 0x%08x refers to entry %d of %d", id, pos, len(s.Entries))
			}
		}
	}
	return nil
}

// Snapshot frame, little endian:
//
//	magic    [4]byte "SC4X"
//	version  uint16
//	compress uint8
//	nameLen  uint8, then the codec name
//	rawLen   uint32 document size
//	crc      uint32 CRC32C of the preceding header and the payload
//	payload
var frameMagic = [4]byte{'S', 'C', '4', 'X'}

const frameVersion = 1

// SaveSnapshot writes the encoded and compressed snapshot to store under
// name, replacing any previous blob.
func (idx *Index) SaveSnapshot(ctx context.Context, store blobstore.BlobStore, name string) (err error) {
	start := time.Now()
	var n int
	defer func() {
		d := time.Since(start)
		idx.metrics.RecordSnapshot("save", n, d, err)
		idx.logger.LogSnapshot(ctx, "save", name, n, d, err)
	}()

	doc, err := idx.ToJSON()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	frame, err := encodeFrame(idx.opts.codec.Name(), idx.opts.compression, doc)
	if err != nil {
		return err
	}
	n = len(frame)
	if err := store.Put(ctx, name, frame); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return nil
}

// LoadSnapshot reads a blob written by SaveSnapshot and rebuilds the
// index with opts. The codec recorded in the blob is used to decode it. A
// damaged blob is reported with ErrSnapshotCorrupt; a missing one with
// blobstore.ErrNotFound.
func LoadSnapshot(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (idx *Index, err error) {
	o := applyOptions(opts)
	start := time.Now()
	var n int
	defer func() {
		d := time.Since(start)
		o.metricsCollector.RecordSnapshot("load", n, d, err)
		o.logger.LogSnapshot(ctx, "load", name, n, d, err)
	}()

	frame, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	n = len(frame)

	c, doc, err := decodeFrame(frame)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := c.Unmarshal(doc, &s); err != nil {
		return nil, corruptErr("decode %s document: %v", c.Name(), err)
	}
	return FromSnapshot(&s, opts...)
}

func encodeFrame(codecName string, comp codec.Compression, doc []byte) ([]byte, error) {
	if len(codecName) > 255 {
		return nil, fmt.Errorf("codec name %q too long", codecName)
	}
	payload, err := codec.Compress(comp, doc)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}

	out := make([]byte, 0, 16+len(codecName)+len(payload))
	out = append(out, frameMagic[:]...)
	out = binary.LittleEndian.AppendUint16(out, frameVersion)
	out = append(out, byte(comp), byte(len(codecName)))
	out = append(out, codecName...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(doc)))
	out = binary.LittleEndian.AppendUint32(out, hash.UpdateCRC32C(hash.CRC32C(out), payload))
	return append(out, payload...), nil
}

func decodeFrame(b []byte) (codec.Codec, []byte, error) {
	const fixed = 4 + 2 + 1 + 1
	if len(b) < fixed || [4]byte(b[:4]) != frameMagic {
		return nil, nil, corruptErr("bad magic")
	}
	if v := binary.LittleEndian.Uint16(b[4:]); v != frameVersion {
		return nil, nil, corruptErr("unsupported frame version %d", v)
	}
	comp := codec.Compression(b[6])
	nameLen := int(b[7])
	if len(b) < fixed+nameLen+8 {
		return nil, nil, corruptErr("truncated header")
	}
	name := string(b[fixed : fixed+nameLen])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, nil, corruptErr("unknown codec %q", name)
	}
	head := b[:fixed+nameLen+4]
	rawLen := int(binary.LittleEndian.Uint32(head[fixed+nameLen:]))
	sum := binary.LittleEndian.Uint32(b[len(head):])
	payload := b[len(head)+4:]
	if got := hash.UpdateCRC32C(hash.CRC32C(head), payload); got != sum {
		return nil, nil, corruptErr("checksum mismatch: got %08x, want %08x", got, sum)
	}
	if rawLen > maxRawLen(comp, len(payload)) {
		return nil, nil, corruptErr("declared size %d for %d payload bytes", rawLen, len(payload))
	}
	doc, err := codec.Decompress(comp, payload, rawLen)
	if err != nil {
		return nil, nil, corruptErr("%v", err)
	}
	return c, doc, nil
}

// maxExpansion bounds how far a compressed snapshot payload may expand.
const maxExpansion = 1024

// maxRawLen is the largest document size accepted for an n byte payload.
func maxRawLen(comp codec.Compression, n int) int {
	if comp == codec.CompressionNone {
		return n
	}
	return n*maxExpansion + 64<<10
}
