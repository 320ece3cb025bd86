package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/internal/qfs"
	"github.com/hupe1980/dbpfindex/tgi"
)

const (
	headerSize = 96
	typeDIR    = 0xe86b1eef
	groupDIR   = 0xe86b1eef
	instDIR    = 0x286b1f03
)

type archiveEntry struct {
	key        tgi.TGI
	data       []byte
	compressed bool
}

// Archive assembles a DBPF 1.0 file with a 7.0 index.
type Archive struct {
	entries []archiveEntry
	created uint32
}

// NewArchive returns an empty archive builder.
func NewArchive() *Archive {
	return &Archive{created: 1_600_000_000}
}

// Add appends an uncompressed entry.
func (a *Archive) Add(key tgi.TGI, data []byte) *Archive {
	a.entries = append(a.entries, archiveEntry{key: key, data: data})
	return a
}

// AddCompressed appends an entry stored as QFS and listed in the DIR record.
func (a *Archive) AddCompressed(key tgi.TGI, data []byte) *Archive {
	a.entries = append(a.entries, archiveEntry{key: key, data: data, compressed: true})
	return a
}

// AddExemplar appends the binary encoding of ex, compressed.
func (a *Archive) AddExemplar(key tgi.TGI, ex *exemplar.Exemplar) *Archive {
	b, err := ex.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return a.AddCompressed(key, b)
}

// Len returns the number of entries added, excluding the DIR record.
func (a *Archive) Len() int { return len(a.entries) }

// Bytes encodes the archive.
func (a *Archive) Bytes() []byte {
	le := binary.LittleEndian

	type row struct {
		key          tgi.TGI
		offset, size uint32
	}
	var (
		body []byte
		rows []row
		dir  []byte
	)
	for _, e := range a.entries {
		stored := e.data
		if e.compressed {
			enc, err := qfs.Encode(e.data)
			if err != nil {
				panic(err)
			}
			stored = le.AppendUint32(nil, uint32(len(enc)+4))
			stored = append(stored, enc...)

			dir = le.AppendUint32(dir, e.key.Type)
			dir = le.AppendUint32(dir, e.key.Group)
			dir = le.AppendUint32(dir, e.key.Instance)
			dir = le.AppendUint32(dir, uint32(len(e.data)))
		}
		rows = append(rows, row{e.key, uint32(headerSize + len(body)), uint32(len(stored))})
		body = append(body, stored...)
	}
	if len(dir) > 0 {
		rows = append(rows, row{tgi.New(typeDIR, groupDIR, instDIR), uint32(headerSize + len(body)), uint32(len(dir))})
		body = append(body, dir...)
	}

	indexOffset := uint32(headerSize + len(body))
	out := make([]byte, headerSize, int(indexOffset)+len(rows)*20)
	copy(out, "DBPF")
	le.PutUint32(out[4:], 1)
	le.PutUint32(out[24:], a.created)
	le.PutUint32(out[28:], a.created)
	le.PutUint32(out[32:], 7)
	le.PutUint32(out[36:], uint32(len(rows)))
	le.PutUint32(out[40:], indexOffset)
	le.PutUint32(out[44:], uint32(len(rows)*20))
	out = append(out, body...)
	for _, r := range rows {
		out = le.AppendUint32(out, r.key.Type)
		out = le.AppendUint32(out, r.key.Group)
		out = le.AppendUint32(out, r.key.Instance)
		out = le.AppendUint32(out, r.offset)
		out = le.AppendUint32(out, r.size)
	}
	return out
}

// WriteFile writes the archive to dir/name, creating parent directories,
// and returns the full path.
func (a *Archive) WriteFile(tb testing.TB, dir, name string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, a.Bytes(), 0o644); err != nil {
		tb.Fatalf("write archive: %v", err)
	}
	return path
}

// Building returns a building exemplar in family fam with the given parent.
func Building(parent tgi.TGI, fam ...uint32) *exemplar.Exemplar {
	props := []exemplar.Property{
		{ID: exemplar.ExemplarType, Value: exemplar.NewUint32(exemplar.TypeBuildings)},
	}
	if len(fam) > 0 {
		props = append(props, exemplar.Property{ID: exemplar.BuildingpropFamily, Value: exemplar.NewUint32s(fam...)})
	}
	return exemplar.New(exemplar.KindExemplar, parent, props...)
}

// Cohort returns a cohort holding props.
func Cohort(parent tgi.TGI, props ...exemplar.Property) *exemplar.Exemplar {
	return exemplar.New(exemplar.KindCohort, parent, props...)
}
