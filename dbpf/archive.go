package dbpf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/internal/qfs"
	"github.com/hupe1980/dbpfindex/tgi"
)

// EntryInfo is the index metadata of one archive entry.
type EntryInfo struct {
	Key            tgi.TGI
	Offset         uint32
	CompressedSize uint32 // stored bytes
	FileSize       uint32 // bytes after decompression
	Compressed     bool
}

// TGI implements tgi.Indexable.
func (e EntryInfo) TGI() tgi.TGI { return e.Key }

// Archive is the parsed table of contents of a DBPF file. It holds no
// file handle; content is read on demand through an io.ReaderAt.
type Archive struct {
	Header  Header
	Entries []EntryInfo
	Size    int64
}

// Open reads the table of contents of the archive at path.
func Open(fsys fs.FileSystem, path string) (*Archive, error) {
	f, err := fs.Open(fsys, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	a, err := Read(f, info.Size())
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return nil, err
	}
	return a, nil
}

// Read parses the header, the index table and the DIR record.
func Read(r io.ReaderAt, size int64) (*Archive, error) {
	hdr := make([]byte, HeaderSize)
	if err := readFull(r, hdr, 0); err != nil {
		return nil, readErr(err, "read header")
	}
	h, err := ParseHeader(hdr)
	if err != nil {
		return nil, err
	}

	a := &Archive{Header: h, Size: size}
	if h.IndexCount == 0 {
		return a, nil
	}

	rowSize := h.rowSize()
	indexLen := int64(h.IndexCount) * int64(rowSize)
	if int64(h.IndexOffset)+indexLen > size {
		return nil, formatErr(nil, "index [%d, +%d) exceeds file size %d", h.IndexOffset, indexLen, size)
	}

	buf := make([]byte, indexLen)
	if err := readFull(r, buf, int64(h.IndexOffset)); err != nil {
		return nil, readErr(err, "read index")
	}

	le := binary.LittleEndian
	a.Entries = make([]EntryInfo, h.IndexCount)
	for n := range a.Entries {
		row := buf[n*rowSize:]
		e := EntryInfo{Key: tgi.New(le.Uint32(row), le.Uint32(row[4:]), le.Uint32(row[8:]))}
		row = row[12:]
		if rowSize == 24 {
			row = row[4:]
		}
		e.Offset = le.Uint32(row)
		e.CompressedSize = le.Uint32(row[4:])
		e.FileSize = e.CompressedSize
		if int64(e.Offset)+int64(e.CompressedSize) > size {
			return nil, formatErr(nil, "entry %s [%d, +%d) exceeds file size %d", e.Key, e.Offset, e.CompressedSize, size)
		}
		a.Entries[n] = e
	}

	if err := a.applyDir(r); err != nil {
		return nil, err
	}
	return a, nil
}

// applyDir marks the entries listed in DIR records as compressed. When one
// archive holds several entries with the same TGI, DIR rows are matched to
// them in order.
func (a *Archive) applyDir(r io.ReaderAt) error {
	var positions map[tgi.TGI][]int
	for _, dir := range a.Entries {
		if dir.Key.Type != TypeDIR {
			continue
		}
		if positions == nil {
			positions = make(map[tgi.TGI][]int, len(a.Entries))
			for n, e := range a.Entries {
				positions[e.Key] = append(positions[e.Key], n)
			}
		}

		raw, err := ReadRaw(r, dir)
		if err != nil {
			return err
		}

		rowSize := a.Header.dirRowSize()
		seen := make(map[tgi.TGI]int)
		le := binary.LittleEndian
		for len(raw) >= rowSize {
			key := tgi.New(le.Uint32(raw), le.Uint32(raw[4:]), le.Uint32(raw[8:]))
			fileSize := le.Uint32(raw[12:])
			raw = raw[rowSize:]

			candidates := positions[key]
			nth := seen[key]
			seen[key]++
			if nth >= len(candidates) {
				continue
			}
			e := &a.Entries[candidates[nth]]
			e.Compressed = true
			e.FileSize = fileSize
		}
	}
	return nil
}

// ReadRaw returns the stored bytes of e.
func ReadRaw(r io.ReaderAt, e EntryInfo) ([]byte, error) {
	buf := make([]byte, e.CompressedSize)
	if err := readFull(r, buf, int64(e.Offset)); err != nil {
		return nil, readErr(err, "read entry "+e.Key.String())
	}
	return buf, nil
}

// Decompress returns the uncompressed content of e given its stored bytes.
// Uncompressed entries are returned as is.
func Decompress(e EntryInfo, raw []byte) ([]byte, error) {
	if !e.Compressed {
		return raw, nil
	}
	// Compressed payloads carry a 4 byte size prefix before the QFS header.
	if len(raw) < 4 {
		return nil, formatErr(nil, "entry %s: compressed payload truncated", e.Key)
	}
	out, err := qfs.Decompress(raw[4:])
	if err != nil {
		return nil, formatErr(err, "entry %s: decompress", e.Key)
	}
	if uint32(len(out)) != e.FileSize {
		return nil, formatErr(nil, "entry %s: decompressed %d bytes, DIR says %d", e.Key, len(out), e.FileSize)
	}
	return out, nil
}

// ReadEntry reads and decompresses e.
func ReadEntry(r io.ReaderAt, e EntryInfo) ([]byte, error) {
	raw, err := ReadRaw(r, e)
	if err != nil {
		return nil, err
	}
	return Decompress(e, raw)
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read at %d: %d of %d bytes: %w", off, n, len(buf), io.ErrUnexpectedEOF)
	}
	return err
}

// readErr classifies a failed read: running past the end of the file is a
// format problem, anything else is an I/O error.
func readErr(err error, what string) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return formatErr(err, "%s", what)
	}
	return fmt.Errorf("dbpf: %s: %w", what, err)
}
