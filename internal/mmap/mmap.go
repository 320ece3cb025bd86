package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by reads on a closed Mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrRange is returned for offsets or lengths outside the mapping.
	ErrRange = errors.New("mmap: range outside mapping")
)

// Hint tells the kernel how a mapping will be read. It is advisory only.
type Hint uint8

const (
	HintNone Hint = iota
	HintSequential
	HintWillNeed
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data    []byte
	release func() error
	closed  atomic.Bool
}

// Open maps path read-only and applies hint. Empty files map to an empty
// view without a kernel mapping.
func Open(path string, hint Hint) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("mmap: %s is too large to map (%d bytes)", path, size)
	}

	data, release, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap: %s: %w", path, err)
	}
	if hint != HintNone {
		advise(data, hint)
	}
	return &Mapping{data: data, release: release}, nil
}

// Len returns the mapped length.
func (m *Mapping) Len() int64 { return int64(len(m.data)) }

// Bytes returns the mapped bytes, nil once closed. The slice must not be
// used after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Region returns n bytes at off without copying.
func (m *Mapping) Region(off, n int64) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off+n > m.Len() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrRange, off, off+n, m.Len())
	}
	return m.data[off : off+n : off+n], nil
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrRange, off)
	}
	if off >= m.Len() {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the mapping. Calling it again is a no-op.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.release == nil {
		return nil
	}
	return m.release()
}
