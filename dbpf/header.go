package dbpf

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the fixed size of the archive header.
const HeaderSize = 96

// Magic is the archive signature.
const Magic = "DBPF"

// Header is the archive header.
type Header struct {
	Major       uint32
	Minor       uint32
	Created     time.Time
	Modified    time.Time
	IndexMajor  uint32
	IndexCount  uint32
	IndexOffset uint32
	IndexSize   uint32
	HolesCount  uint32
	HolesOffset uint32
	HolesSize   uint32
	IndexMinor  uint32
}

// ParseHeader decodes the first HeaderSize bytes of an archive.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, formatErr(nil, "header truncated: %d bytes", len(b))
	}
	if string(b[:4]) != Magic {
		return Header{}, formatErr(nil, "bad magic %q", b[:4])
	}

	le := binary.LittleEndian
	return Header{
		Major:       le.Uint32(b[4:]),
		Minor:       le.Uint32(b[8:]),
		Created:     time.Unix(int64(le.Uint32(b[24:])), 0).UTC(),
		Modified:    time.Unix(int64(le.Uint32(b[28:])), 0).UTC(),
		IndexMajor:  le.Uint32(b[32:]),
		IndexCount:  le.Uint32(b[36:]),
		IndexOffset: le.Uint32(b[40:]),
		IndexSize:   le.Uint32(b[44:]),
		HolesCount:  le.Uint32(b[48:]),
		HolesOffset: le.Uint32(b[52:]),
		HolesSize:   le.Uint32(b[56:]),
		IndexMinor:  le.Uint32(b[60:]),
	}, nil
}

// rowSize returns the byte length of one index row.
func (h Header) rowSize() int {
	if h.IndexMinor > 0 && h.IndexCount > 0 && h.IndexSize/h.IndexCount >= 24 {
		return 24
	}
	return 20
}

// dirRowSize returns the byte length of one DIR row.
func (h Header) dirRowSize() int {
	if h.IndexMajor == 7 && h.IndexMinor > 1 {
		return 20
	}
	return 16
}
