// Package qfs implements the QFS (RefPack) compression used by DBPF
// archives.
package qfs

import (
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a stream cannot be decoded.
var ErrCorrupt = errors.New("qfs: corrupt stream")

const (
	magic      = 0xfb
	maxSize    = 1<<24 - 1
	maxLiteral = 112
)

// Size returns the uncompressed size declared in the stream header. With
// flag 0x01 the header carries the compressed size first.
func Size(in []byte) (int, error) {
	if len(in) < 5 || in[1] != magic {
		return 0, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	p := 2
	if in[0]&0x01 != 0 {
		if len(in) < 8 {
			return 0, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		p = 5
	}
	return int(in[p])<<16 | int(in[p+1])<<8 | int(in[p+2]), nil
}

// Decompress decodes a QFS stream starting at its 0x10FB header.
func Decompress(in []byte) ([]byte, error) {
	size, err := Size(in)
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	p := 5
	if in[0]&0x01 != 0 {
		p = 8
	}
	o := 0

	literal := func(from, n int) error {
		if from+n > len(in) || o+n > len(out) {
			return fmt.Errorf("%w: literal overrun at %d", ErrCorrupt, from)
		}
		copy(out[o:], in[from:from+n])
		o += n
		return nil
	}
	backref := func(offset, n int) error {
		src := o - offset
		if src < 0 || o+n > len(out) {
			return fmt.Errorf("%w: back reference out of range at %d", ErrCorrupt, o)
		}
		// Byte-wise copy: source and destination may overlap.
		for i := 0; i < n; i++ {
			out[o] = out[src+i]
			o++
		}
		return nil
	}

	for p < len(in) && in[p] < 0xfc {
		code := int(in[p])
		switch {
		case code&0x80 == 0:
			if p+2 > len(in) {
				return nil, fmt.Errorf("%w: truncated opcode at %d", ErrCorrupt, p)
			}
			a := int(in[p+1])
			n := code & 3
			if err := literal(p+2, n); err != nil {
				return nil, err
			}
			p += n + 2
			if err := backref((code>>5)<<8+a+1, (code&0x1c)>>2+3); err != nil {
				return nil, err
			}

		case code&0x40 == 0:
			if p+3 > len(in) {
				return nil, fmt.Errorf("%w: truncated opcode at %d", ErrCorrupt, p)
			}
			a, b := int(in[p+1]), int(in[p+2])
			n := (a >> 6) & 3
			if err := literal(p+3, n); err != nil {
				return nil, err
			}
			p += n + 3
			if err := backref((a&0x3f)<<8+b+1, code&0x3f+4); err != nil {
				return nil, err
			}

		case code&0x20 == 0:
			if p+4 > len(in) {
				return nil, fmt.Errorf("%w: truncated opcode at %d", ErrCorrupt, p)
			}
			a, b, c := int(in[p+1]), int(in[p+2]), int(in[p+3])
			n := code & 3
			if err := literal(p+4, n); err != nil {
				return nil, err
			}
			p += n + 4
			if err := backref((code&0x10)<<12+a<<8+b+1, (code>>2)&3<<8+c+5); err != nil {
				return nil, err
			}

		default:
			n := (code&0x1f)*4 + 4
			if err := literal(p+1, n); err != nil {
				return nil, err
			}
			p += n + 1
		}
	}

	// Trailing literal bytes.
	if p < len(in) && o < len(out) {
		if err := literal(p+1, int(in[p])&3); err != nil {
			return nil, err
		}
	}

	if o != len(out) {
		return nil, fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, o, len(out))
	}
	return out, nil
}

// Encode stores data as a valid QFS stream built from literal blocks only.
// The result is slightly larger than the input; it exists so that archives
// with compressed entries can be produced without a full matcher.
func Encode(data []byte) ([]byte, error) {
	if len(data) > maxSize {
		return nil, fmt.Errorf("qfs: input of %d bytes exceeds %d", len(data), maxSize)
	}

	out := make([]byte, 0, len(data)+len(data)/maxLiteral+8)
	out = append(out, 0x10, magic, byte(len(data)>>16), byte(len(data)>>8), byte(len(data)))

	rest := data
	for len(rest) >= 4 {
		n := len(rest) &^ 3
		if n > maxLiteral {
			n = maxLiteral
		}
		out = append(out, byte(0xe0+(n-4)/4))
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	out = append(out, byte(0xfc+len(rest)))
	out = append(out, rest...)
	return out, nil
}
