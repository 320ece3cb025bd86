package tgi

import (
	"fmt"
	"strconv"
	"strings"
)

// TGI is the (type, group, instance) triple that identifies a resource
// record inside an archive.
type TGI struct {
	Type     uint32 `json:"t"`
	Group    uint32 `json:"g"`
	Instance uint32 `json:"i"`
}

// Indexable is implemented by anything that can report its TGI key.
type Indexable interface {
	TGI() TGI
}

// Compile time check to ensure TGI satisfies the Indexable interface.
var _ Indexable = TGI{}

// New returns the triple (t, g, i).
func New(t, g, i uint32) TGI {
	return TGI{Type: t, Group: g, Instance: i}
}

// TGI implements Indexable.
func (k TGI) TGI() TGI { return k }

// IsZero reports whether all three components are zero.
func (k TGI) IsZero() bool {
	return k.Type == 0 && k.Group == 0 && k.Instance == 0
}

// Array returns the triple as a fixed-size array.
func (k TGI) Array() [3]uint32 {
	return [3]uint32{k.Type, k.Group, k.Instance}
}

// String renders the key as 0xTTTTTTTT-0xGGGGGGGG-0xIIIIIIII.
func (k TGI) String() string {
	return fmt.Sprintf("0x%08x-0x%08x-0x%08x", k.Type, k.Group, k.Instance)
}

// Parse reads a key in the form produced by String. Commas and whitespace
// are accepted as separators as well, and the 0x prefix is optional.
func Parse(s string) (TGI, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return TGI{}, fmt.Errorf("tgi: invalid key %q", s)
	}

	var parts [3]uint32
	for n, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return TGI{}, fmt.Errorf("tgi: invalid key %q: %w", s, err)
		}
		parts[n] = uint32(v)
	}

	return New(parts[0], parts[1], parts[2]), nil
}
