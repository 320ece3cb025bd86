package exemplar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the on-disk type tag of a property value.
type ValueType uint16

const (
	Uint8   ValueType = 0x100
	Uint16  ValueType = 0x200
	Uint32  ValueType = 0x300
	Sint32  ValueType = 0x700
	Sint64  ValueType = 0x800
	Float32 ValueType = 0x900
	Bool    ValueType = 0xb00
	String  ValueType = 0xc00
)

var valueTypeNames = map[ValueType]string{
	Uint8:   "Uint8",
	Uint16:  "Uint16",
	Uint32:  "Uint32",
	Sint32:  "Sint32",
	Sint64:  "Sint64",
	Float32: "Float32",
	Bool:    "Bool",
	String:  "String",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(0x%x)", uint16(t))
}

// Valid reports whether t is a known type tag.
func (t ValueType) Valid() bool {
	_, ok := valueTypeNames[t]
	return ok
}

// width returns the encoded byte length of one element.
func (t ValueType) width() int {
	switch t {
	case Uint8, Bool, String:
		return 1
	case Uint16:
		return 2
	case Uint32, Sint32, Float32:
		return 4
	case Sint64:
		return 8
	}
	return 0
}

// Value is a tagged property value. Integers and booleans share the ints
// slot, Float32 uses floats and String uses text. Multi distinguishes a
// one-element array from a scalar.
type Value struct {
	Type  ValueType
	Multi bool

	ints   []int64
	floats []float32
	text   string
}

// NewUint32 returns a scalar Uint32 value.
func NewUint32(v uint32) Value { return Value{Type: Uint32, ints: []int64{int64(v)}} }

// NewUint32s returns a Uint32 array.
func NewUint32s(vs ...uint32) Value {
	ints := make([]int64, len(vs))
	for i, v := range vs {
		ints[i] = int64(v)
	}
	return Value{Type: Uint32, Multi: true, ints: ints}
}

// NewInts returns a value of integer type t holding vs. Multi is set when
// more than one element is given.
func NewInts(t ValueType, vs ...int64) Value {
	return Value{Type: t, Multi: len(vs) != 1, ints: append([]int64(nil), vs...)}
}

// NewFloat32s returns a Float32 value. Multi is set when more than one
// element is given.
func NewFloat32s(vs ...float32) Value {
	return Value{Type: Float32, Multi: len(vs) != 1, floats: append([]float32(nil), vs...)}
}

// NewBool returns a scalar Bool value.
func NewBool(b bool) Value {
	var v int64
	if b {
		v = 1
	}
	return Value{Type: Bool, ints: []int64{v}}
}

// NewString returns a String value.
func NewString(s string) Value { return Value{Type: String, Multi: true, text: s} }

// Len returns the number of elements. Strings count as one.
func (v Value) Len() int {
	switch v.Type {
	case String:
		return 1
	case Float32:
		return len(v.floats)
	}
	return len(v.ints)
}

// Int64s returns the integer elements. Floats are truncated.
func (v Value) Int64s() []int64 {
	if v.Type == Float32 {
		out := make([]int64, len(v.floats))
		for i, f := range v.floats {
			out[i] = int64(f)
		}
		return out
	}
	return append([]int64(nil), v.ints...)
}

// Uint32s returns the elements converted to uint32.
func (v Value) Uint32s() []uint32 {
	ints := v.Int64s()
	out := make([]uint32, len(ints))
	for i, n := range ints {
		out[i] = uint32(n)
	}
	return out
}

// Uint32 returns the first element as uint32.
func (v Value) Uint32() (uint32, bool) {
	if v.Type == String || v.Len() == 0 {
		return 0, false
	}
	return v.Uint32s()[0], true
}

// Float32s returns the elements as float32.
func (v Value) Float32s() []float32 {
	if v.Type == Float32 {
		return append([]float32(nil), v.floats...)
	}
	out := make([]float32, len(v.ints))
	for i, n := range v.ints {
		out[i] = float32(n)
	}
	return out
}

// Text returns the string content of a String value.
func (v Value) Text() string { return v.text }

// Bool returns the first element interpreted as a boolean.
func (v Value) Bool() bool {
	return len(v.ints) > 0 && v.ints[0] != 0
}

// Equal reports whether v and o hold the same typed content.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Multi != o.Multi || v.text != o.text {
		return false
	}
	if len(v.ints) != len(o.ints) || len(v.floats) != len(o.floats) {
		return false
	}
	for i := range v.ints {
		if v.ints[i] != o.ints[i] {
			return false
		}
	}
	for i := range v.floats {
		if math.Float32bits(v.floats[i]) != math.Float32bits(o.floats[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Type {
	case String:
		return strconv.Quote(v.text)
	case Float32:
		parts := make([]string, len(v.floats))
		for i, f := range v.floats {
			parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
		return v.wrap(parts)
	case Bool:
		parts := make([]string, len(v.ints))
		for i, n := range v.ints {
			parts[i] = strconv.FormatBool(n != 0)
		}
		return v.wrap(parts)
	}
	parts := make([]string, len(v.ints))
	for i, n := range v.ints {
		if n < 0 {
			parts[i] = strconv.FormatInt(n, 10)
		} else {
			parts[i] = fmt.Sprintf("0x%x", n)
		}
	}
	return v.wrap(parts)
}

func (v Value) wrap(parts []string) string {
	if !v.Multi && len(parts) == 1 {
		return parts[0]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
