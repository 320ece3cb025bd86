package exemplar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/dbpfindex/tgi"
)

// ErrInvalidExemplar is returned for undecodable property tables.
var ErrInvalidExemplar = errors.New("exemplar: invalid data")

// Kind distinguishes exemplars from cohorts.
type Kind uint8

const (
	KindExemplar Kind = iota
	KindCohort
)

func (k Kind) String() string {
	if k == KindCohort {
		return "Cohort"
	}
	return "Exemplar"
}

const (
	keySingle = 0x00
	keyMulti  = 0x80
)

// Property is one entry of a property table.
type Property struct {
	ID    PropertyID
	Name  string // comment carried by text exemplars
	Value Value
}

// Exemplar is a decoded property table. Parent is the zero TGI when the
// exemplar declares no parent cohort.
type Exemplar struct {
	Kind       Kind
	Text       bool
	Parent     tgi.TGI
	Properties []Property

	table map[PropertyID]int
}

// New creates an exemplar holding props.
func New(kind Kind, parent tgi.TGI, props ...Property) *Exemplar {
	ex := &Exemplar{Kind: kind, Parent: parent, Properties: props}
	ex.reindex()
	return ex
}

func (ex *Exemplar) reindex() {
	ex.table = make(map[PropertyID]int, len(ex.Properties))
	for i, p := range ex.Properties {
		// First occurrence wins on duplicate ids.
		if _, ok := ex.table[p.ID]; !ok {
			ex.table[p.ID] = i
		}
	}
}

// HasParent reports whether a parent cohort is declared.
func (ex *Exemplar) HasParent() bool {
	return ex.Parent.Type != 0
}

// Property returns the local property with the given id. It does not
// consult the parent cohort.
func (ex *Exemplar) Property(id PropertyID) (Property, bool) {
	i, ok := ex.table[id]
	if !ok {
		return Property{}, false
	}
	return ex.Properties[i], true
}

// Value returns the local value of id.
func (ex *Exemplar) Value(id PropertyID) (Value, bool) {
	p, ok := ex.Property(id)
	return p.Value, ok
}

// ExemplarType returns the local ExemplarType value.
func (ex *Exemplar) ExemplarType() (uint32, bool) {
	v, ok := ex.Value(ExemplarType)
	if !ok {
		return 0, false
	}
	return v.Uint32()
}

// Size returns an estimate of the decoded size in bytes.
func (ex *Exemplar) Size() int64 {
	n := int64(24)
	for _, p := range ex.Properties {
		n += 16 + int64(len(p.Name)+len(p.Value.text)) + int64(len(p.Value.ints))*8 + int64(len(p.Value.floats))*4
	}
	return n
}

// Decode parses a binary or text exemplar or cohort.
func Decode(b []byte) (*Exemplar, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidExemplar, len(b))
	}

	sig := b[:8]
	ex := &Exemplar{}
	switch {
	case sig[0] == 'E' && string(sig[1:3]) == "QZ":
		ex.Kind = KindExemplar
	case sig[0] == 'C' && string(sig[1:3]) == "QZ":
		ex.Kind = KindCohort
	default:
		return nil, fmt.Errorf("%w: bad signature %q", ErrInvalidExemplar, sig)
	}

	var err error
	if sig[3] == 'T' {
		ex.Text = true
		err = ex.decodeText(b[8:])
	} else {
		err = ex.decodeBinary(b[8:])
	}
	if err != nil {
		return nil, err
	}
	ex.reindex()
	return ex, nil
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrInvalidExemplar, n, r.off, r.remaining())
	}
	s := r.b[r.off : r.off+n]
	r.off += n
	return s, nil
}

func (r *reader) u32() (uint32, error) {
	s, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (r *reader) u16() (uint16, error) {
	s, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s), nil
}

func (ex *Exemplar) decodeBinary(b []byte) error {
	r := &reader{b: b}
	head, err := r.take(16)
	if err != nil {
		return err
	}
	le := binary.LittleEndian
	ex.Parent = tgi.New(le.Uint32(head), le.Uint32(head[4:]), le.Uint32(head[8:]))
	count := le.Uint32(head[12:])

	ex.Properties = make([]Property, 0, min(int(count), r.remaining()/9))
	for i := uint32(0); i < count; i++ {
		// Some files declare more properties than they contain.
		if r.remaining() < 4 {
			break
		}
		p, err := decodeProperty(r)
		if err != nil {
			return fmt.Errorf("property %d: %w", i, err)
		}
		ex.Properties = append(ex.Properties, p)
	}
	return nil
}

func decodeProperty(r *reader) (Property, error) {
	id, err := r.u32()
	if err != nil {
		return Property{}, err
	}
	vt, err := r.u16()
	if err != nil {
		return Property{}, err
	}
	typ := ValueType(vt)
	if !typ.Valid() {
		return Property{}, fmt.Errorf("%w: unknown value type 0x%x for property 0x%08x", ErrInvalidExemplar, vt, id)
	}
	kt, err := r.u16()
	if err != nil {
		return Property{}, err
	}
	if _, err := r.take(1); err != nil {
		return Property{}, err
	}

	p := Property{ID: PropertyID(id)}
	switch kt {
	case keySingle:
		p.Value, err = decodeValues(r, typ, 1, false)
	case keyMulti:
		var reps uint32
		if reps, err = r.u32(); err != nil {
			return Property{}, err
		}
		p.Value, err = decodeValues(r, typ, int(reps), true)
	default:
		return Property{}, fmt.Errorf("%w: unknown key type 0x%x for property 0x%08x", ErrInvalidExemplar, kt, id)
	}
	return p, err
}

func decodeValues(r *reader, typ ValueType, n int, multi bool) (Value, error) {
	raw, err := r.take(n * typ.width())
	if err != nil {
		return Value{}, err
	}

	v := Value{Type: typ, Multi: multi}
	if typ == String {
		v.text = string(raw)
		return v, nil
	}

	le := binary.LittleEndian
	w := typ.width()
	if typ == Float32 {
		v.floats = make([]float32, n)
		for i := range v.floats {
			v.floats[i] = math.Float32frombits(le.Uint32(raw[i*w:]))
		}
		return v, nil
	}

	v.ints = make([]int64, n)
	for i := range v.ints {
		s := raw[i*w:]
		switch typ {
		case Uint8, Bool:
			v.ints[i] = int64(s[0])
		case Uint16:
			v.ints[i] = int64(le.Uint16(s))
		case Uint32:
			v.ints[i] = int64(le.Uint32(s))
		case Sint32:
			v.ints[i] = int64(int32(le.Uint32(s)))
		case Sint64:
			v.ints[i] = int64(le.Uint64(s))
		}
	}
	if typ == Bool {
		for i, x := range v.ints {
			if x != 0 {
				v.ints[i] = 1
			}
		}
	}
	return v, nil
}

// MarshalBinary encodes the exemplar in binary form.
func (ex *Exemplar) MarshalBinary() ([]byte, error) {
	sig := "EQZB1###"
	if ex.Kind == KindCohort {
		sig = "CQZB1###"
	}

	le := binary.LittleEndian
	out := make([]byte, 0, 24+len(ex.Properties)*16)
	out = append(out, sig...)
	out = le.AppendUint32(out, ex.Parent.Type)
	out = le.AppendUint32(out, ex.Parent.Group)
	out = le.AppendUint32(out, ex.Parent.Instance)
	out = le.AppendUint32(out, uint32(len(ex.Properties)))

	for _, p := range ex.Properties {
		v := p.Value
		if !v.Type.Valid() {
			return nil, fmt.Errorf("%w: property 0x%08x has unknown type %s", ErrInvalidExemplar, uint32(p.ID), v.Type)
		}
		out = le.AppendUint32(out, uint32(p.ID))
		out = le.AppendUint16(out, uint16(v.Type))

		multi := v.Multi || v.Type == String
		if multi {
			out = le.AppendUint16(out, keyMulti)
		} else {
			if v.Len() != 1 {
				return nil, fmt.Errorf("%w: scalar property 0x%08x holds %d values", ErrInvalidExemplar, uint32(p.ID), v.Len())
			}
			out = le.AppendUint16(out, keySingle)
		}
		out = append(out, 0)

		if v.Type == String {
			out = le.AppendUint32(out, uint32(len(v.text)))
			out = append(out, v.text...)
			continue
		}
		if multi {
			out = le.AppendUint32(out, uint32(v.Len()))
		}
		if v.Type == Float32 {
			for _, f := range v.floats {
				out = le.AppendUint32(out, math.Float32bits(f))
			}
			continue
		}
		for _, n := range v.ints {
			switch v.Type {
			case Uint8, Bool:
				out = append(out, byte(n))
			case Uint16:
				out = le.AppendUint16(out, uint16(n))
			case Uint32, Sint32:
				out = le.AppendUint32(out, uint32(n))
			case Sint64:
				out = le.AppendUint64(out, uint64(n))
			}
		}
	}
	return out, nil
}

// Has reports whether id is present locally.
func (ex *Exemplar) Has(id PropertyID) bool {
	_, ok := ex.table[id]
	return ok
}
