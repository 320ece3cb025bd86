package exemplar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/dbpfindex/tgi"
)

var (
	hexRe     = regexp.MustCompile(`(?i)0x[0-9a-f]+`)
	commentRe = regexp.MustCompile(`^\{"(.*?)"\}`)
	stringRe  = regexp.MustCompile(`\{"(.*)"\}`)
	floatRe   = regexp.MustCompile(`[+-]?\d+(\.\d+)?([eE][+-]?\d+)?`)
	boolRe    = regexp.MustCompile(`(?i)true|false`)
)

var textTypes = map[string]ValueType{
	"Uint8":   Uint8,
	"Uint16":  Uint16,
	"Uint32":  Uint32,
	"Sint32":  Sint32,
	"Sint64":  Sint64,
	"Float32": Float32,
	"Bool":    Bool,
	"String":  String,
}

// decodeText parses the text form:
//
//	ParentCohort=Key:{0x00000000,0x00000000,0x00000000}
//	PropCount=0x00000002
//	0x00000010:{"Exemplar Type"}=Uint32:0:{0x00000002}
//	0x00000020:{"Exemplar Name"}=String:1:{"Name"}
func (ex *Exemplar) decodeText(b []byte) error {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")

	i := strings.Index(s, "ParentCohort")
	if i < 0 {
		return fmt.Errorf("%w: missing ParentCohort", ErrInvalidExemplar)
	}
	s = s[i:]
	if i = strings.IndexByte(s, ':'); i < 0 {
		return fmt.Errorf("%w: malformed ParentCohort", ErrInvalidExemplar)
	}
	s = s[i+1:]

	var head [4]uint32
	for n := range head {
		v, rest, err := nextHex(s, 32)
		if err != nil {
			return fmt.Errorf("%w: parent cohort: %v", ErrInvalidExemplar, err)
		}
		head[n], s = uint32(v), rest
	}
	ex.Parent = tgi.New(head[0], head[1], head[2])
	count := int(head[3])

	lines := strings.Split(s, "\n")
	// The remainder of the PropCount line.
	lines = lines[1:]

	ex.Properties = make([]Property, 0, min(count, len(lines)))
	for _, line := range lines {
		if len(ex.Properties) == count {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := parseTextProperty(line)
		if err != nil {
			return fmt.Errorf("property %d: %w", len(ex.Properties), err)
		}
		ex.Properties = append(ex.Properties, p)
	}
	return nil
}

func nextHex(s string, bits int) (uint64, string, error) {
	loc := hexRe.FindStringIndex(s)
	if loc == nil {
		return 0, s, fmt.Errorf("expected hex number")
	}
	v, err := strconv.ParseUint(s[loc[0]+2:loc[1]], 16, bits)
	if err != nil {
		return 0, s, err
	}
	return v, s[loc[1]:], nil
}

func parseTextProperty(line string) (Property, error) {
	id, rest, err := nextHex(line, 32)
	if err != nil {
		return Property{}, fmt.Errorf("%w: property id: %v", ErrInvalidExemplar, err)
	}
	p := Property{ID: PropertyID(id)}

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Property{}, fmt.Errorf("%w: malformed line %q", ErrInvalidExemplar, line)
	}
	rest = strings.TrimLeft(rest[colon+1:], " \t")
	if m := commentRe.FindStringSubmatch(rest); m != nil {
		p.Name = m[1]
		rest = rest[len(m[0]):]
	}

	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return Property{}, fmt.Errorf("%w: missing value in %q", ErrInvalidExemplar, line)
	}
	fields := strings.SplitN(rest[eq+1:], ":", 3)
	if len(fields) != 3 {
		return Property{}, fmt.Errorf("%w: malformed value in %q", ErrInvalidExemplar, line)
	}
	typ, ok := textTypes[strings.TrimSpace(fields[0])]
	if !ok {
		return Property{}, fmt.Errorf("%w: unknown type %q", ErrInvalidExemplar, fields[0])
	}
	reps, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || reps < 0 {
		return Property{}, fmt.Errorf("%w: bad repetition count %q", ErrInvalidExemplar, fields[1])
	}

	p.Value, err = parseTextValue(typ, reps, fields[2])
	if err != nil {
		return Property{}, fmt.Errorf("property 0x%08x: %w", id, err)
	}
	return p, nil
}

func parseTextValue(typ ValueType, reps int, s string) (Value, error) {
	if typ == String {
		v := Value{Type: String, Multi: true}
		if m := stringRe.FindStringSubmatch(s); m != nil {
			v.text = m[1]
		}
		return v, nil
	}

	n := max(reps, 1)
	v := Value{Type: typ, Multi: reps > 0}
	for range n {
		var err error
		switch typ {
		case Float32:
			loc := floatRe.FindStringIndex(s)
			if loc == nil {
				return Value{}, fmt.Errorf("%w: expected float", ErrInvalidExemplar)
			}
			var f float64
			if f, err = strconv.ParseFloat(s[loc[0]:loc[1]], 32); err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrInvalidExemplar, err)
			}
			v.floats = append(v.floats, float32(f))
			s = s[loc[1]:]
		case Bool:
			loc := boolRe.FindStringIndex(s)
			if loc == nil {
				return Value{}, fmt.Errorf("%w: expected bool", ErrInvalidExemplar)
			}
			var b int64
			if strings.EqualFold(s[loc[0]:loc[1]], "true") {
				b = 1
			}
			v.ints = append(v.ints, b)
			s = s[loc[1]:]
		default:
			var u uint64
			if u, s, err = nextHex(s, 64); err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrInvalidExemplar, err)
			}
			v.ints = append(v.ints, signExtend(typ, u))
		}
	}
	return v, nil
}

func signExtend(typ ValueType, u uint64) int64 {
	switch typ {
	case Uint8:
		return int64(uint8(u))
	case Uint16:
		return int64(uint16(u))
	case Uint32:
		return int64(uint32(u))
	case Sint32:
		return int64(int32(uint32(u)))
	}
	return int64(u)
}
