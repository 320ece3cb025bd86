// Package codec holds the document codecs and payload compressors used by
// index snapshots.
//
// Snapshot frames record both the codec name and the compression kind, so
// a snapshot written with one configuration can be read by any other.
package codec

import "fmt"

// Codec turns a snapshot document into bytes and back. Implementations
// must be safe for concurrent use and are looked up by Name when a frame
// is read.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec of newly written snapshots.
var Default Codec = GoJSON{}

var builtin = []Codec{JSON{}, GoJSON{}}

// ByName returns the built-in codec recorded as name.
func ByName(name string) (Codec, bool) {
	for _, c := range builtin {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names lists the built-in codec names.
func Names() []string {
	out := make([]string, len(builtin))
	for i, c := range builtin {
		out[i] = c.Name()
	}
	return out
}

// MustMarshal encodes v with c, or Default when c is nil, and panics on
// failure. Used for fixtures.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec: %s: %v", c.Name(), err))
	}
	return b
}
