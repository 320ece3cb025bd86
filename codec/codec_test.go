package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Version int      `json:"version"`
	Files   []string `json:"files"`
	Entries [][]any  `json:"entries"`
}

func TestCodecs_Interchangeable(t *testing.T) {
	in := doc{Version: 1, Files: []string{"a.dat", "b.dat"}}

	for _, name := range Names() {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())

		data, err := c.Marshal(in)
		require.NoError(t, err)

		// Every codec reads what any other wrote.
		for _, other := range Names() {
			oc, _ := ByName(other)
			var out doc
			require.NoError(t, oc.Unmarshal(data, &out))
			assert.Equal(t, in.Files, out.Files)
		}
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestMustMarshal(t *testing.T) {
	assert.Equal(t, `{"version":2,"files":null,"entries":null}`, string(MustMarshal(nil, doc{Version: 2})))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}

func TestCompression_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("0x6534284a,0xa8fbd372,"), 500)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			enc, err := Compress(c, data)
			require.NoError(t, err)
			if c != CompressionNone {
				assert.Less(t, len(enc), len(data))
			}

			dec, err := Decompress(c, enc, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, dec)

			parsed, err := ParseCompression(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, parsed)
		})
	}
}

func TestCompression_Corrupt(t *testing.T) {
	enc, err := Compress(CompressionZstd, []byte("hello hello hello"))
	require.NoError(t, err)

	_, err = Decompress(CompressionZstd, enc, 3)
	assert.ErrorIs(t, err, ErrCorruptPayload)

	_, err = Decompress(CompressionLZ4, []byte{0xff, 0xff}, 10)
	assert.ErrorIs(t, err, ErrCorruptPayload)

	_, err = Decompress(CompressionNone, []byte("abc"), 4)
	assert.ErrorIs(t, err, ErrCorruptPayload)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}
