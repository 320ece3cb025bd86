package exemplar

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dbpfindex/tgi"
)

func TestDecode_BinaryRoundTrip(t *testing.T) {
	parent := tgi.New(0x05342861, 0x12345678, 0xabcdef01)
	ex := New(KindExemplar, parent,
		Property{ID: ExemplarType, Value: NewUint32(TypeBuildings)},
		Property{ID: ExemplarName, Value: NewString("Tower")},
		Property{ID: BuildingpropFamily, Value: NewUint32s(0x1000, 0x2000)},
		Property{ID: OccupantSize, Value: NewFloat32s(16, 24.5, 16)},
		Property{ID: 0x1, Value: NewInts(Sint32, -7)},
		Property{ID: 0x2, Value: NewInts(Sint64, -1, 1<<40)},
		Property{ID: 0x3, Value: NewBool(true)},
		Property{ID: 0x4, Value: NewInts(Uint8, 1, 2, 255)},
		Property{ID: 0x5, Value: NewInts(Uint16, 0xbeef)},
	)

	b, err := ex.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, "EQZB1###", string(b[:8]))

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, KindExemplar, got.Kind)
	assert.False(t, got.Text)
	assert.Equal(t, parent, got.Parent)
	require.Len(t, got.Properties, len(ex.Properties))
	for i, p := range ex.Properties {
		assert.Equal(t, p.ID, got.Properties[i].ID)
		assert.True(t, p.Value.Equal(got.Properties[i].Value), "property 0x%x: %v != %v", uint32(p.ID), p.Value, got.Properties[i].Value)
	}

	typ, ok := got.ExemplarType()
	require.True(t, ok)
	assert.Equal(t, TypeBuildings, typ)

	fam, ok := got.Value(BuildingpropFamily)
	require.True(t, ok)
	assert.Equal(t, []uint32{0x1000, 0x2000}, fam.Uint32s())

	name, _ := got.Value(ExemplarName)
	assert.Equal(t, "Tower", name.Text())
}

func TestDecode_Cohort(t *testing.T) {
	b, err := New(KindCohort, tgi.TGI{}).MarshalBinary()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, KindCohort, got.Kind)
	assert.False(t, got.HasParent())
	assert.Empty(t, got.Properties)
}

func TestDecode_CountLargerThanData(t *testing.T) {
	b, err := New(KindExemplar, tgi.TGI{},
		Property{ID: ExemplarType, Value: NewUint32(TypeProp)},
	).MarshalBinary()
	require.NoError(t, err)

	// Claim five properties while only one is present.
	binary.LittleEndian.PutUint32(b[20:], 5)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Len(t, got.Properties, 1)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidExemplar)

	_, err = Decode([]byte("XXXXXXXXXXXXXXXXXXXXXXXX"))
	assert.ErrorIs(t, err, ErrInvalidExemplar)

	b, err := New(KindExemplar, tgi.TGI{},
		Property{ID: ExemplarName, Value: NewString("truncated")},
	).MarshalBinary()
	require.NoError(t, err)
	_, err = Decode(b[:len(b)-3])
	assert.ErrorIs(t, err, ErrInvalidExemplar)
}

func TestDecode_Text(t *testing.T) {
	src := "EQZT1###\r\n" +
		"ParentCohort=Key:{0x05342861,0x12345678,0x0000abcd}\r\n" +
		"PropCount=0x00000006\r\n" +
		"0x00000010:{\"Exemplar Type\"}=Uint32:0:{0x00000002}\r\n" +
		"0x00000020:{\"Exemplar Name\"}=String:1:{\"My Lot\"}\r\n" +
		"0x27812870:{\"Family\"}=Uint32:2:{0x00001000,0x00002000}\r\n" +
		"0x27812810:{\"Occupant Size\"}=Float32:3:{16,24.5,-3}\r\n" +
		"0x00000001:{\"Flag\"}=Bool:0:{True}\r\n" +
		"0x00000002:{\"Signed\"}=Sint32:0:{0xFFFFFFFF}\r\n"

	ex, err := Decode([]byte(src))
	require.NoError(t, err)
	assert.True(t, ex.Text)
	assert.Equal(t, tgi.New(0x05342861, 0x12345678, 0xabcd), ex.Parent)
	require.Len(t, ex.Properties, 6)

	typ, ok := ex.ExemplarType()
	require.True(t, ok)
	assert.Equal(t, TypeBuildings, typ)
	assert.Equal(t, "Exemplar Type", ex.Properties[0].Name)

	name, _ := ex.Value(ExemplarName)
	assert.Equal(t, "My Lot", name.Text())

	fam, _ := ex.Value(BuildingpropFamily)
	assert.True(t, fam.Multi)
	assert.Equal(t, []uint32{0x1000, 0x2000}, fam.Uint32s())

	size, _ := ex.Value(OccupantSize)
	assert.Equal(t, []float32{16, 24.5, -3}, size.Float32s())

	flag, _ := ex.Value(0x1)
	assert.True(t, flag.Bool())
	assert.False(t, flag.Multi)

	signed, _ := ex.Value(0x2)
	assert.Equal(t, []int64{-1}, signed.Int64s())
}

func TestExemplar_FirstOccurrenceWins(t *testing.T) {
	ex := New(KindExemplar, tgi.TGI{},
		Property{ID: 0x9, Value: NewUint32(1)},
		Property{ID: 0x9, Value: NewUint32(2)},
	)
	v, ok := ex.Value(0x9)
	require.True(t, ok)
	n, _ := v.Uint32()
	assert.Equal(t, uint32(1), n)
	assert.False(t, ex.Has(0xdead))
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "0x2", NewUint32(2).String())
	assert.Equal(t, "[0x1, 0x2]", NewUint32s(1, 2).String())
	assert.Equal(t, `"x"`, NewString("x").String())
	assert.Equal(t, "true", NewBool(true).String())
	assert.Equal(t, "-4", NewInts(Sint32, -4).String())
	assert.Equal(t, "Uint32", Uint32.String())
	assert.Equal(t, "ExemplarType", ExemplarType.Name())
}
