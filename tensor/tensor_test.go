package tensor

import (
	"testing"

	"github.com/jfk9w-go/flu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArray_Indexing(t *testing.T) {
	a := New(2, 3)
	a.SetAt(7, 1, 2)
	assert.Equal(t, 7.0, a.At(1, 2))
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 2, a.Rank())
	assert.Equal(t, 3, a.Size(1))
	assert.Equal(t, 0, a.Size(5))
}

func TestArray_Slice(t *testing.T) {
	a := &Array{Shape: []int{4, 2}, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}}

	s := a.Slice(1, 3)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.Equal(t, []float64{3, 4, 5, 6}, s.Data)

	// bounds are clamped
	s = a.Slice(2, 100)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.Equal(t, []float64{5, 6, 7, 8}, s.Data)

	s = a.Slice(3, 3)
	assert.Equal(t, 0, s.Len())

	// slices are copies
	s = a.Slice(0, 1)
	s.Data[0] = 100
	assert.Equal(t, 1.0, a.Data[0])
}

func TestArray_Concat(t *testing.T) {
	a := &Array{Shape: []int{2}, Data: []float64{1, 2}}
	b := &Array{Shape: []int{3}, Data: []float64{3, 4, 5}}

	c := Concat(a, nil, b)
	assert.Equal(t, []int{5}, c.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, c.Data)
}

func TestArray_PadTo(t *testing.T) {
	a := &Array{Shape: []int{2}, Data: []float64{1, 2}}

	assert.Equal(t, []float64{1, 2, 0, 0}, a.PadTo(4).Data)
	assert.Equal(t, []float64{1}, a.PadTo(1).Data)
	assert.Same(t, a, a.PadTo(2))
}

func TestArray_FromBytes(t *testing.T) {
	a := FromBytes([]byte{0, 128, 255})
	assert.Equal(t, []int{1, 3}, a.Shape)
	assert.Equal(t, []float64{0, 128, 255}, a.Data)
	assert.Equal(t, []byte{0, 128, 255}, a.Bytes())
}

func TestArray_Snapshot(t *testing.T) {
	a := &Array{Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}}

	buf := new(flu.ByteBuffer)
	require.NoError(t, flu.EncodeTo(a, buf))

	data := []byte(buf.Bytes())
	assert.True(t, IsSnapshot(data))
	assert.False(t, IsSnapshot([]byte("just some bytes")))

	b := new(Array)
	require.NoError(t, flu.DecodeFrom(flu.Bytes(data), b))
	assert.True(t, a.Equal(b))
}

func TestArray_SnapshotRejectsRawBytes(t *testing.T) {
	a := new(Array)
	assert.Error(t, flu.DecodeFrom(flu.Bytes("definitely not a snapshot"), a))
}
