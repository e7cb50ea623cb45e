// Package tensor provides a small dense numeric array type used as the
// common currency between media containers and codec services: decoded
// image pixels, audio samples and video frames are all tensor.Array values.
package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// Array is a dense row-major numeric array with an explicit shape.
// The zero value is an empty array.
type Array struct {
	Shape []int
	Data  []float64
}

// New creates a zero-filled Array with the given shape.
func New(shape ...int) *Array {
	return &Array{
		Shape: shape,
		Data:  make([]float64, volume(shape)),
	}
}

// Zeros is an alias for New kept for readability at call sites
// which substitute silence or padding.
func Zeros(shape ...int) *Array {
	return New(shape...)
}

// FromBytes interprets raw bytes as uint8 values. If no shape is given,
// the result has shape (1, len(b)).
func FromBytes(b []byte, shape ...int) *Array {
	if len(shape) == 0 {
		shape = []int{1, len(b)}
	}

	data := make([]float64, len(b))
	for i, v := range b {
		data[i] = float64(v)
	}

	return &Array{Shape: shape, Data: data}
}

// FromInt16s builds a rank-1 array from signed 16-bit samples.
func FromInt16s(samples []int16) *Array {
	data := make([]float64, len(samples))
	for i, v := range samples {
		data[i] = float64(v)
	}

	return &Array{Shape: []int{len(samples)}, Data: data}
}

// Rank returns the number of axes.
func (a *Array) Rank() int {
	return len(a.Shape)
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	return len(a.Data)
}

// Size returns the length of the given axis, or 0 if the axis does not exist.
func (a *Array) Size(axis int) int {
	if axis < 0 || axis >= len(a.Shape) {
		return 0
	}

	return a.Shape[axis]
}

// At returns the element at the given multi-dimensional index.
func (a *Array) At(index ...int) float64 {
	return a.Data[a.offset(index)]
}

// SetAt sets the element at the given multi-dimensional index.
func (a *Array) SetAt(value float64, index ...int) {
	a.Data[a.offset(index)] = value
}

func (a *Array) offset(index []int) int {
	if len(index) != len(a.Shape) {
		panic(errors.Errorf("index rank %d does not match array rank %d", len(index), len(a.Shape)))
	}

	offset := 0
	for axis, i := range index {
		offset = offset*a.Shape[axis] + i
	}

	return offset
}

// Reshape returns a view of the same data with a new shape.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if volume(shape) != len(a.Data) {
		return nil, errors.Errorf("cannot reshape %d elements to %v", len(a.Data), shape)
	}

	return &Array{Shape: shape, Data: a.Data}, nil
}

// Slice returns a copy of the [lo, hi) range along the first axis.
// The bounds are clamped to the axis length.
func (a *Array) Slice(lo, hi int) *Array {
	if a.Rank() == 0 {
		return &Array{}
	}

	n := a.Shape[0]
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if lo >= hi {
		shape := append([]int{0}, a.Shape[1:]...)
		return &Array{Shape: shape}
	}

	stride := len(a.Data) / n
	shape := append([]int{hi - lo}, a.Shape[1:]...)
	data := make([]float64, (hi-lo)*stride)
	copy(data, a.Data[lo*stride:hi*stride])
	return &Array{Shape: shape, Data: data}
}

// Concat concatenates arrays along the first axis. Arrays must agree on
// the trailing axes; nil entries are skipped.
func Concat(arrays ...*Array) *Array {
	var out *Array
	for _, a := range arrays {
		if a == nil || a.Len() == 0 {
			continue
		}

		if out == nil {
			out = &Array{Shape: append([]int(nil), a.Shape...), Data: append([]float64(nil), a.Data...)}
			continue
		}

		out.Shape[0] += a.Shape[0]
		out.Data = append(out.Data, a.Data...)
	}

	if out == nil {
		return &Array{}
	}

	return out
}

// PadTo zero-pads or truncates the first axis to exactly n entries.
func (a *Array) PadTo(n int) *Array {
	if a.Rank() == 0 {
		return Zeros(n)
	}

	if a.Shape[0] == n {
		return a
	}

	if a.Shape[0] > n {
		return a.Slice(0, n)
	}

	shape := append([]int{n}, a.Shape[1:]...)
	out := New(shape...)
	copy(out.Data, a.Data)
	return out
}

// Equal reports whether two arrays have the same shape and elements.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}

	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}

	for i, n := range a.Shape {
		if b.Shape[i] != n {
			return false
		}
	}

	for i, v := range a.Data {
		if b.Data[i] != v {
			return false
		}
	}

	return true
}

// Bytes converts elements to uint8, clamping to [0, 255].
// This is the raw pixel/byte view used by image codecs.
func (a *Array) Bytes() []byte {
	out := make([]byte, len(a.Data))
	for i, v := range a.Data {
		out[i] = clampByte(v)
	}

	return out
}

// Int16s converts elements to signed 16-bit samples, clamping on overflow.
func (a *Array) Int16s() []int16 {
	out := make([]int16, len(a.Data))
	for i, v := range a.Data {
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}

	return out
}

func clampByte(v float64) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

func volume(shape []int) int {
	n := 1
	for _, size := range shape {
		n *= size
	}

	if len(shape) == 0 {
		return 0
	}

	return n
}
