package stream

import (
	"fmt"
)

func sameLayout(op string, a, b *Stream) error {
	if a.Dim != b.Dim {
		return NewShapeError(op, "dim", a.Dim, b.Dim)
	}
	if a.Type != b.Type || a.Byte != b.Byte {
		return NewShapeError(op, "type", fmt.Sprintf("%s/%d", a.Type, a.Byte), fmt.Sprintf("%s/%d", b.Type, b.Byte))
	}
	return nil
}

// Select copies the given channels of s, in the given order, into a new
// stream.
func Select(s *Stream, channels []int) (*Stream, error) {
	if len(channels) == 0 {
		return nil, NewShapeError("select", "channels", "at least one", 0)
	}
	for _, c := range channels {
		if c < 0 || c >= s.Dim {
			return nil, NewShapeError("select", "channel", fmt.Sprintf("[0,%d)", s.Dim), c)
		}
	}
	out := New(s.Num, len(channels), s.Byte, s.Type, s.SampleRate)
	out.Time = s.Time
	src, dst := s.Bytes(), out.Bytes()
	for i := 0; i < s.Num; i++ {
		for j, c := range channels {
			from := (i*s.Dim + c) * s.Byte
			to := (i*out.Dim + j) * s.Byte
			copy(dst[to:to+s.Byte], src[from:from+s.Byte])
		}
	}
	return out, nil
}

// Concat appends the samples of every stream in rest to first and returns the
// result as a new stream.
func Concat(first *Stream, rest ...*Stream) (*Stream, error) {
	num := first.Num
	for _, r := range rest {
		if err := sameLayout("concat", first, r); err != nil {
			return nil, err
		}
		num += r.Num
	}
	out := New(num, first.Dim, first.Byte, first.Type, first.SampleRate)
	out.Time = first.Time
	off := copy(out.Bytes(), first.Bytes())
	for _, r := range rest {
		off += copy(out.Bytes()[off:], r.Bytes())
	}
	return out, nil
}

// Merge places the channels of every stream side by side. All streams must
// hold the same number of samples and scalar type.
func Merge(first *Stream, rest ...*Stream) (*Stream, error) {
	all := append([]*Stream{first}, rest...)
	dim := 0
	for _, s := range all {
		if s.Num != first.Num {
			return nil, NewShapeError("merge", "num", first.Num, s.Num)
		}
		if s.Type != first.Type || s.Byte != first.Byte {
			return nil, NewShapeError("merge", "type", first.Type, s.Type)
		}
		dim += s.Dim
	}
	out := New(first.Num, dim, first.Byte, first.Type, first.SampleRate)
	out.Time = first.Time
	dst := out.Bytes()
	for i := 0; i < first.Num; i++ {
		off := i * dim * first.Byte
		for _, s := range all {
			row := s.Bytes()[i*s.Dim*s.Byte : (i+1)*s.Dim*s.Byte]
			off += copy(dst[off:], row)
		}
	}
	return out, nil
}

// ToFloat64 reads every scalar of a numeric stream as float64.
func ToFloat64(s *Stream) ([]float64, error) {
	n := s.Num * s.Dim
	out := make([]float64, n)
	if s.Type.Size() != s.Byte {
		return nil, NewShapeError("convert", "byte", s.Type.Size(), s.Byte)
	}
	switch s.Type {
	case Char:
		for i, v := range View[int8](s) {
			out[i] = float64(v)
		}
	case UChar:
		for i, v := range View[uint8](s) {
			out[i] = float64(v)
		}
	case Short:
		for i, v := range View[int16](s) {
			out[i] = float64(v)
		}
	case UShort:
		for i, v := range View[uint16](s) {
			out[i] = float64(v)
		}
	case Int:
		for i, v := range View[int32](s) {
			out[i] = float64(v)
		}
	case UInt:
		for i, v := range View[uint32](s) {
			out[i] = float64(v)
		}
	case Long:
		for i, v := range View[int64](s) {
			out[i] = float64(v)
		}
	case ULong:
		for i, v := range View[uint64](s) {
			out[i] = float64(v)
		}
	case Float:
		for i, v := range View[float32](s) {
			out[i] = float64(v)
		}
	case Double:
		copy(out, View[float64](s))
	case Undef, Struct:
		return nil, NewShapeError("convert", "type", "numeric", s.Type)
	}
	return out, nil
}

func store[T Scalar](dst []T, values []float64) {
	for i, v := range values {
		dst[i] = T(v)
	}
}

// Convert returns a copy of s cast to the numeric type t.
func Convert(s *Stream, t Type) (*Stream, error) {
	values, err := ToFloat64(s)
	if err != nil {
		return nil, err
	}
	if !t.Numeric() {
		return nil, NewShapeError("convert", "target type", "numeric", t)
	}
	out := New(s.Num, s.Dim, t.Size(), t, s.SampleRate)
	out.Time = s.Time
	switch t {
	case Char:
		store(View[int8](out), values)
	case UChar:
		store(View[uint8](out), values)
	case Short:
		store(View[int16](out), values)
	case UShort:
		store(View[uint16](out), values)
	case Int:
		store(View[int32](out), values)
	case UInt:
		store(View[uint32](out), values)
	case Long:
		store(View[int64](out), values)
	case ULong:
		store(View[uint64](out), values)
	case Float:
		store(View[float32](out), values)
	case Double:
		copy(View[float64](out), values)
	case Undef, Struct:
	}
	return out, nil
}
