// Package stream provides the sample container shared by every stage of a
// pipeline: a rectangular, row-major block of num samples by dim channels.
package stream

import (
	"fmt"
	"unsafe"
)

// Stream is a block of Num samples with Dim channels each, stored row-major:
// all channels of sample i are contiguous, followed by sample i+1.
type Stream struct {
	Num        int
	Dim        int
	Byte       int
	Type       Type
	SampleRate float64 // Hz, 0 for non-periodic data
	Time       float64 // start time in seconds

	buf []uint64 // 8-byte aligned backing store for typed views
	ptr []byte
}

// New allocates a zeroed stream of num*dim*byte bytes.
func New(num, dim, byteSize int, typ Type, sampleRate float64) *Stream {
	s := &Stream{
		Dim:        dim,
		Byte:       byteSize,
		Type:       typ,
		SampleRate: sampleRate,
	}
	s.Resize(num)
	return s
}

// NewDouble allocates a float64 stream.
func NewDouble(num, dim int, sampleRate float64) *Stream {
	return New(num, dim, Double.Size(), Double, sampleRate)
}

// FromFloat64 copies data into a new float64 stream with dim channels.
func FromFloat64(data []float64, dim int, sampleRate float64) (*Stream, error) {
	if dim <= 0 {
		return nil, NewShapeError("stream", "dim", "> 0", dim)
	}
	if len(data)%dim != 0 {
		return nil, NewShapeError("stream", "values", fmt.Sprintf("multiple of %d", dim), len(data))
	}
	s := NewDouble(len(data)/dim, dim, sampleRate)
	copy(s.Float64s(), data)
	return s, nil
}

// Size returns the number of bytes in the buffer, Num*Dim*Byte.
func (s *Stream) Size() int {
	return s.Num * s.Dim * s.Byte
}

// Bytes returns the raw buffer.
func (s *Stream) Bytes() []byte {
	return s.ptr
}

// Duration returns the length of the stream in seconds.
func (s *Stream) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.Num) / s.SampleRate
}

// Resize changes the number of samples. Existing samples are kept up to the
// new length, new samples are zero.
func (s *Stream) Resize(num int) {
	if num < 0 {
		num = 0
	}
	size := num * s.Dim * s.Byte
	words := (size + 7) / 8
	if words > cap(s.buf) {
		buf := make([]uint64, words)
		copy(buf, s.buf)
		s.buf = buf
	} else {
		old := len(s.buf)
		s.buf = s.buf[:words]
		for i := old; i < words; i++ {
			s.buf[i] = 0
		}
	}
	s.Num = num
	if size == 0 {
		s.ptr = nil
		return
	}
	s.ptr = unsafe.Slice((*byte)(unsafe.Pointer(&s.buf[0])), size)
}

// Reset zeroes the buffer.
func (s *Stream) Reset() {
	clear(s.buf)
}

// Clone returns a deep copy.
func (s *Stream) Clone() *Stream {
	c := New(s.Num, s.Dim, s.Byte, s.Type, s.SampleRate)
	c.Time = s.Time
	copy(c.ptr, s.ptr)
	return c
}

// Like allocates a zeroed stream with the same dim, type and rate but num
// samples.
func (s *Stream) Like(num int) *Stream {
	c := New(num, s.Dim, s.Byte, s.Type, s.SampleRate)
	c.Time = s.Time
	return c
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream{num=%d dim=%d byte=%d type=%s sr=%g time=%g}",
		s.Num, s.Dim, s.Byte, s.Type, s.SampleRate, s.Time)
}

// Scalar is the set of element types a stream can be viewed as.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// View reinterprets the buffer as a slice of T. It returns nil when the
// element size of T differs from s.Byte.
func View[T Scalar](s *Stream) []T {
	var zero T
	if s == nil || int(unsafe.Sizeof(zero)) != s.Byte {
		return nil
	}
	n := s.Num * s.Dim
	if n == 0 || len(s.ptr) == 0 {
		return []T{}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&s.buf[0])), n)
}

// Float64s views a Double stream as []float64.
func (s *Stream) Float64s() []float64 { return View[float64](s) }

// Float32s views a Float stream as []float32.
func (s *Stream) Float32s() []float32 { return View[float32](s) }

// Int16s views a Short stream as []int16.
func (s *Stream) Int16s() []int16 { return View[int16](s) }

// Int32s views an Int stream as []int32.
func (s *Stream) Int32s() []int32 { return View[int32](s) }

// Row returns the float64 values of sample i.
func (s *Stream) Row(i int) []float64 {
	v := s.Float64s()
	if v == nil || i < 0 || i >= s.Num {
		return nil
	}
	return v[i*s.Dim : (i+1)*s.Dim]
}
