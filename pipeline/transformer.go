// Package pipeline drives transformers over streams in fixed-size frames with
// optional overlap (delta) and composes them into chains.
package pipeline

import (
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Info describes one transform step.
type Info struct {
	Time     float64 // start time of the window in seconds
	Dur      float64 // duration of the new samples in seconds
	FrameNum int     // new samples in this step
	DeltaNum int     // trailing context samples re-presented in the next step
}

// Shape is the inferred layout of a transformer's output.
type Shape struct {
	Num  int
	Dim  int
	Byte int
	Type stream.Type
}

// Transformer is a stateful stream processor. The Output* methods must be pure
// functions of configuration; the driver calls them once, before Enter.
type Transformer interface {
	// OutputDim returns the output channel count for dim input channels.
	OutputDim(dim int) int
	// OutputByte returns the output scalar size for byteSize input bytes.
	OutputByte(byteSize int) int
	// OutputType returns the output scalar type for input type t.
	OutputType(t stream.Type) stream.Type
	// OutputNum returns the number of output samples produced for frame new
	// input samples.
	OutputNum(frame int) int

	// Enter allocates per-run state. info carries the frame and delta sizes of
	// every following step; in and out are templates whose Num is the window
	// length (frame+delta) and OutputNum(frame) respectively.
	Enter(info Info, in, out *stream.Stream) error
	// Transform processes one window.
	Transform(info Info, in, out *stream.Stream, xtra ...*stream.Stream) error
	// Flush releases per-run state.
	Flush(in, out *stream.Stream) error
}

// LookaheadFilter is implemented by sample-preserving filters that can process
// samples ahead of the stream without committing them to their history. A
// Chain with filters uses it to filter the look-ahead context of a window.
// in and out of Preview may hold fewer samples than the Enter templates;
// info.FrameNum of them are processed.
type LookaheadFilter interface {
	Preview(info Info, in, out *stream.Stream) error
}

// InferShape evaluates the shape contract of t for an input template.
func InferShape(t Transformer, frame, dim, byteSize int, typ stream.Type) Shape {
	return Shape{
		Num:  t.OutputNum(frame),
		Dim:  t.OutputDim(dim),
		Byte: t.OutputByte(byteSize),
		Type: t.OutputType(typ),
	}
}

// NewOutput allocates a stream matching shape, with the sample rate of a
// transformer that emits shape.Num samples per frame new input samples.
func NewOutput(shape Shape, frame int, inputRate float64) *stream.Stream {
	rate := inputRate
	if frame > 0 && shape.Num != frame {
		rate = inputRate * float64(shape.Num) / float64(frame)
	}
	return stream.New(shape.Num, shape.Dim, shape.Byte, shape.Type, rate)
}

// RequireDouble returns a ShapeError unless s holds float64 values.
func RequireDouble(component string, s *stream.Stream) error {
	if s.Type != stream.Double || s.Byte != stream.Double.Size() {
		return stream.NewShapeError(component, "input type", stream.Double, s.Type)
	}
	return nil
}

// ShapeError and ConfigError are shared with the stream package.
type (
	ShapeError  = stream.ShapeError
	ConfigError = stream.ConfigError
)

var (
	ErrShape  = stream.ErrShape
	ErrConfig = stream.ErrConfig
)
