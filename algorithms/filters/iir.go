package filters

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/common"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// IIRState is the lifecycle position of an IIR filter.
type IIRState int

const (
	Uninitialized IIRState = iota
	Entered
	Running
)

func (s IIRState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Entered:
		return "entered"
	case Running:
		return "running"
	}
	return "unknown"
}

// section holds one biquad in the order the inner loop reads it.
type section struct {
	a1, a2, b0, b1, b2 float64
}

// IIR is a cascade of second-order sections applied independently to every
// channel. For section j with history (h1,h2) each sample runs
//
//	v = x - h1*a1
//	new = v - h2*a2
//	y = new*b0 + h1*b1 + h2*b2
//	h2, h1 = h1, new
//
// and y feeds section j+1.
type IIR struct {
	sections []section
	state    IIRState
	dim      int
	hist     []float64 // [channel][section]{h1,h2}
	saved    []float64 // history kept across Preview
	logger   logging.Logger
}

// NewIIR creates a filter with the given coefficient matrix, see SetCoefs.
func NewIIR(coefs *mat.Dense) (*IIR, error) {
	f := &IIR{
		logger: logging.WithFields(logging.Fields{
			"component": "iir",
		}),
	}
	if err := f.SetCoefs(coefs); err != nil {
		return nil, err
	}
	return f, nil
}

func parseSections(coefs *mat.Dense) ([]section, error) {
	rows, cols := common.Dims(coefs)
	if rows == 0 {
		return nil, stream.NewConfigError("iir", "coefs", "empty", "at least one section required")
	}
	if cols != sosCols {
		return nil, stream.NewConfigError("iir", "coefs columns", cols, "expected [b0 b1 b2 1 a1 a2]")
	}
	sections := make([]section, rows)
	for r := range rows {
		if a0 := coefs.At(r, colA0); a0 != 1 {
			return nil, stream.NewConfigError("iir", fmt.Sprintf("section %d a0", r), a0, "must be exactly 1")
		}
		sections[r] = section{
			a1: coefs.At(r, colA1),
			a2: coefs.At(r, colA2),
			b0: coefs.At(r, colB0),
			b1: coefs.At(r, colB1),
			b2: coefs.At(r, colB2),
		}
	}
	return sections, nil
}

// SetCoefs installs a new sections x 6 coefficient matrix. It may be called
// in any state. History is kept when the number of sections is unchanged and
// zeroed otherwise. A rejected matrix leaves the filter untouched.
func (f *IIR) SetCoefs(coefs *mat.Dense) error {
	sections, err := parseSections(coefs)
	if err != nil {
		return err
	}
	resized := len(sections) != len(f.sections)
	f.sections = sections
	if f.state != Uninitialized && resized {
		f.hist = make([]float64, len(f.sections)*f.dim*2)
		f.logger.Debug("History reset after section count change", logging.Fields{
			"sections": len(f.sections),
		})
	}
	return nil
}

// Coefs returns a copy of the coefficients in [b0 b1 b2 1 a1 a2] layout.
func (f *IIR) Coefs() *mat.Dense {
	coefs := mat.NewDense(len(f.sections), sosCols, nil)
	for i, s := range f.sections {
		setSection(coefs, i, s.b0, s.b1, s.b2, s.a1, s.a2)
	}
	return coefs
}

// Sections returns the number of cascaded biquads.
func (f *IIR) Sections() int { return len(f.sections) }

// State returns the lifecycle state.
func (f *IIR) State() IIRState { return f.state }

// History returns a copy of the filter history, nil when not entered.
func (f *IIR) History() []float64 {
	if f.hist == nil {
		return nil
	}
	return append([]float64(nil), f.hist...)
}

// Reset zeroes the history without reallocating it.
func (f *IIR) Reset() {
	clear(f.hist)
}

func (f *IIR) OutputDim(dim int) int { return dim }
func (f *IIR) OutputByte(int) int { return stream.Double.Size() }
func (f *IIR) OutputType(stream.Type) stream.Type { return stream.Double }
func (f *IIR) OutputNum(frame int) int { return frame }

// Enter allocates history for the channel count of in.
func (f *IIR) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := pipeline.RequireDouble("iir", in); err != nil {
		return err
	}
	if out.Dim != in.Dim {
		return stream.NewShapeError("iir", "output dim", in.Dim, out.Dim)
	}
	f.dim = in.Dim
	f.hist = make([]float64, len(f.sections)*f.dim*2)
	f.state = Entered
	return nil
}

// check validates a step and returns the number of samples to filter.
func (f *IIR) check(info pipeline.Info, in, out *stream.Stream) (int, error) {
	if f.state == Uninitialized {
		return 0, fmt.Errorf("iir: transform before enter")
	}
	if in.Dim != f.dim || out.Dim != f.dim {
		return 0, stream.NewShapeError("iir", "dim", f.dim, in.Dim)
	}
	num := info.FrameNum
	if num < 0 || num > in.Num || num > out.Num {
		return 0, stream.NewShapeError("iir", "frame", min(in.Num, out.Num), num)
	}
	return num, nil
}

// Transform filters the info.FrameNum new samples of in into out.
func (f *IIR) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	num, err := f.check(info, in, out)
	if err != nil {
		return err
	}
	f.Filter(in.Float64s()[:num*f.dim], out.Float64s()[:num*f.dim])
	f.state = Running
	return nil
}

// Preview filters the info.FrameNum samples of in like Transform and then
// restores the history, so the next Transform continues as if Preview had
// not run.
func (f *IIR) Preview(info pipeline.Info, in, out *stream.Stream) error {
	num, err := f.check(info, in, out)
	if err != nil {
		return err
	}
	f.peek(in.Float64s()[:num*f.dim], out.Float64s()[:num*f.dim])
	return nil
}

// peek runs Filter without keeping the history it leaves behind.
func (f *IIR) peek(src, dst []float64) {
	f.saved = append(f.saved[:0], f.hist...)
	f.Filter(src, dst)
	copy(f.hist, f.saved)
}

// Filter runs interleaved samples through the cascade. src and dst may be
// the same slice and must hold whole samples of the entered channel count.
func (f *IIR) Filter(src, dst []float64) {
	n := len(f.sections)
	for i := 0; i+f.dim <= len(src); i += f.dim {
		for ch := range f.dim {
			x := src[i+ch]
			h := f.hist[ch*n*2 : (ch+1)*n*2]
			for j, s := range f.sections {
				h1, h2 := h[2*j], h[2*j+1]
				v := x - h1*s.a1
				nh := v - h2*s.a2
				x = nh*s.b0 + h1*s.b1 + h2*s.b2
				h[2*j+1] = h1
				h[2*j] = nh
			}
			dst[i+ch] = x
		}
	}
}

// Flush frees the history and returns to Uninitialized.
func (f *IIR) Flush(in, out *stream.Stream) error {
	f.hist = nil
	f.state = Uninitialized
	return nil
}
