package stats

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Stencil selects the finite difference coefficients.
type Stencil int

const (
	Central2 Stencil = iota // second order accurate, 3 points
	Central4                // fourth order accurate, 5 points
)

func ParseStencil(name string) (Stencil, error) {
	switch strings.ToLower(name) {
	case "", "central2", "2":
		return Central2, nil
	case "central4", "4":
		return Central4, nil
	}
	return Central2, stream.NewConfigError("drvtv", "stencil", name, "expected central2 or central4")
}

// Derivative is a set of derivative orders written per channel.
type Derivative int

const (
	First  Derivative = 1 << iota
	Second            // written after First when both are set
)

// ParseDerivative maps "first", "second" or "first|second" to flags.
func ParseDerivative(name string) (Derivative, error) {
	var d Derivative
	for _, part := range strings.Split(strings.ToLower(name), "|") {
		switch strings.TrimSpace(part) {
		case "first", "1":
			d |= First
		case "second", "2":
			d |= Second
		default:
			return 0, stream.NewConfigError("drvtv", "derivative", name, "expected first, second or first|second")
		}
	}
	return d, nil
}

type DrvtvOptions struct {
	Params
	Stencil Stencil
	Flags   Derivative
}

// Drvtv differentiates the window means of every channel with respect to
// time in seconds. MOVING differentiates consecutive block means, spaced by
// the window length. SLIDING differentiates the per-sample trailing mean,
// spaced by one sample. The stencils are centred, so the result describes
// the mean one (Central2) or two (Central4) spacings in the past. History
// starts filled with the first mean, which makes the first derivatives 0.
type Drvtv struct {
	opts    DrvtvOptions
	win     int
	dim     int
	h       float64
	hist    [][5]float64 // newest first
	primed  []bool
	sums    []*running
	scratch []float64
	logger  logging.Logger
}

func NewDrvtv(opts DrvtvOptions) (*Drvtv, error) {
	win, err := opts.samples("drvtv")
	if err != nil {
		return nil, err
	}
	if opts.Stencil != Central2 && opts.Stencil != Central4 {
		return nil, stream.NewConfigError("drvtv", "stencil", int(opts.Stencil), "unknown stencil")
	}
	if opts.Flags&(First|Second) == 0 || opts.Flags&^(First|Second) != 0 {
		return nil, stream.NewConfigError("drvtv", "derivative", int(opts.Flags), "set First, Second or both")
	}
	return &Drvtv{
		opts: opts,
		win:  win,
		logger: logging.WithFields(logging.Fields{
			"component": "drvtv",
		}),
	}, nil
}

func (d *Drvtv) width() int {
	if d.opts.Flags == First|Second {
		return 2
	}
	return 1
}

func (d *Drvtv) OutputDim(dim int) int { return dim * d.width() }
func (d *Drvtv) OutputByte(int) int { return stream.Double.Size() }
func (d *Drvtv) OutputType(stream.Type) stream.Type { return stream.Double }
func (d *Drvtv) OutputNum(frame int) int { return aggregateNum(d.opts.Method, d.win, frame) }

func (d *Drvtv) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("drvtv", d.opts.Rate, in, out, d.OutputDim(in.Dim)); err != nil {
		return err
	}
	if err := checkBlocks("drvtv", d.opts.Method, d.win, info.FrameNum); err != nil {
		return err
	}
	d.dim = in.Dim
	d.hist = make([][5]float64, d.dim)
	d.primed = make([]bool, d.dim)
	d.sums = d.sums[:0]
	if d.opts.Method == Sliding {
		d.h = 1 / d.opts.Rate
		for range d.dim {
			d.sums = append(d.sums, newRunning(d.win))
		}
	} else {
		d.h = float64(d.win) / d.opts.Rate
	}
	d.scratch = make([]float64, 0, d.win)
	d.logger.Debug("Entered", logging.Fields{
		"method":  d.opts.Method.String(),
		"win":     d.win,
		"spacing": d.h,
	})
	return nil
}

// push records mean for channel ch and writes the requested derivatives.
func (d *Drvtv) push(ch int, mean float64, dst []float64) {
	m := &d.hist[ch]
	if !d.primed[ch] {
		*m = [5]float64{mean, mean, mean, mean, mean}
		d.primed[ch] = true
	} else {
		copy(m[1:], m[:4])
		m[0] = mean
	}

	var first, second float64
	h := d.h
	switch d.opts.Stencil {
	case Central2:
		first = (m[0] - m[2]) / (2 * h)
		second = (m[0] - 2*m[1] + m[2]) / (h * h)
	case Central4:
		first = (-m[0] + 8*m[1] - 8*m[3] + m[4]) / (12 * h)
		second = (-m[0] + 16*m[1] - 30*m[2] + 16*m[3] - m[4]) / (12 * h * h)
	}

	k := 0
	if d.opts.Flags&First != 0 {
		dst[k] = first
		k++
	}
	if d.opts.Flags&Second != 0 {
		dst[k] = second
	}
}

func (d *Drvtv) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("drvtv", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()
	w := d.width()
	rowLen := d.dim * w

	if d.opts.Method == Moving {
		for b := range info.FrameNum / d.win {
			for ch := range d.dim {
				d.scratch = gather(d.scratch, src, d.dim, ch, b*d.win, d.win)
				d.push(ch, floats.Sum(d.scratch)/float64(d.win), dst[b*rowLen+ch*w:])
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch, r := range d.sums {
			r.push(src[i*d.dim+ch])
			d.push(ch, r.mean(), dst[i*rowLen+ch*w:])
		}
	}
	return nil
}

func (d *Drvtv) Flush(in, out *stream.Stream) error {
	d.hist, d.primed, d.sums, d.scratch = nil, nil, nil, nil
	return nil
}
