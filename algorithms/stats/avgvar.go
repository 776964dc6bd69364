package stats

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// AvgVarFormat selects the columns written per channel.
type AvgVarFormat int

const (
	FormatAvg AvgVarFormat = iota
	FormatVar
	FormatAvgVar // avg then var
)

// ParseAvgVarFormat maps "avg", "var" or "avgvar" to a format.
func ParseAvgVarFormat(name string) (AvgVarFormat, error) {
	switch strings.ToLower(name) {
	case "", "avg", "mean":
		return FormatAvg, nil
	case "var", "variance":
		return FormatVar, nil
	case "avgvar":
		return FormatAvgVar, nil
	}
	return FormatAvg, stream.NewConfigError("avgvar", "format", name, "expected avg, var or avgvar")
}

type AvgVarOptions struct {
	Params
	Format AvgVarFormat
}

// AvgVar computes the windowed mean and/or population variance of every
// channel.
type AvgVar struct {
	opts    AvgVarOptions
	win     int
	dim     int
	windows []*running
	scratch []float64
	logger  logging.Logger
}

func NewAvgVar(opts AvgVarOptions) (*AvgVar, error) {
	win, err := opts.samples("avgvar")
	if err != nil {
		return nil, err
	}
	if opts.Format < FormatAvg || opts.Format > FormatAvgVar {
		return nil, stream.NewConfigError("avgvar", "format", int(opts.Format), "unknown format")
	}
	return &AvgVar{
		opts: opts,
		win:  win,
		logger: logging.WithFields(logging.Fields{
			"component": "avgvar",
		}),
	}, nil
}

func (a *AvgVar) width() int {
	if a.opts.Format == FormatAvgVar {
		return 2
	}
	return 1
}

// Window returns the window length in samples.
func (a *AvgVar) Window() int { return a.win }

func (a *AvgVar) OutputDim(dim int) int { return dim * a.width() }
func (a *AvgVar) OutputByte(int) int { return stream.Double.Size() }
func (a *AvgVar) OutputType(stream.Type) stream.Type { return stream.Double }
func (a *AvgVar) OutputNum(frame int) int { return aggregateNum(a.opts.Method, a.win, frame) }

func (a *AvgVar) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("avgvar", a.opts.Rate, in, out, a.OutputDim(in.Dim)); err != nil {
		return err
	}
	if err := checkBlocks("avgvar", a.opts.Method, a.win, info.FrameNum); err != nil {
		return err
	}
	a.dim = in.Dim
	a.windows = a.windows[:0]
	if a.opts.Method == Sliding {
		for range a.dim {
			a.windows = append(a.windows, newRunning(a.win))
		}
	}
	a.scratch = make([]float64, 0, a.win)
	a.logger.Debug("Entered", logging.Fields{
		"method": a.opts.Method.String(),
		"win":    a.win,
		"dim":    a.dim,
	})
	return nil
}

func (a *AvgVar) write(dst []float64, mean, variance float64) {
	switch a.opts.Format {
	case FormatAvg:
		dst[0] = mean
	case FormatVar:
		dst[0] = variance
	case FormatAvgVar:
		dst[0], dst[1] = mean, variance
	}
}

func (a *AvgVar) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("avgvar", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()
	w := a.width()
	rowLen := a.dim * w

	if a.opts.Method == Moving {
		for b := range info.FrameNum / a.win {
			for ch := range a.dim {
				a.scratch = gather(a.scratch, src, a.dim, ch, b*a.win, a.win)
				mean, variance := stat.PopMeanVariance(a.scratch, nil)
				a.write(dst[b*rowLen+ch*w:], mean, variance)
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch, r := range a.windows {
			r.push(src[i*a.dim+ch])
			a.write(dst[i*rowLen+ch*w:], r.mean(), r.variance())
		}
	}
	return nil
}

func (a *AvgVar) Flush(in, out *stream.Stream) error {
	a.windows = nil
	a.scratch = nil
	return nil
}
