package stats

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// degenerate is the spread below which a window counts as constant.
const degenerate = 1e-12

// NormPolicy selects how a sample is rescaled against its window.
type NormPolicy int

const (
	NormZScore NormPolicy = iota // (x-mean)/std
	NormRange                    // window [min,max] mapped onto [Low,High]
	NormSubAvg                   // x-mean
	NormSubMin                   // x-min
)

func (p NormPolicy) String() string {
	switch p {
	case NormZScore:
		return "zscore"
	case NormRange:
		return "range"
	case NormSubAvg:
		return "subavg"
	case NormSubMin:
		return "submin"
	}
	return "unknown"
}

func ParseNormPolicy(name string) (NormPolicy, error) {
	switch strings.ToLower(name) {
	case "", "zscore":
		return NormZScore, nil
	case "range", "minmax":
		return NormRange, nil
	case "subavg":
		return NormSubAvg, nil
	case "submin":
		return NormSubMin, nil
	}
	return NormZScore, stream.NewConfigError("norm", "policy", name, "expected zscore, range, subavg or submin")
}

type NormOptions struct {
	Params
	Policy    NormPolicy
	Low, High float64 // target range of NormRange
}

// Norm rescales every sample relative to the statistics of its window. A
// constant window maps to 0 (zscore) or Low (range).
type Norm struct {
	opts    NormOptions
	win     int
	dim     int
	sums    []*running
	extreme []*extrema
	scratch []float64
	logger  logging.Logger
}

func NewNorm(opts NormOptions) (*Norm, error) {
	win, err := opts.samples("norm")
	if err != nil {
		return nil, err
	}
	if opts.Policy < NormZScore || opts.Policy > NormSubMin {
		return nil, stream.NewConfigError("norm", "policy", int(opts.Policy), "unknown policy")
	}
	if opts.Policy == NormRange && !(opts.High > opts.Low) {
		return nil, stream.NewConfigError("norm", "range", [2]float64{opts.Low, opts.High}, "high must exceed low")
	}
	return &Norm{
		opts: opts,
		win:  win,
		logger: logging.WithFields(logging.Fields{
			"component": "norm",
		}),
	}, nil
}

func (n *Norm) OutputDim(dim int) int { return dim }
func (n *Norm) OutputByte(int) int { return stream.Double.Size() }
func (n *Norm) OutputType(stream.Type) stream.Type { return stream.Double }
func (n *Norm) OutputNum(frame int) int { return frame }

func (n *Norm) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("norm", n.opts.Rate, in, out, in.Dim); err != nil {
		return err
	}
	n.dim = in.Dim
	n.sums, n.extreme = n.sums[:0], n.extreme[:0]
	if n.opts.Method == Sliding {
		for range n.dim {
			n.sums = append(n.sums, newRunning(n.win))
			n.extreme = append(n.extreme, newExtrema(n.win))
		}
	}
	n.scratch = make([]float64, 0, n.win)
	n.logger.Debug("Entered", logging.Fields{
		"method": n.opts.Method.String(),
		"policy": n.opts.Policy.String(),
		"win":    n.win,
	})
	return nil
}

func (n *Norm) apply(x, mean, variance, lo, hi float64) float64 {
	switch n.opts.Policy {
	case NormZScore:
		std := math.Sqrt(variance)
		if std < degenerate {
			return 0
		}
		return (x - mean) / std
	case NormRange:
		r := hi - lo
		if r < degenerate {
			return n.opts.Low
		}
		return n.opts.Low + (x-lo)/r*(n.opts.High-n.opts.Low)
	case NormSubAvg:
		return x - mean
	case NormSubMin:
		return x - lo
	}
	return x
}

func (n *Norm) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("norm", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()

	if n.opts.Method == Moving {
		for start := 0; start < info.FrameNum; start += n.win {
			size := min(n.win, info.FrameNum-start)
			for ch := range n.dim {
				n.scratch = gather(n.scratch, src, n.dim, ch, start, size)
				mean, variance := stat.PopMeanVariance(n.scratch, nil)
				lo, hi := floats.Min(n.scratch), floats.Max(n.scratch)
				for i := start; i < start+size; i++ {
					k := i*n.dim + ch
					dst[k] = n.apply(src[k], mean, variance, lo, hi)
				}
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch := range n.dim {
			k := i*n.dim + ch
			x := src[k]
			r, e := n.sums[ch], n.extreme[ch]
			r.push(x)
			e.push(x)
			dst[k] = n.apply(x, r.mean(), r.variance(), e.min(), e.max())
		}
	}
	return nil
}

func (n *Norm) Flush(in, out *stream.Stream) error {
	n.sums, n.extreme, n.scratch = nil, nil, nil
	return nil
}
