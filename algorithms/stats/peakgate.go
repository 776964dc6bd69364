package stats

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// ThresholdFunc derives the gate threshold from the window mean and standard
// deviation.
type ThresholdFunc func(mean, std float64) float64

// Fixed ignores the window.
func Fixed(t float64) ThresholdFunc {
	return func(float64, float64) float64 { return t }
}

// FixedAvg adds the window mean to t.
func FixedAvg(t float64) ThresholdFunc {
	return func(mean, _ float64) float64 { return t + mean }
}

// FixedAvgStd adds the window mean and k standard deviations to t.
func FixedAvgStd(t, k float64) ThresholdFunc {
	return func(mean, std float64) float64 { return t + mean + k*std }
}

// NewThreshold builds a built-in threshold by name: "fixed", "fixedavg" or
// "fixedavgstd".
func NewThreshold(name string, fixed, k float64) (ThresholdFunc, error) {
	switch strings.ToLower(name) {
	case "", "fixed":
		return Fixed(fixed), nil
	case "fixedavg", "fixed+avg":
		return FixedAvg(fixed), nil
	case "fixedavgstd", "fixed+avg+std":
		return FixedAvgStd(fixed, k), nil
	}
	return nil, stream.NewConfigError("peakgate", "threshold", name, "expected fixed, fixedavg or fixedavgstd")
}

// Gate selects which side of the threshold passes.
type Gate int

const (
	Above Gate = iota
	Below
)

func ParseGate(name string) (Gate, error) {
	switch strings.ToLower(name) {
	case "", "above":
		return Above, nil
	case "below":
		return Below, nil
	}
	return Above, stream.NewConfigError("peakgate", "gate", name, "expected above or below")
}

type PeakGateOptions struct {
	Params
	Threshold ThresholdFunc
	Gate      Gate
}

// PeakGate passes samples strictly above (or below) an adaptive threshold and
// zeroes the rest.
type PeakGate struct {
	opts    PeakGateOptions
	win     int
	dim     int
	sums    []*running
	scratch []float64
	logger  logging.Logger
}

func NewPeakGate(opts PeakGateOptions) (*PeakGate, error) {
	win, err := opts.samples("peakgate")
	if err != nil {
		return nil, err
	}
	if opts.Threshold == nil {
		return nil, stream.NewConfigError("peakgate", "threshold", nil, "must not be nil")
	}
	if opts.Gate != Above && opts.Gate != Below {
		return nil, stream.NewConfigError("peakgate", "gate", int(opts.Gate), "unknown gate")
	}
	return &PeakGate{
		opts: opts,
		win:  win,
		logger: logging.WithFields(logging.Fields{
			"component": "peakgate",
		}),
	}, nil
}

func (p *PeakGate) OutputDim(dim int) int { return dim }
func (p *PeakGate) OutputByte(int) int { return stream.Double.Size() }
func (p *PeakGate) OutputType(stream.Type) stream.Type { return stream.Double }
func (p *PeakGate) OutputNum(frame int) int { return frame }

func (p *PeakGate) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("peakgate", p.opts.Rate, in, out, in.Dim); err != nil {
		return err
	}
	p.dim = in.Dim
	p.sums = p.sums[:0]
	if p.opts.Method == Sliding {
		for range p.dim {
			p.sums = append(p.sums, newRunning(p.win))
		}
	}
	p.scratch = make([]float64, 0, p.win)
	p.logger.Debug("Entered", logging.Fields{
		"method": p.opts.Method.String(),
		"win":    p.win,
	})
	return nil
}

func (p *PeakGate) gate(x, threshold float64) float64 {
	if (p.opts.Gate == Above && x > threshold) || (p.opts.Gate == Below && x < threshold) {
		return x
	}
	return 0
}

func (p *PeakGate) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("peakgate", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()

	if p.opts.Method == Moving {
		for start := 0; start < info.FrameNum; start += p.win {
			size := min(p.win, info.FrameNum-start)
			for ch := range p.dim {
				p.scratch = gather(p.scratch, src, p.dim, ch, start, size)
				mean, variance := stat.PopMeanVariance(p.scratch, nil)
				threshold := p.opts.Threshold(mean, math.Sqrt(variance))
				for i := start; i < start+size; i++ {
					k := i*p.dim + ch
					dst[k] = p.gate(src[k], threshold)
				}
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch, r := range p.sums {
			k := i*p.dim + ch
			r.push(src[k])
			dst[k] = p.gate(src[k], p.opts.Threshold(r.mean(), math.Sqrt(r.variance())))
		}
	}
	return nil
}

func (p *PeakGate) Flush(in, out *stream.Stream) error {
	p.sums, p.scratch = nil, nil
	return nil
}
