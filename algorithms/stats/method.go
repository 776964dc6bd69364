// Package stats implements the moving window statistics: mean and variance,
// extrema, normalization, derivatives, median, short/long contrast, peak
// gating and hysteresis bundling.
//
// Every component evaluates either MOVING (non-overlapping blocks of the
// window length) or SLIDING (one result per new sample over the trailing
// window). Only the FrameNum new samples of each step are consumed; history
// across steps is kept by the component itself.
//
// Aggregating components (AvgVar, MinMax, Drvtv, Median, ConDiv) emit
// frame/window rows per step in MOVING mode, so the blocks of consecutive
// steps are contiguous. Enter rejects a frame that is not a whole number of
// windows. In SLIDING mode they emit one row per new sample; until the
// window has filled, the leading rows aggregate over the samples seen so far.
//
// Sample-preserving components (Norm, PeakGate, Bundle) emit one value per
// input. MOVING takes its statistics from the block a sample falls into,
// with a trailing partial block using the samples it has.
package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Method selects block-wise or per-sample evaluation.
type Method int

const (
	Moving Method = iota
	Sliding
)

func (m Method) String() string {
	switch m {
	case Moving:
		return "moving"
	case Sliding:
		return "sliding"
	}
	return "unknown"
}

// ParseMethod maps "moving" or "sliding" to a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "", "moving":
		return Moving, nil
	case "sliding":
		return Sliding, nil
	}
	return Moving, stream.NewConfigError("stats", "method", name, "expected moving or sliding")
}

// Params is the window configuration shared by the time based components.
// Win is in seconds and converted to samples with Rate, which must match the
// sample rate of the input stream.
type Params struct {
	Method Method
	Win    float64
	Rate   float64
}

func checkMethod(component string, m Method) error {
	if m != Moving && m != Sliding {
		return stream.NewConfigError(component, "method", int(m), "unknown method")
	}
	return nil
}

// toSamples converts a window length in seconds into samples.
func toSamples(component, option string, seconds, rate float64) (int, error) {
	if rate <= 0 {
		return 0, stream.NewConfigError(component, "rate", rate, "must be positive")
	}
	if !(seconds > 0) {
		return 0, stream.NewConfigError(component, option, seconds, "window size must be positive")
	}
	n := int(math.Round(seconds * rate))
	if n < 1 {
		return 0, stream.NewConfigError(component, option, seconds, "window shorter than one sample")
	}
	return n, nil
}

// samples validates p and returns the window length in samples.
func (p Params) samples(component string) (int, error) {
	if err := checkMethod(component, p.Method); err != nil {
		return 0, err
	}
	return toSamples(component, "win", p.Win, p.Rate)
}

// aggregateNum is the output count of an aggregating component.
func aggregateNum(m Method, win, frame int) int {
	if m == Moving {
		return frame / win
	}
	return frame
}

// checkBlocks rejects MOVING frames that do not split into whole windows.
func checkBlocks(component string, m Method, win, frame int) error {
	if m == Moving && frame%win != 0 {
		return stream.NewConfigError(component, "frame", frame,
			fmt.Sprintf("must be a multiple of the %d sample window in moving mode", win))
	}
	return nil
}

// checkEnter validates the wiring shared by every component. rate 0 skips
// the sample rate check.
func checkEnter(component string, rate float64, in, out *stream.Stream, outDim int) error {
	if err := pipeline.RequireDouble(component, in); err != nil {
		return err
	}
	if rate > 0 && math.Abs(in.SampleRate-rate) > 1e-9*rate {
		return stream.NewShapeError(component, "sample rate", rate, in.SampleRate)
	}
	if out.Dim != outDim {
		return stream.NewShapeError(component, "output dim", outDim, out.Dim)
	}
	return nil
}

// newSamples returns the info.FrameNum new samples of in.
func newSamples(component string, info pipeline.Info, in *stream.Stream) ([]float64, error) {
	if info.FrameNum > in.Num {
		return nil, stream.NewShapeError(component, "frame", in.Num, info.FrameNum)
	}
	return in.Float64s()[:info.FrameNum*in.Dim], nil
}

// gather copies channel ch of samples [start, start+n) into dst.
func gather(dst, src []float64, dim, ch, start, n int) []float64 {
	dst = dst[:0]
	for i := start; i < start+n; i++ {
		dst = append(dst, src[i*dim+ch])
	}
	return dst
}
