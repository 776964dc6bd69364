// Package temporal holds time domain features computed over whole windows.
package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// EnergyOptions configures Energy.
type EnergyOptions struct {
	DB    bool    // report 20*log10(rms) instead of rms
	Floor float64 // rms values below are clamped before the log, defaults to 1e-10
}

// Energy writes the short-time RMS of every channel once per window. The
// window covers the delta context as well as the new samples, so overlapping
// windows give overlapping energies.
type Energy struct {
	opts   EnergyOptions
	logger logging.Logger
}

func NewEnergy(opts EnergyOptions) (*Energy, error) {
	if opts.Floor < 0 {
		return nil, stream.NewConfigError("energy", "floor", opts.Floor, "must not be negative")
	}
	if opts.Floor == 0 {
		opts.Floor = 1e-10
	}
	return &Energy{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "energy",
		}),
	}, nil
}

func (e *Energy) OutputDim(dim int) int { return dim }
func (e *Energy) OutputByte(int) int { return stream.Double.Size() }
func (e *Energy) OutputType(stream.Type) stream.Type { return stream.Double }
func (e *Energy) OutputNum(int) int { return 1 }

func (e *Energy) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := pipeline.RequireDouble("energy", in); err != nil {
		return err
	}
	if out.Dim != in.Dim {
		return stream.NewShapeError("energy", "output dim", in.Dim, out.Dim)
	}
	e.logger.Debug("Entered", logging.Fields{
		"db":     e.opts.DB,
		"window": in.Num,
	})
	return nil
}

func (e *Energy) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, dst := in.Float64s(), out.Float64s()
	if in.Num == 0 {
		clear(dst)
		return nil
	}
	for ch := range in.Dim {
		sum := 0.0
		for i := range in.Num {
			x := src[i*in.Dim+ch]
			sum += x * x
		}
		rms := math.Sqrt(sum / float64(in.Num))
		if e.opts.DB {
			rms = 20 * math.Log10(max(rms, e.opts.Floor))
		}
		dst[ch] = rms
	}
	return nil
}

func (e *Energy) Flush(in, out *stream.Stream) error {
	return nil
}
