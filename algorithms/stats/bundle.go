package stats

import (
	"strings"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Replace selects the value written for bridged samples.
type Replace int

const (
	ReplacePrevious Replace = iota // last value written
	ReplaceFixed                   // BundleOptions.Value
)

func ParseReplace(name string) (Replace, error) {
	switch strings.ToLower(name) {
	case "", "previous", "prev":
		return ReplacePrevious, nil
	case "fixed":
		return ReplaceFixed, nil
	}
	return ReplacePrevious, stream.NewConfigError("bundle", "replace", name, "expected previous or fixed")
}

// BundleOptions configures a Bundle. HangIn and HangOut are sample counts.
type BundleOptions struct {
	Threshold float64 // a sample is active when strictly above
	HangIn    int     // consecutive active samples that open a bundle
	HangOut   int     // consecutive inactive samples that close it
	Replace   Replace
	Value     float64
}

type bundleState struct {
	active bool
	run    int
	prev   float64
}

// Bundle merges runs of active samples with hysteresis. Runs of active
// samples shorter than HangIn outside a bundle and gaps shorter than HangOut
// inside one are replaced, so the output does not toggle on short spikes.
type Bundle struct {
	opts   BundleOptions
	dim    int
	states []bundleState
	logger logging.Logger
}

func NewBundle(opts BundleOptions) (*Bundle, error) {
	if opts.HangIn < 0 {
		return nil, stream.NewConfigError("bundle", "hangin", opts.HangIn, "must not be negative")
	}
	if opts.HangOut < 0 {
		return nil, stream.NewConfigError("bundle", "hangout", opts.HangOut, "must not be negative")
	}
	if opts.Replace != ReplacePrevious && opts.Replace != ReplaceFixed {
		return nil, stream.NewConfigError("bundle", "replace", int(opts.Replace), "unknown policy")
	}
	return &Bundle{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "bundle",
		}),
	}, nil
}

func (b *Bundle) OutputDim(dim int) int { return dim }
func (b *Bundle) OutputByte(int) int { return stream.Double.Size() }
func (b *Bundle) OutputType(stream.Type) stream.Type { return stream.Double }
func (b *Bundle) OutputNum(frame int) int { return frame }

func (b *Bundle) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("bundle", 0, in, out, in.Dim); err != nil {
		return err
	}
	b.dim = in.Dim
	b.states = make([]bundleState, b.dim)
	b.logger.Debug("Entered", logging.Fields{
		"hangin":  b.opts.HangIn,
		"hangout": b.opts.HangOut,
	})
	return nil
}

func (b *Bundle) replacement(s *bundleState) float64 {
	if b.opts.Replace == ReplaceFixed {
		return b.opts.Value
	}
	return s.prev
}

func (b *Bundle) step(s *bundleState, x float64) float64 {
	raw := x > b.opts.Threshold
	out := x
	switch {
	case raw == s.active:
		s.run = 0
	case !s.active:
		s.run++
		if s.run >= b.opts.HangIn {
			s.active, s.run = true, 0
		} else {
			out = b.replacement(s)
		}
	default:
		s.run++
		if s.run >= b.opts.HangOut {
			s.active, s.run = false, 0
		} else {
			out = b.replacement(s)
		}
	}
	s.prev = out
	return out
}

func (b *Bundle) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("bundle", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()
	for i := range info.FrameNum {
		for ch := range b.dim {
			k := i*b.dim + ch
			dst[k] = b.step(&b.states[ch], src[k])
		}
	}
	return nil
}

func (b *Bundle) Flush(in, out *stream.Stream) error {
	b.states = nil
	return nil
}
