package stats

import (
	"slices"

	"github.com/RyanBlaney/sonido-pipe/algorithms/common"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// MedianOptions configures a Median. Win is in samples.
type MedianOptions struct {
	Method Method
	Win    int
}

// Median computes the windowed median of every channel; even windows give
// the mean of the middle pair.
type Median struct {
	opts    MedianOptions
	dim     int
	rings   []*common.Ring
	scratch []float64
	logger  logging.Logger
}

func NewMedian(opts MedianOptions) (*Median, error) {
	if err := checkMethod("median", opts.Method); err != nil {
		return nil, err
	}
	if opts.Win <= 0 {
		return nil, stream.NewConfigError("median", "win", opts.Win, "window size must be positive")
	}
	return &Median{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "median",
		}),
	}, nil
}

// median sorts values in place.
func median(values []float64) float64 {
	slices.Sort(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func (m *Median) OutputDim(dim int) int { return dim }
func (m *Median) OutputByte(int) int { return stream.Double.Size() }
func (m *Median) OutputType(stream.Type) stream.Type { return stream.Double }
func (m *Median) OutputNum(frame int) int { return aggregateNum(m.opts.Method, m.opts.Win, frame) }

func (m *Median) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("median", 0, in, out, in.Dim); err != nil {
		return err
	}
	if err := checkBlocks("median", m.opts.Method, m.opts.Win, info.FrameNum); err != nil {
		return err
	}
	m.dim = in.Dim
	m.rings = m.rings[:0]
	if m.opts.Method == Sliding {
		for range m.dim {
			m.rings = append(m.rings, common.NewRing(m.opts.Win))
		}
	}
	m.scratch = make([]float64, 0, m.opts.Win)
	m.logger.Debug("Entered", logging.Fields{
		"method": m.opts.Method.String(),
		"win":    m.opts.Win,
	})
	return nil
}

func (m *Median) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("median", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()
	win := m.opts.Win

	if m.opts.Method == Moving {
		for b := range info.FrameNum / win {
			for ch := range m.dim {
				m.scratch = gather(m.scratch, src, m.dim, ch, b*win, win)
				dst[b*m.dim+ch] = median(m.scratch)
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch, r := range m.rings {
			r.Push(src[i*m.dim+ch])
			m.scratch = r.Values(m.scratch)
			dst[i*m.dim+ch] = median(m.scratch)
		}
	}
	return nil
}

func (m *Median) Flush(in, out *stream.Stream) error {
	m.rings, m.scratch = nil, nil
	return nil
}
