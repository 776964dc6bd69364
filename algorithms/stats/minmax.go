package stats

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// MinMaxFormat selects the columns written per channel.
type MinMaxFormat int

const (
	FormatMinMax MinMaxFormat = iota // min then max
	FormatMin
	FormatMax
)

func ParseMinMaxFormat(name string) (MinMaxFormat, error) {
	switch strings.ToLower(name) {
	case "min":
		return FormatMin, nil
	case "max":
		return FormatMax, nil
	case "", "minmax":
		return FormatMinMax, nil
	}
	return FormatMinMax, stream.NewConfigError("minmax", "format", name, "expected min, max or minmax")
}

type MinMaxOptions struct {
	Params
	Format MinMaxFormat
}

// MinMax computes windowed extrema. SLIDING mode keeps a monotonic deque per
// channel so each sample costs amortized O(1).
type MinMax struct {
	opts    MinMaxOptions
	win     int
	dim     int
	windows []*extrema
	scratch []float64
	logger  logging.Logger
}

func NewMinMax(opts MinMaxOptions) (*MinMax, error) {
	win, err := opts.samples("minmax")
	if err != nil {
		return nil, err
	}
	if opts.Format < FormatMinMax || opts.Format > FormatMax {
		return nil, stream.NewConfigError("minmax", "format", int(opts.Format), "unknown format")
	}
	return &MinMax{
		opts: opts,
		win:  win,
		logger: logging.WithFields(logging.Fields{
			"component": "minmax",
		}),
	}, nil
}

func (m *MinMax) width() int {
	if m.opts.Format == FormatMinMax {
		return 2
	}
	return 1
}

func (m *MinMax) OutputDim(dim int) int { return dim * m.width() }
func (m *MinMax) OutputByte(int) int { return stream.Double.Size() }
func (m *MinMax) OutputType(stream.Type) stream.Type { return stream.Double }
func (m *MinMax) OutputNum(frame int) int { return aggregateNum(m.opts.Method, m.win, frame) }

func (m *MinMax) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("minmax", m.opts.Rate, in, out, m.OutputDim(in.Dim)); err != nil {
		return err
	}
	if err := checkBlocks("minmax", m.opts.Method, m.win, info.FrameNum); err != nil {
		return err
	}
	m.dim = in.Dim
	m.windows = m.windows[:0]
	if m.opts.Method == Sliding {
		for range m.dim {
			m.windows = append(m.windows, newExtrema(m.win))
		}
	}
	m.scratch = make([]float64, 0, m.win)
	m.logger.Debug("Entered", logging.Fields{
		"method": m.opts.Method.String(),
		"win":    m.win,
	})
	return nil
}

func (m *MinMax) write(dst []float64, lo, hi float64) {
	switch m.opts.Format {
	case FormatMin:
		dst[0] = lo
	case FormatMax:
		dst[0] = hi
	case FormatMinMax:
		dst[0], dst[1] = lo, hi
	}
}

func (m *MinMax) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("minmax", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()
	w := m.width()
	rowLen := m.dim * w

	if m.opts.Method == Moving {
		for b := range info.FrameNum / m.win {
			for ch := range m.dim {
				m.scratch = gather(m.scratch, src, m.dim, ch, b*m.win, m.win)
				m.write(dst[b*rowLen+ch*w:], floats.Min(m.scratch), floats.Max(m.scratch))
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch, e := range m.windows {
			e.push(src[i*m.dim+ch])
			m.write(dst[i*rowLen+ch*w:], e.min(), e.max())
		}
	}
	return nil
}

func (m *MinMax) Flush(in, out *stream.Stream) error {
	m.windows = nil
	m.scratch = nil
	return nil
}
