package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// ConDivOptions configures a ConDiv. Short and Long are in seconds.
type ConDivOptions struct {
	Method Method
	Short  float64
	Long   float64
	Rate   float64
}

// ConDiv divides the mean over a short window by the mean over a long one.
// MOVING works on blocks of the long window and uses the last Short seconds
// of each block as the short window. A long mean of 0 yields 0.
type ConDiv struct {
	opts        ConDivOptions
	short, long int
	dim         int
	shorts      []*running
	longs       []*running
	scratch     []float64
	logger      logging.Logger
}

func NewConDiv(opts ConDivOptions) (*ConDiv, error) {
	if err := checkMethod("condiv", opts.Method); err != nil {
		return nil, err
	}
	short, err := toSamples("condiv", "short", opts.Short, opts.Rate)
	if err != nil {
		return nil, err
	}
	long, err := toSamples("condiv", "long", opts.Long, opts.Rate)
	if err != nil {
		return nil, err
	}
	if short >= long {
		return nil, stream.NewConfigError("condiv", "short", opts.Short, "short window must be shorter than the long window")
	}
	return &ConDiv{
		opts:  opts,
		short: short,
		long:  long,
		logger: logging.WithFields(logging.Fields{
			"component": "condiv",
		}),
	}, nil
}

func ratio(short, long float64) float64 {
	if math.Abs(long) < degenerate {
		return 0
	}
	return short / long
}

func (c *ConDiv) OutputDim(dim int) int { return dim }
func (c *ConDiv) OutputByte(int) int { return stream.Double.Size() }
func (c *ConDiv) OutputType(stream.Type) stream.Type { return stream.Double }
func (c *ConDiv) OutputNum(frame int) int { return aggregateNum(c.opts.Method, c.long, frame) }

func (c *ConDiv) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := checkEnter("condiv", c.opts.Rate, in, out, in.Dim); err != nil {
		return err
	}
	if err := checkBlocks("condiv", c.opts.Method, c.long, info.FrameNum); err != nil {
		return err
	}
	c.dim = in.Dim
	c.shorts, c.longs = c.shorts[:0], c.longs[:0]
	if c.opts.Method == Sliding {
		for range c.dim {
			c.shorts = append(c.shorts, newRunning(c.short))
			c.longs = append(c.longs, newRunning(c.long))
		}
	}
	c.scratch = make([]float64, 0, c.long)
	c.logger.Debug("Entered", logging.Fields{
		"method": c.opts.Method.String(),
		"short":  c.short,
		"long":   c.long,
	})
	return nil
}

func (c *ConDiv) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, err := newSamples("condiv", info, in)
	if err != nil {
		return err
	}
	dst := out.Float64s()

	if c.opts.Method == Moving {
		for b := range info.FrameNum / c.long {
			for ch := range c.dim {
				c.scratch = gather(c.scratch, src, c.dim, ch, b*c.long, c.long)
				long := floats.Sum(c.scratch) / float64(c.long)
				short := floats.Sum(c.scratch[c.long-c.short:]) / float64(c.short)
				dst[b*c.dim+ch] = ratio(short, long)
			}
		}
		return nil
	}

	for i := range info.FrameNum {
		for ch := range c.dim {
			x := src[i*c.dim+ch]
			c.shorts[ch].push(x)
			c.longs[ch].push(x)
			dst[i*c.dim+ch] = ratio(c.shorts[ch].mean(), c.longs[ch].mean())
		}
	}
	return nil
}

func (c *ConDiv) Flush(in, out *stream.Stream) error {
	c.shorts, c.longs, c.scratch = nil, nil, nil
	return nil
}
