package pipeline

import (
	"fmt"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Chain applies its filters in order and then every feature to the filtered
// window, concatenating the feature outputs column-wise. Without features the
// chain outputs the filtered samples.
//
// Features always see the window as the new samples followed by the delta
// look-ahead samples, with or without filters. Filters consume the new samples
// of a window through Transform and the look-ahead through Preview, so their
// history advances by exactly the new samples of each step. With delta>0
// every filter must therefore implement LookaheadFilter. A filter that
// changes the sample count leaves its features without look-ahead.
type Chain struct {
	filters  []Transformer
	features []Transformer
	logger   logging.Logger

	frame, delta int // outer window
	filterFrame  int // samples leaving the last filter
	context      int // look-ahead samples following them in the feature window

	filterIn  []*stream.Stream
	filterOut []*stream.Stream
	lookIn    []*stream.Stream
	lookOut   []*stream.Stream
	featIn    *stream.Stream
	featOut   []*stream.Stream
}

// NewChain returns a chain over filters and features. At least one of them
// must be non-empty.
func NewChain(filters, features []Transformer) (*Chain, error) {
	if len(filters) == 0 && len(features) == 0 {
		return nil, stream.NewConfigError("chain", "stages", 0, "at least one filter or feature required")
	}
	for i, t := range append(append([]Transformer{}, filters...), features...) {
		if t == nil {
			return nil, stream.NewConfigError("chain", "stage", i, "must not be nil")
		}
	}
	return &Chain{
		filters:  filters,
		features: features,
		logger: logging.WithFields(logging.Fields{
			"component": "chain",
		}),
	}, nil
}

// Filters returns the filter stages.
func (c *Chain) Filters() []Transformer { return c.filters }

// Features returns the feature stages.
func (c *Chain) Features() []Transformer { return c.features }

func (c *Chain) filteredDim(dim int) int {
	for _, f := range c.filters {
		dim = f.OutputDim(dim)
	}
	return dim
}

func (c *Chain) filteredNum(frame int) int {
	for _, f := range c.filters {
		frame = f.OutputNum(frame)
	}
	return frame
}

func (c *Chain) OutputDim(dim int) int {
	dim = c.filteredDim(dim)
	if len(c.features) == 0 {
		return dim
	}
	sum := 0
	for _, f := range c.features {
		sum += f.OutputDim(dim)
	}
	return sum
}

func (c *Chain) OutputByte(byteSize int) int {
	if len(c.features) > 0 {
		return stream.Double.Size()
	}
	for _, f := range c.filters {
		byteSize = f.OutputByte(byteSize)
	}
	return byteSize
}

func (c *Chain) OutputType(t stream.Type) stream.Type {
	if len(c.features) > 0 {
		return stream.Double
	}
	for _, f := range c.filters {
		t = f.OutputType(t)
	}
	return t
}

func (c *Chain) OutputNum(frame int) int {
	frame = c.filteredNum(frame)
	if len(c.features) == 0 {
		return frame
	}
	return c.features[0].OutputNum(frame)
}

func (c *Chain) Enter(info Info, in, out *stream.Stream) error {
	if err := RequireDouble("chain", in); err != nil {
		return err
	}
	c.frame, c.delta = info.FrameNum, info.DeltaNum

	dim, num := in.Dim, c.frame
	c.filterIn = c.filterIn[:0]
	c.filterOut = c.filterOut[:0]
	for i, f := range c.filters {
		var fin *stream.Stream
		if i == 0 {
			fin = stream.NewDouble(num, dim, in.SampleRate)
		} else {
			fin = c.filterOut[i-1]
		}
		shape := InferShape(f, num, dim, fin.Byte, fin.Type)
		fout := NewOutput(shape, num, fin.SampleRate)
		if err := RequireDouble(fmt.Sprintf("chain filter %d output", i), fout); err != nil {
			return err
		}
		if err := f.Enter(Info{Time: info.Time, FrameNum: num}, fin, fout); err != nil {
			return fmt.Errorf("chain: filter %d: %w", i, err)
		}
		c.filterIn = append(c.filterIn, fin)
		c.filterOut = append(c.filterOut, fout)
		dim, num = shape.Dim, shape.Num
	}
	c.filterFrame = num

	c.featOut = c.featOut[:0]
	if len(c.features) > 0 {
		rate := in.SampleRate
		if len(c.filterOut) > 0 {
			rate = c.filterOut[len(c.filterOut)-1].SampleRate
		}
		c.context = c.delta
		if len(c.filters) > 0 && c.filterFrame != c.frame {
			c.context = 0
		}
		if len(c.filters) > 0 && c.context > 0 {
			if err := c.enterLookahead(in); err != nil {
				return err
			}
		}
		c.featIn = stream.NewDouble(c.filterFrame+c.context, dim, rate)

		want := -1
		for i, f := range c.features {
			shape := InferShape(f, c.filterFrame, dim, c.featIn.Byte, c.featIn.Type)
			if want < 0 {
				want = shape.Num
			} else if shape.Num != want {
				return stream.NewShapeError("chain", fmt.Sprintf("feature %d sample count", i), want, shape.Num)
			}
			fout := NewOutput(shape, c.filterFrame, rate)
			if err := RequireDouble(fmt.Sprintf("chain feature %d output", i), fout); err != nil {
				return err
			}
			if err := f.Enter(Info{Time: info.Time, FrameNum: c.filterFrame, DeltaNum: c.context}, c.featIn, fout); err != nil {
				return fmt.Errorf("chain: feature %d: %w", i, err)
			}
			c.featOut = append(c.featOut, fout)
		}
	}

	if out.Dim != c.OutputDim(in.Dim) {
		return stream.NewShapeError("chain", "output dim", c.OutputDim(in.Dim), out.Dim)
	}
	if out.Num != c.OutputNum(c.frame) {
		return stream.NewShapeError("chain", "output num", c.OutputNum(c.frame), out.Num)
	}

	c.logger.Debug("Chain entered", logging.Fields{
		"filters":      len(c.filters),
		"features":     len(c.features),
		"filter_frame": c.filterFrame,
		"context":      c.context,
		"output_dim":   out.Dim,
	})
	return nil
}

func (c *Chain) Transform(info Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	window := in
	if len(c.filters) > 0 {
		src := in.Float64s()
		copy(c.filterIn[0].Float64s(), src[:c.frame*in.Dim])
		num := c.frame
		for i, f := range c.filters {
			fi := Info{Time: info.Time, Dur: info.Dur, FrameNum: num}
			if err := f.Transform(fi, c.filterIn[i], c.filterOut[i], xtra...); err != nil {
				return fmt.Errorf("chain: filter %d: %w", i, err)
			}
			num = c.filterOut[i].Num
		}
		filtered := c.filterOut[len(c.filterOut)-1]
		if len(c.features) == 0 {
			copy(out.Bytes(), filtered.Bytes())
			return nil
		}
		buf := c.featIn.Float64s()
		copy(buf, filtered.Float64s()[:c.filterFrame*filtered.Dim])
		if c.context > 0 {
			if err := c.preview(info, in, buf[c.filterFrame*filtered.Dim:]); err != nil {
				return err
			}
		}
		window = c.featIn
	}

	fi := Info{Time: info.Time, Dur: info.Dur, FrameNum: c.filterFrame, DeltaNum: c.context}
	for i, f := range c.features {
		if err := f.Transform(fi, window, c.featOut[i], xtra...); err != nil {
			return fmt.Errorf("chain: feature %d: %w", i, err)
		}
	}

	dst := out.Float64s()
	col := 0
	for _, fo := range c.featOut {
		src := fo.Float64s()
		for s := 0; s < out.Num; s++ {
			copy(dst[s*out.Dim+col:s*out.Dim+col+fo.Dim], src[s*fo.Dim:(s+1)*fo.Dim])
		}
		col += fo.Dim
	}
	return nil
}

// enterLookahead checks that every filter can preview and allocates the
// streams the look-ahead samples run through.
func (c *Chain) enterLookahead(in *stream.Stream) error {
	c.lookIn, c.lookOut = c.lookIn[:0], c.lookOut[:0]
	prev := stream.NewDouble(c.context, in.Dim, in.SampleRate)
	for i, f := range c.filters {
		if _, ok := f.(LookaheadFilter); !ok {
			return stream.NewConfigError("chain", fmt.Sprintf("filter %d", i), fmt.Sprintf("%T", f),
				"cannot filter look-ahead samples, use delta 0")
		}
		next := NewOutput(InferShape(f, c.context, prev.Dim, prev.Byte, prev.Type), c.context, prev.SampleRate)
		c.lookIn = append(c.lookIn, prev)
		c.lookOut = append(c.lookOut, next)
		prev = next
	}
	return nil
}

// preview filters the look-ahead samples of in into dst without advancing
// the filter histories.
func (c *Chain) preview(info Info, in *stream.Stream, dst []float64) error {
	src := in.Float64s()
	copy(c.lookIn[0].Float64s(), src[c.frame*in.Dim:(c.frame+c.context)*in.Dim])
	fi := Info{Time: info.Time + info.Dur, FrameNum: c.context}
	for i, f := range c.filters {
		if err := f.(LookaheadFilter).Preview(fi, c.lookIn[i], c.lookOut[i]); err != nil {
			return fmt.Errorf("chain: filter %d look-ahead: %w", i, err)
		}
	}
	copy(dst, c.lookOut[len(c.lookOut)-1].Float64s())
	return nil
}

func (c *Chain) Flush(in, out *stream.Stream) error {
	var firstErr error
	for i, f := range c.filters {
		if err := f.Flush(c.filterIn[i], c.filterOut[i]); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("chain: filter %d: %w", i, err)
		}
	}
	for i, f := range c.features {
		if err := f.Flush(c.featIn, c.featOut[i]); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("chain: feature %d: %w", i, err)
		}
	}
	c.filterIn, c.filterOut, c.featOut = nil, nil, nil
	c.lookIn, c.lookOut = nil, nil
	c.featIn = nil
	return firstErr
}
