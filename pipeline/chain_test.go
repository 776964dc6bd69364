package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/filters"
	"github.com/RyanBlaney/sonido-pipe/algorithms/stats"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// gain multiplies the new samples by k.
type gain struct {
	k       float64
	flushes int
}

func (g *gain) OutputDim(dim int) int { return dim }
func (g *gain) OutputByte(int) int { return stream.Double.Size() }
func (g *gain) OutputType(stream.Type) stream.Type { return stream.Double }
func (g *gain) OutputNum(frame int) int { return frame }
func (g *gain) Enter(pipeline.Info, *stream.Stream, *stream.Stream) error { return nil }
func (g *gain) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	src, dst := in.Float64s(), out.Float64s()
	for i := range info.FrameNum * in.Dim {
		dst[i] = g.k * src[i]
	}
	return nil
}
func (g *gain) Preview(info pipeline.Info, in, out *stream.Stream) error {
	return g.Transform(info, in, out)
}
func (g *gain) Flush(*stream.Stream, *stream.Stream) error {
	g.flushes++
	return nil
}

// opaque hides every method but the Transformer contract.
type opaque struct{ pipeline.Transformer }

// peak writes the per channel maximum of the whole window, width times.
type peak struct {
	width   int
	num     int
	windows [][]float64
	flushes int
}

func (p *peak) OutputDim(dim int) int { return dim * p.width }
func (p *peak) OutputByte(int) int { return stream.Double.Size() }
func (p *peak) OutputType(stream.Type) stream.Type { return stream.Double }
func (p *peak) OutputNum(int) int { return max(p.num, 1) }
func (p *peak) Enter(pipeline.Info, *stream.Stream, *stream.Stream) error { return nil }
func (p *peak) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	p.windows = append(p.windows, append([]float64(nil), in.Float64s()...))
	src, dst := in.Float64s(), out.Float64s()
	for ch := range in.Dim {
		m := src[ch]
		for i := range in.Num {
			m = max(m, src[i*in.Dim+ch])
		}
		for w := range p.width {
			dst[ch*p.width+w] = m
		}
	}
	return nil
}
func (p *peak) Flush(*stream.Stream, *stream.Stream) error {
	p.flushes++
	return nil
}

func TestChainConcatenatesFeatures(t *testing.T) {
	g := &gain{k: 2}
	a, b := &peak{width: 1}, &peak{width: 2}
	c, err := pipeline.NewChain([]pipeline.Transformer{g}, []pipeline.Transformer{a, b})
	require.NoError(t, err)
	assert.Equal(t, 6, c.OutputDim(2))
	assert.Equal(t, c.OutputDim(2), c.OutputDim(2))
	assert.Equal(t, 1, c.OutputNum(4))

	out, err := pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4}, ramp(t, 8, 2))
	require.NoError(t, err)
	require.Equal(t, 2, out.Num)
	require.Equal(t, 6, out.Dim)
	// window 0 holds samples 0..3, channel maxima 6 and 7, doubled
	assert.Equal(t, []float64{12, 14, 12, 12, 14, 14}, out.Row(0))
	assert.Equal(t, []float64{28, 30, 28, 28, 30, 30}, out.Row(1))
	assert.Equal(t, 1, g.flushes)
	assert.Equal(t, 1, a.flushes)
	assert.Equal(t, 1, b.flushes)
}

func TestChainFiltersOnly(t *testing.T) {
	c, err := pipeline.NewChain([]pipeline.Transformer{&gain{k: 2}, &gain{k: -1}}, nil)
	require.NoError(t, err)
	out, err := pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 3}, ramp(t, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -2, -4, -6, -8, -10}, out.Float64s())
}

func TestChainFiltersLookAhead(t *testing.T) {
	f := &peak{width: 1}
	c, err := pipeline.NewChain([]pipeline.Transformer{&gain{k: 2}}, []pipeline.Transformer{f})
	require.NoError(t, err)
	_, err = pipeline.Transform(context.Background(), c,
		pipeline.Config{Frame: 4, Delta: 2, Boundary: pipeline.BoundaryDrop}, ramp(t, 14, 1))
	require.NoError(t, err)

	require.Len(t, f.windows, 3)
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, f.windows[0])
	assert.Equal(t, []float64{8, 10, 12, 14, 16, 18}, f.windows[1])
	assert.Equal(t, []float64{16, 18, 20, 22, 24, 26}, f.windows[2])
}

func TestChainStatsBehindFilter(t *testing.T) {
	identity, err := filters.NewIIR(mat.NewDense(1, 6, []float64{1, 0, 0, 1, 0, 0}))
	require.NoError(t, err)
	med, err := stats.NewMedian(stats.MedianOptions{Method: stats.Sliding, Win: 1})
	require.NoError(t, err)
	c, err := pipeline.NewChain([]pipeline.Transformer{identity}, []pipeline.Transformer{med})
	require.NoError(t, err)

	out, err := pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4, Delta: 2}, ramp(t, 12, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, out.Float64s())
}

func TestChainLookAheadKeepsFilterHistory(t *testing.T) {
	newLowPass := func() *filters.IIR {
		coefs, err := filters.LPButter(2, 0.2)
		require.NoError(t, err)
		f, err := filters.NewIIR(coefs)
		require.NoError(t, err)
		return f
	}
	ref, err := pipeline.NewChain([]pipeline.Transformer{newLowPass()}, nil)
	require.NoError(t, err)
	want, err := pipeline.Transform(context.Background(), ref, pipeline.Config{Frame: 4}, ramp(t, 12, 1))
	require.NoError(t, err)
	filtered := want.Float64s()

	med, err := stats.NewMedian(stats.MedianOptions{Method: stats.Sliding, Win: 1})
	require.NoError(t, err)
	c, err := pipeline.NewChain([]pipeline.Transformer{newLowPass()}, []pipeline.Transformer{med})
	require.NoError(t, err)
	out, err := pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4, Delta: 2}, ramp(t, 12, 1))
	require.NoError(t, err)
	assert.InDeltaSlice(t, filtered, out.Float64s(), 1e-12)

	rec := &peak{width: 1}
	c, err = pipeline.NewChain([]pipeline.Transformer{newLowPass()}, []pipeline.Transformer{rec})
	require.NoError(t, err)
	_, err = pipeline.Transform(context.Background(), c,
		pipeline.Config{Frame: 4, Delta: 2, Boundary: pipeline.BoundaryDrop}, ramp(t, 12, 1))
	require.NoError(t, err)
	require.Len(t, rec.windows, 2)
	for k, w := range rec.windows {
		assert.InDeltaSlice(t, filtered[4*k:4*k+6], w, 1e-12, "window %d", k)
	}
}

func TestChainRejectsFilterWithoutPreview(t *testing.T) {
	c, err := pipeline.NewChain([]pipeline.Transformer{opaque{&gain{k: 1}}}, []pipeline.Transformer{&peak{width: 1}})
	require.NoError(t, err)
	_, err = pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4, Delta: 2}, ramp(t, 8, 1))
	assert.True(t, errors.Is(err, pipeline.ErrConfig))

	_, err = pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4}, ramp(t, 8, 1))
	assert.NoError(t, err)
}

func TestChainFeaturesWithoutFiltersSeeDelta(t *testing.T) {
	f := &peak{width: 1}
	c, err := pipeline.NewChain(nil, []pipeline.Transformer{f})
	require.NoError(t, err)
	_, err = pipeline.Transform(context.Background(), c,
		pipeline.Config{Frame: 2, Delta: 1, Boundary: pipeline.BoundaryDrop}, ramp(t, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1, 2}, {2, 3, 4}}, f.windows)
}

func TestChainRejectsMismatchedFeatureCounts(t *testing.T) {
	c, err := pipeline.NewChain(nil, []pipeline.Transformer{&peak{width: 1}, &peak{width: 1, num: 2}})
	require.NoError(t, err)
	_, err = pipeline.Transform(context.Background(), c, pipeline.Config{Frame: 4}, ramp(t, 8, 1))
	assert.True(t, errors.Is(err, pipeline.ErrShape))

	_, err = pipeline.NewChain(nil, nil)
	assert.True(t, errors.Is(err, pipeline.ErrConfig))
	_, err = pipeline.NewChain([]pipeline.Transformer{nil}, nil)
	assert.True(t, errors.Is(err, pipeline.ErrConfig))
}
