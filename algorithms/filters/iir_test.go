package filters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

func enterIIR(t *testing.T, f *IIR, num, dim int) (in, out *stream.Stream) {
	t.Helper()
	in = stream.NewDouble(num, dim, 8000)
	out = stream.NewDouble(num, dim, 8000)
	require.NoError(t, f.Enter(pipeline.Info{FrameNum: num}, in, out))
	return in, out
}

func noise(t *testing.T, num, dim int, seed uint64) *stream.Stream {
	t.Helper()
	s, err := WhiteNoise(num, dim, 8000, 1, seed)
	require.NoError(t, err)
	return s
}

func TestIIRStateMachine(t *testing.T) {
	coefs, err := LPButter(4, 0.2)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, f.State())
	assert.Equal(t, 2, f.Sections())
	assert.Nil(t, f.History())

	in := stream.NewDouble(8, 1, 8000)
	out := stream.NewDouble(8, 1, 8000)
	assert.Error(t, f.Transform(pipeline.Info{FrameNum: 8}, in, out))

	require.NoError(t, f.Enter(pipeline.Info{FrameNum: 8}, in, out))
	assert.Equal(t, Entered, f.State())
	assert.Len(t, f.History(), 2*1*2)

	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 8}, in, out))
	assert.Equal(t, Running, f.State())

	require.NoError(t, f.Flush(in, out))
	assert.Equal(t, Uninitialized, f.State())
	assert.Nil(t, f.History())
}

func TestIIRSetCoefsRejectsBadMatrix(t *testing.T) {
	coefs, err := LPButter(2, 0.3)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)
	enterIIR(t, f, 4, 2)

	bad := mat.NewDense(1, 6, []float64{1, 0, 0, 0.5, 0, 0})
	err = f.SetCoefs(bad)
	assert.True(t, errors.Is(err, stream.ErrConfig))
	var cfgErr *stream.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.True(t, mat.Equal(coefs, f.Coefs()))
	assert.Equal(t, Entered, f.State())

	err = f.SetCoefs(mat.NewDense(1, 5, nil))
	assert.True(t, errors.Is(err, stream.ErrConfig))
	assert.True(t, mat.Equal(coefs, f.Coefs()))
}

func TestIIRSetCoefsKeepsHistory(t *testing.T) {
	lp, err := LPButter(4, 0.2)
	require.NoError(t, err)
	f, err := NewIIR(lp)
	require.NoError(t, err)
	in, out := enterIIR(t, f, 32, 1)
	copy(in.Float64s(), noise(t, 32, 1, 3).Float64s())
	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 32}, in, out))

	before := f.History()
	hp, err := HPButter(4, 0.2)
	require.NoError(t, err)
	require.NoError(t, f.SetCoefs(hp))
	assert.Equal(t, before, f.History())
	assert.True(t, mat.Equal(hp, f.Coefs()))

	// a different section count restarts from rest
	lp8, err := LPButter(8, 0.2)
	require.NoError(t, err)
	require.NoError(t, f.SetCoefs(lp8))
	assert.Equal(t, make([]float64, 4*1*2), f.History())
}

func TestIIRDeterministic(t *testing.T) {
	coefs, err := LPButter(6, 0.15)
	require.NoError(t, err)
	src := noise(t, 500, 2, 42)

	run := func() []float64 {
		f, err := NewIIR(coefs)
		require.NoError(t, err)
		in, out := enterIIR(t, f, 500, 2)
		copy(in.Float64s(), src.Float64s())
		require.NoError(t, f.Transform(pipeline.Info{FrameNum: 500}, in, out))
		return append([]float64(nil), out.Float64s()...)
	}
	assert.Equal(t, run(), run())
}

func TestIIRChunksEqualWhole(t *testing.T) {
	coefs, err := BPButter(4, 0.1, 0.3)
	require.NoError(t, err)
	src := noise(t, 400, 3, 7)

	whole, err := NewIIR(coefs)
	require.NoError(t, err)
	in, out := enterIIR(t, whole, 400, 3)
	copy(in.Float64s(), src.Float64s())
	require.NoError(t, whole.Transform(pipeline.Info{FrameNum: 400}, in, out))
	want := append([]float64(nil), out.Float64s()...)

	halves, err := NewIIR(coefs)
	require.NoError(t, err)
	in, out = enterIIR(t, halves, 200, 3)
	var got []float64
	for k := range 2 {
		copy(in.Float64s(), src.Float64s()[k*600:(k+1)*600])
		require.NoError(t, halves.Transform(pipeline.Info{FrameNum: 200}, in, out))
		got = append(got, out.Float64s()...)
	}
	assert.Equal(t, want, got)
}

func TestIIRThroughDriver(t *testing.T) {
	coefs, err := LPButter(4, 0.25)
	require.NoError(t, err)
	src := noise(t, 1000, 1, 11)

	filter := func(frame int) *stream.Stream {
		f, err := NewIIR(coefs)
		require.NoError(t, err)
		out, err := pipeline.Transform(context.Background(), f, pipeline.Config{Frame: frame}, src)
		require.NoError(t, err)
		return out
	}
	a, b := filter(64), filter(100)
	assert.Equal(t, 1000, a.Num)
	assert.Equal(t, 1000, b.Num)
	assert.Equal(t, a.Float64s(), b.Float64s())
}

func TestIIRStepResponseSettles(t *testing.T) {
	coefs, err := LPButter(4, 0.1)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)
	in, out := enterIIR(t, f, 2000, 1)
	for i := range in.Float64s() {
		in.Float64s()[i] = 1
	}
	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 2000}, in, out))
	assert.InDelta(t, 1.0, out.Float64s()[1999], 1e-9)

	f.Reset()
	assert.Equal(t, make([]float64, 2*1*2), f.History())
}

func TestIIRDCBlocker(t *testing.T) {
	coefs, err := DCBlocker(0.99)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)
	in, out := enterIIR(t, f, 4000, 1)
	for i := range in.Float64s() {
		in.Float64s()[i] = 5
	}
	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 4000}, in, out))
	assert.Equal(t, 5.0, out.Float64s()[0])
	assert.InDelta(t, 0, out.Float64s()[3999], 1e-9)
}

func TestIIREnterShapeErrors(t *testing.T) {
	coefs, err := LPButter(2, 0.5)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)

	in := stream.New(8, 1, stream.Float.Size(), stream.Float, 8000)
	err = f.Enter(pipeline.Info{FrameNum: 8}, in, stream.NewDouble(8, 1, 8000))
	assert.True(t, errors.Is(err, stream.ErrShape))

	err = f.Enter(pipeline.Info{FrameNum: 8}, stream.NewDouble(8, 2, 8000), stream.NewDouble(8, 1, 8000))
	assert.True(t, errors.Is(err, stream.ErrShape))
	assert.Equal(t, Uninitialized, f.State())
}

func TestIIRPreviewRestoresHistory(t *testing.T) {
	coefs, err := LPButter(4, 0.2)
	require.NoError(t, err)
	f, err := NewIIR(coefs)
	require.NoError(t, err)
	in, out := enterIIR(t, f, 16, 2)

	copy(in.Float64s(), noise(t, 16, 2, 3).Float64s())
	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 16}, in, out))
	hist := f.History()

	ahead := noise(t, 6, 2, 4)
	previewed := stream.NewDouble(6, 2, 8000)
	require.NoError(t, f.Preview(pipeline.Info{FrameNum: 6}, ahead, previewed))
	assert.Equal(t, hist, f.History())

	copy(in.Float64s(), ahead.Float64s())
	require.NoError(t, f.Transform(pipeline.Info{FrameNum: 6}, in, out))
	assert.Equal(t, previewed.Float64s(), out.Float64s()[:12])

	err = f.Preview(pipeline.Info{FrameNum: 7}, ahead, previewed)
	assert.True(t, errors.Is(err, stream.ErrShape))
}
