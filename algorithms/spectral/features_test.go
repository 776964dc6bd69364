package spectral

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

func sine(t *testing.T, num, dim int, sr float64, freqs ...float64) *stream.Stream {
	t.Helper()
	data := make([]float64, num*dim)
	for i := range num {
		for ch := range dim {
			data[i*dim+ch] = math.Sin(2 * math.Pi * freqs[ch%len(freqs)] * float64(i) / sr)
		}
	}
	s, err := stream.FromFloat64(data, dim, sr)
	require.NoError(t, err)
	return s
}

func TestFFTfeatShape(t *testing.T) {
	f, err := NewFFTfeat(FFTfeatOptions{Nfft: 16})
	require.NoError(t, err)
	assert.Equal(t, 2*9, f.OutputDim(2))
	assert.Equal(t, f.OutputDim(2), f.OutputDim(2))
	assert.Equal(t, 1, f.OutputNum(16))

	// a constant frame only has energy at DC
	data := make([]float64, 16*2)
	for i := range data {
		data[i] = 1
	}
	s, err := stream.FromFloat64(data, 2, 100)
	require.NoError(t, err)

	out, err := pipeline.Transform(context.Background(), f, pipeline.Config{Frame: 16}, s)
	require.NoError(t, err)
	require.Equal(t, 1, out.Num)
	require.Equal(t, 18, out.Dim)
	row := out.Row(0)
	assert.InDelta(t, 16, row[0], 1e-9)
	assert.InDelta(t, 16, row[1], 1e-9)
	for i := 2; i < len(row); i++ {
		assert.InDelta(t, 0, row[i], 1e-9)
	}
}

func TestFFTfeatWindowedWithDelta(t *testing.T) {
	f, err := NewFFTfeat(FFTfeatOptions{Nfft: 32, Window: windowing.Hann})
	require.NoError(t, err)

	s := sine(t, 256, 1, 32, 4)
	cfg := pipeline.Config{Frame: 16, Delta: 16, Boundary: pipeline.BoundaryDrop}
	out, err := pipeline.Transform(context.Background(), f, cfg, s)
	require.NoError(t, err)
	assert.Equal(t, 15, out.Num)
	for i := range out.Num {
		row := out.Row(i)
		assert.Equal(t, 4, floats.MaxIdx(row), "step %d", i)
	}
}

func TestSpectrogramPeakBand(t *testing.T) {
	const sr = 8000.0
	opts := DefaultSpectrogramOptions()
	opts.Nfft = 256
	opts.NBanks = 8 // 500 Hz wide bands
	sg, err := NewSpectrogram(opts)
	require.NoError(t, err)

	s := sine(t, 1024, 1, sr, 1250)
	out, err := pipeline.Transform(context.Background(), sg, pipeline.Config{Frame: 256}, s)
	require.NoError(t, err)
	require.Equal(t, 4, out.Num)
	require.Equal(t, 8, out.Dim)
	for i := range out.Num {
		assert.Equal(t, 2, floats.MaxIdx(out.Row(i)))
	}

	bank := sg.Bank()
	assert.Nil(t, bank, "bank is released on flush")
}

func TestSpectrogramLogAndPower(t *testing.T) {
	const sr = 8000.0
	base := DefaultSpectrogramOptions()
	base.Nfft = 128
	base.Intervals = []Interval{{0, 1000}, {1000, 2000}, {2000, 4000}}

	plain, err := NewSpectrogram(base)
	require.NoError(t, err)
	logged := base
	logged.Log = true
	logged.Power = true
	lp, err := NewSpectrogram(logged)
	require.NoError(t, err)

	s := sine(t, 128, 1, sr, 500)
	a, err := pipeline.Transform(context.Background(), plain, pipeline.Config{Frame: 128}, s)
	require.NoError(t, err)
	b, err := pipeline.Transform(context.Background(), lp, pipeline.Config{Frame: 128}, s)
	require.NoError(t, err)

	require.Equal(t, 3, b.Dim)
	for _, v := range b.Row(0) {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
		assert.GreaterOrEqual(t, v, -10.0)
	}
	assert.Greater(t, a.Row(0)[0], a.Row(0)[2])
	assert.Greater(t, b.Row(0)[0], b.Row(0)[2])
}

func TestSpectrogramBankSources(t *testing.T) {
	s, err := NewSpectrogram(SpectrogramOptions{Nfft: 64, BankString: "0-100;100-200"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.OutputDim(1))

	bank := mat.NewDense(3, 33, nil)
	s, err = NewSpectrogram(SpectrogramOptions{Nfft: 64, Banks: bank})
	require.NoError(t, err)
	assert.Equal(t, 3, s.OutputDim(1))

	_, err = NewSpectrogram(SpectrogramOptions{Nfft: 64, Banks: mat.NewDense(3, 32, nil)})
	assert.True(t, errors.Is(err, stream.ErrConfig))

	_, err = NewSpectrogram(SpectrogramOptions{Nfft: 64})
	assert.True(t, errors.Is(err, stream.ErrConfig))

	_, err = NewSpectrogram(SpectrogramOptions{Nfft: 64, NBanks: 4, MinFreq: 500, MaxFreq: 100})
	assert.True(t, errors.Is(err, stream.ErrConfig))
}

func TestSpectrogramRejectsMultiChannel(t *testing.T) {
	sg, err := NewSpectrogram(DefaultSpectrogramOptions())
	require.NoError(t, err)

	s := sine(t, 512, 2, 8000, 440)
	_, err = pipeline.Transform(context.Background(), sg, pipeline.Config{Frame: 512}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrShape))
}

func TestMFCC(t *testing.T) {
	m, err := NewMFCC(DefaultMFCCOptions())
	require.NoError(t, err)

	first := m.OutputDim(1)
	second := m.OutputDim(1)
	assert.Equal(t, 13, first)
	assert.Equal(t, first, second)

	// 400 Hz repeats every 40 samples so every full window sees the same phase
	s := sine(t, 2048, 1, 16000, 400)
	out, err := pipeline.Transform(context.Background(), m, pipeline.Config{Frame: 400, Delta: 112}, s)
	require.NoError(t, err)
	assert.Equal(t, 13, out.Dim)
	assert.Equal(t, 6, out.Num)
	for _, v := range out.Float64s() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.InDeltaSlice(t, out.Row(1), out.Row(2), 1e-6)
	assert.InDeltaSlice(t, out.Row(0), out.Row(3), 1e-6)
}

func TestMFCCOptionsErrors(t *testing.T) {
	opts := DefaultMFCCOptions()
	opts.Last = 40
	_, err := NewMFCC(opts)
	assert.True(t, errors.Is(err, stream.ErrConfig))

	opts = DefaultMFCCOptions()
	opts.First, opts.Last = 5, 5
	_, err = NewMFCC(opts)
	assert.True(t, errors.Is(err, stream.ErrConfig))
}

func TestDescriptors(t *testing.T) {
	d, err := NewDescriptors(DescriptorsOptions{
		Nfft:        64,
		Descriptors: []Descriptor{Centroid, ZCR, Crest, Flux},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, d.OutputDim(2))

	// bin 8 of 64 at 64 Hz is 8 Hz
	s := sine(t, 128, 2, 64, 8, 16)
	out, err := pipeline.Transform(context.Background(), d, pipeline.Config{Frame: 64}, s)
	require.NoError(t, err)
	require.Equal(t, 2, out.Num)

	row := out.Row(1)
	assert.InDelta(t, 8, row[0], 1e-6)
	assert.InDelta(t, 16, row[4], 1e-6)
	assert.Greater(t, row[1], 0.0)
	assert.Less(t, row[1], row[5], "higher tone crosses zero more often")
	assert.InDelta(t, 0, out.Row(0)[3], 1e-12, "no flux on the first window")
	assert.InDelta(t, 0, row[3], 1e-6, "stationary tone")

	_, err = ParseDescriptor("loudness")
	assert.True(t, errors.Is(err, stream.ErrConfig))
	got, err := ParseDescriptor(" Rolloff ")
	require.NoError(t, err)
	assert.Equal(t, Rolloff, got)

	_, err = NewDescriptors(DescriptorsOptions{Nfft: 64})
	assert.True(t, errors.Is(err, stream.ErrConfig))
}

func TestDescriptorsReuseScratch(t *testing.T) {
	d, err := NewDescriptors(DescriptorsOptions{Nfft: 64, Descriptors: []Descriptor{ZCR}})
	require.NoError(t, err)
	in := sine(t, 64, 2, 64, 8, 16)
	out := stream.NewDouble(1, 2, 1)
	require.NoError(t, d.Enter(pipeline.Info{FrameNum: 64}, in, out))
	zcrs := &d.zcrs[0]

	for range 3 {
		require.NoError(t, d.Transform(pipeline.Info{FrameNum: 64}, in, out))
		assert.Same(t, zcrs, &d.zcrs[0])
	}
	assert.Equal(t, d.zcrs, out.Row(0))
}
