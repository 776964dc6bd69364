package filters

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

func TestParseBand(t *testing.T) {
	for name, want := range map[string]Band{
		"low": LowPass, "LP": LowPass, "highpass": HighPass, "band": BandPass, "bp": BandPass,
	} {
		got, err := ParseBand(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseBand("notch")
	assert.True(t, errors.Is(err, stream.ErrConfig))
}

func TestButfiltHzCutoffs(t *testing.T) {
	b, err := NewButfilt(ButfiltOptions{Type: LowPass, Order: 4, Low: 1000})
	require.NoError(t, err)
	assert.Nil(t, b.Coefs())

	in := stream.NewDouble(64, 1, 8000)
	out := stream.NewDouble(64, 1, 8000)
	require.NoError(t, b.Enter(pipeline.Info{FrameNum: 64}, in, out))

	want, err := LPButter(4, 0.25)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, b.Coefs()))
	require.NoError(t, b.Flush(in, out))
	assert.Nil(t, b.Coefs())
}

func TestButfiltRejectsCutoffAboveNyquist(t *testing.T) {
	b, err := NewButfilt(ButfiltOptions{Type: HighPass, Order: 2, High: 5000})
	require.NoError(t, err)
	in := stream.NewDouble(16, 1, 8000)
	err = b.Enter(pipeline.Info{FrameNum: 16}, in, in.Like(16))
	assert.True(t, errors.Is(err, stream.ErrConfig))

	_, err = NewButfilt(ButfiltOptions{Type: BandPass, Order: 2, Low: 0.4, High: 0.2, Norm: true})
	assert.True(t, errors.Is(err, stream.ErrConfig))
	_, err = NewButfilt(ButfiltOptions{Type: LowPass, Order: 0, Low: 0.4, Norm: true})
	assert.True(t, errors.Is(err, stream.ErrConfig))
}

func TestButfiltSetOptionsValidates(t *testing.T) {
	opts := ButfiltOptions{Type: LowPass, Order: 4, Low: 0.2, Norm: true}
	b, err := NewButfilt(opts)
	require.NoError(t, err)

	err = b.SetCutoffs(1.2, 0)
	assert.True(t, errors.Is(err, stream.ErrConfig))
	assert.Equal(t, opts, b.Options())
}

func TestButfiltHotSwapKeepsHistory(t *testing.T) {
	src := noise(t, 256, 2, 5)
	first, second := src.Float64s()[:256], src.Float64s()[256:]

	b, err := NewButfilt(ButfiltOptions{Type: LowPass, Order: 4, Low: 0.1, Norm: true})
	require.NoError(t, err)
	in := stream.NewDouble(128, 2, 8000)
	out := stream.NewDouble(128, 2, 8000)
	info := pipeline.Info{FrameNum: 128}
	require.NoError(t, b.Enter(info, in, out))

	copy(in.Float64s(), first)
	require.NoError(t, b.Transform(info, in, out))
	got := append([]float64(nil), out.Float64s()...)
	require.NoError(t, b.SetCutoffs(0.3, 0))
	copy(in.Float64s(), second)
	require.NoError(t, b.Transform(info, in, out))
	got = append(got, out.Float64s()...)

	lp1, err := LPButter(4, 0.1)
	require.NoError(t, err)
	lp3, err := LPButter(4, 0.3)
	require.NoError(t, err)
	ref, err := NewIIR(lp1)
	require.NoError(t, err)
	enterIIR(t, ref, 128, 2)
	want := make([]float64, 512)
	ref.Filter(first, want[:256])
	require.NoError(t, ref.SetCoefs(lp3))
	ref.Filter(second, want[256:])

	assert.Equal(t, want, got)
	assert.True(t, mat.Equal(lp3, b.Coefs()))
}

func TestButfiltZeroMode(t *testing.T) {
	const level = 3.0
	data := make([]float64, 300)
	for i := range data {
		data[i] = level
	}
	src, err := stream.FromFloat64(data, 1, 8000)
	require.NoError(t, err)

	b, err := NewButfilt(ButfiltOptions{Type: LowPass, Order: 4, Low: 0.2, Norm: true, Zero: true})
	require.NoError(t, err)
	out, err := pipeline.Transform(context.Background(), b, pipeline.Config{Frame: 64}, src)
	require.NoError(t, err)
	require.Equal(t, 300, out.Num)
	for i, v := range out.Float64s() {
		assert.Equal(t, 0.0, v, "sample %d", i)
	}

	b, err = NewButfilt(ButfiltOptions{Type: LowPass, Order: 4, Low: 0.2, Norm: true})
	require.NoError(t, err)
	out, err = pipeline.Transform(context.Background(), b, pipeline.Config{Frame: 64}, src)
	require.NoError(t, err)
	assert.Less(t, out.Float64s()[0], level)
}

func TestButfiltZeroModeChecksFrame(t *testing.T) {
	b, err := NewButfilt(ButfiltOptions{Type: LowPass, Order: 2, Low: 0.2, Norm: true, Zero: true})
	require.NoError(t, err)
	in := stream.NewDouble(8, 1, 8000)
	out := stream.NewDouble(8, 1, 8000)
	require.NoError(t, b.Enter(pipeline.Info{FrameNum: 8}, in, out))

	err = b.Transform(pipeline.Info{FrameNum: 16}, in, out)
	assert.True(t, errors.Is(err, stream.ErrShape))
	err = b.Preview(pipeline.Info{FrameNum: 16}, in, out)
	assert.True(t, errors.Is(err, stream.ErrShape))
}

func TestButfiltPreviewMatchesNextTransform(t *testing.T) {
	b, err := NewButfilt(ButfiltOptions{Type: HighPass, Order: 4, High: 0.3, Norm: true, Zero: true})
	require.NoError(t, err)
	in := stream.NewDouble(32, 1, 8000)
	out := stream.NewDouble(32, 1, 8000)
	require.NoError(t, b.Enter(pipeline.Info{FrameNum: 32}, in, out))

	copy(in.Float64s(), noise(t, 32, 1, 5).Float64s())
	require.NoError(t, b.Transform(pipeline.Info{FrameNum: 32}, in, out))

	ahead := noise(t, 8, 1, 6)
	previewed := stream.NewDouble(8, 1, 8000)
	require.NoError(t, b.Preview(pipeline.Info{FrameNum: 8}, ahead, previewed))

	copy(in.Float64s(), ahead.Float64s())
	require.NoError(t, b.Transform(pipeline.Info{FrameNum: 8}, in, out))
	assert.Equal(t, previewed.Float64s(), out.Float64s()[:8])
}

func TestButfiltConcurrentCutoffChanges(t *testing.T) {
	b, err := NewButfilt(ButfiltOptions{Type: BandPass, Order: 4, Low: 500, High: 1500})
	require.NoError(t, err)
	d, err := pipeline.NewDriver(b, pipeline.Config{Frame: 32})
	require.NoError(t, err)
	require.NoError(t, d.Enter(stream.NewDouble(0, 1, 8000)))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lows := []float64{300, 500, 800}
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			assert.NoError(t, b.SetCutoffs(lows[i%len(lows)], 2000))
		}
	}()

	samples := 0
	emit := func(out *stream.Stream) error {
		samples += out.Num
		return nil
	}
	chunk := noise(t, 100, 1, 9)
	for range 50 {
		require.NoError(t, d.Push(context.Background(), chunk, emit))
	}
	close(done)
	wg.Wait()

	require.NoError(t, d.Close(context.Background(), emit))
	assert.Equal(t, 5000, samples)
	assert.Equal(t, pipeline.Flushed, d.State())
}
