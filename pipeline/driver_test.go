package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// recorder passes new samples through, or sums each window into one row when
// summary is set, and records every call.
type recorder struct {
	summary  bool
	failAt   int // 1-based step that fails, 0 never
	enterErr error

	enters  int
	flushes int
	infos   []pipeline.Info
	windows [][]float64
}

func (r *recorder) OutputDim(dim int) int { return dim }
func (r *recorder) OutputByte(int) int { return stream.Double.Size() }
func (r *recorder) OutputType(stream.Type) stream.Type { return stream.Double }
func (r *recorder) OutputNum(frame int) int {
	if r.summary {
		return 1
	}
	return frame
}

func (r *recorder) Enter(info pipeline.Info, in, out *stream.Stream) error {
	r.enters++
	return r.enterErr
}

func (r *recorder) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	r.infos = append(r.infos, info)
	r.windows = append(r.windows, append([]float64(nil), in.Float64s()...))
	if r.failAt == len(r.infos) {
		return fmt.Errorf("step failed")
	}
	src, dst := in.Float64s(), out.Float64s()
	if r.summary {
		clear(dst)
		for i := range in.Num {
			for ch := range in.Dim {
				dst[ch] += src[i*in.Dim+ch]
			}
		}
		return nil
	}
	copy(dst, src[:info.FrameNum*in.Dim])
	return nil
}

func (r *recorder) Flush(in, out *stream.Stream) error {
	r.flushes++
	return nil
}

func ramp(t *testing.T, n, dim int) *stream.Stream {
	t.Helper()
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = float64(i)
	}
	s, err := stream.FromFloat64(data, dim, 10)
	require.NoError(t, err)
	return s
}

func TestDriverWindowsOverlapByDelta(t *testing.T) {
	rec := &recorder{}
	d, err := pipeline.NewDriver(rec, pipeline.Config{Frame: 4, Delta: 2, Boundary: pipeline.BoundaryDrop})
	require.NoError(t, err)
	out, err := d.Run(context.Background(), ramp(t, 10, 1))
	require.NoError(t, err)

	require.Len(t, rec.windows, 2)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, rec.windows[0])
	assert.Equal(t, []float64{4, 5, 6, 7, 8, 9}, rec.windows[1])
	for i, info := range rec.infos {
		assert.Equal(t, 4, info.FrameNum)
		assert.Equal(t, 2, info.DeltaNum)
		assert.InDelta(t, 0.4*float64(i), info.Time, 1e-12)
		assert.InDelta(t, 0.4, info.Dur, 1e-12)
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7}, out.Float64s())
	assert.Equal(t, 1, rec.enters)
	assert.Equal(t, 1, rec.flushes)
	assert.Equal(t, pipeline.Flushed, d.State())
}

func TestDriverPadsWithLastSample(t *testing.T) {
	rec := &recorder{}
	out, err := pipeline.Transform(context.Background(), rec, pipeline.Config{Frame: 4, Delta: 2}, ramp(t, 10, 1))
	require.NoError(t, err)

	require.Len(t, rec.windows, 3)
	assert.Equal(t, []float64{8, 9, 9, 9, 9, 9}, rec.windows[2])
	// sample preserving output is trimmed back to the input length
	assert.Equal(t, 10, out.Num)
	assert.Equal(t, ramp(t, 10, 1).Float64s(), out.Float64s())
}

func TestDriverSummaryOutput(t *testing.T) {
	rec := &recorder{summary: true}
	out, err := pipeline.Transform(context.Background(), rec, pipeline.Config{Frame: 3}, ramp(t, 7, 2))
	require.NoError(t, err)
	// three windows: two full, one padded from samples 6,6,6
	require.Equal(t, 3, out.Num)
	assert.Equal(t, 2, out.Dim)
	assert.Equal(t, []float64{0 + 2 + 4, 1 + 3 + 5}, out.Row(0))
	assert.Equal(t, []float64{12 * 3, 13 * 3}, out.Row(2))
	assert.InDelta(t, 10.0/3, out.SampleRate, 1e-12)
}

func TestDriverChunkedEqualsWhole(t *testing.T) {
	src := ramp(t, 50, 3)
	cfg := pipeline.Config{Frame: 6, Delta: 3}

	whole := &recorder{summary: true}
	want, err := pipeline.Transform(context.Background(), whole, cfg, src)
	require.NoError(t, err)

	for _, chunk := range []int{1, 4, 7, 50} {
		rec := &recorder{summary: true}
		d, err := pipeline.NewDriver(rec, cfg)
		require.NoError(t, err)

		var got []float64
		emit := func(out *stream.Stream) error {
			got = append(got, out.Float64s()...)
			return nil
		}
		p := pipeline.NewSliceProvider(src, chunk)
		require.NoError(t, d.RunProvider(context.Background(), p, emit))
		assert.Equal(t, want.Float64s(), got, "chunk %d", chunk)
		assert.Equal(t, whole.windows, rec.windows, "chunk %d", chunk)
		assert.Equal(t, 1, rec.flushes)
	}
}

func TestDriverEnterShapeError(t *testing.T) {
	rec := &recorder{enterErr: stream.NewShapeError("rec", "dim", 1, 2)}
	d, err := pipeline.NewDriver(rec, pipeline.Config{Frame: 4})
	require.NoError(t, err)

	_, err = d.Run(context.Background(), ramp(t, 8, 1))
	assert.True(t, errors.Is(err, pipeline.ErrShape))
	var shapeErr *pipeline.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, pipeline.Configured, d.State())
	assert.Equal(t, 0, rec.flushes)

	floats := stream.New(8, 1, stream.Float.Size(), stream.Float, 10)
	err = d.Enter(floats)
	assert.True(t, errors.Is(err, pipeline.ErrShape))
}

func TestDriverTransformErrorFlushesOnce(t *testing.T) {
	rec := &recorder{failAt: 2}
	_, err := pipeline.Transform(context.Background(), rec, pipeline.Config{Frame: 2}, ramp(t, 10, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
	assert.Equal(t, 1, rec.flushes)
}

func TestDriverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	_, err := pipeline.Transform(ctx, rec, pipeline.Config{Frame: 2}, ramp(t, 10, 1))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, rec.windows)
	assert.Equal(t, 1, rec.flushes)
}

func TestDriverLifecycleErrors(t *testing.T) {
	_, err := pipeline.NewDriver(&recorder{}, pipeline.Config{Frame: 0})
	assert.True(t, errors.Is(err, pipeline.ErrConfig))
	_, err = pipeline.NewDriver(&recorder{}, pipeline.Config{Frame: 2, Delta: -1})
	assert.True(t, errors.Is(err, pipeline.ErrConfig))
	_, err = pipeline.NewDriver(nil, pipeline.Config{Frame: 2})
	assert.True(t, errors.Is(err, pipeline.ErrConfig))

	rec := &recorder{}
	d, err := pipeline.NewDriver(rec, pipeline.Config{Frame: 2})
	require.NoError(t, err)
	assert.Error(t, d.Push(context.Background(), ramp(t, 2, 1), nil))

	require.NoError(t, d.Enter(ramp(t, 0, 1)))
	assert.Error(t, d.Enter(ramp(t, 0, 1)))
	assert.True(t, errors.Is(d.Push(context.Background(), ramp(t, 2, 2), nil), pipeline.ErrShape))
	require.NoError(t, d.Close(context.Background(), nil))
	assert.Error(t, d.Close(context.Background(), nil))
	assert.NoError(t, d.Abort())
	assert.Equal(t, 1, rec.flushes)

	b, err := pipeline.ParseBoundary("drop")
	require.NoError(t, err)
	assert.Equal(t, pipeline.BoundaryDrop, b)
	_, err = pipeline.ParseBoundary("zero")
	assert.True(t, errors.Is(err, pipeline.ErrConfig))
}

func TestRunProviderFromChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := ramp(t, 40, 1)
	ch := make(chan *stream.Stream)
	go func() {
		defer close(ch)
		p := pipeline.NewSliceProvider(src, 5)
		for {
			chunk, err := p.Next(context.Background())
			if err != nil {
				return
			}
			ch <- chunk
		}
	}()

	rec := &recorder{}
	d, err := pipeline.NewDriver(rec, pipeline.Config{Frame: 8})
	require.NoError(t, err)
	var got []float64
	err = d.RunProvider(context.Background(), pipeline.NewChanProvider(ch), func(out *stream.Stream) error {
		got = append(got, out.Float64s()...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, src.Float64s(), got)
	assert.Equal(t, 1, rec.flushes)
}

func TestRunProviderCancelWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := make(chan *stream.Stream, 1)
	ch <- ramp(t, 3, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rec := &recorder{}
	d, err := pipeline.NewDriver(rec, pipeline.Config{Frame: 2})
	require.NoError(t, err)
	err = d.RunProvider(ctx, pipeline.NewChanProvider(ch), nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, rec.flushes)
	assert.Equal(t, pipeline.Flushed, d.State())
}

func TestSliceProvider(t *testing.T) {
	p := pipeline.NewSliceProvider(ramp(t, 7, 2), 3)
	var sizes []int
	var times []float64
	for {
		chunk, err := p.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, chunk.Num)
		times = append(times, chunk.Time)
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.InDeltaSlice(t, []float64{0, 0.3, 0.6}, times, 1e-12)
}
