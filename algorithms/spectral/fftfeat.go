package spectral

import (
	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// FFTfeatOptions configures FFTfeat.
type FFTfeatOptions struct {
	Nfft   int
	Window windowing.Type // Rectangle leaves the frame untouched
}

// FFTfeat emits the magnitude spectrum of every channel of a window as one
// output sample of dim*rfft values, bin-major and channel-minor.
type FFTfeat struct {
	opts   FFTfeatOptions
	logger logging.Logger

	fft     *FFT
	window  *windowing.Func
	scratch []float64
	used    int
}

// NewFFTfeat validates opts.
func NewFFTfeat(opts FFTfeatOptions) (*FFTfeat, error) {
	if opts.Nfft <= 0 {
		return nil, stream.NewConfigError("fftfeat", "nfft", opts.Nfft, "must be positive")
	}
	return &FFTfeat{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "fftfeat",
		}),
	}, nil
}

func (f *FFTfeat) OutputDim(dim int) int { return dim * Rfft(f.opts.Nfft) }
func (f *FFTfeat) OutputByte(int) int { return stream.Double.Size() }
func (f *FFTfeat) OutputType(stream.Type) stream.Type { return stream.Double }
func (f *FFTfeat) OutputNum(int) int { return 1 }

func (f *FFTfeat) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := pipeline.RequireDouble("fftfeat", in); err != nil {
		return err
	}
	if out.Dim != f.OutputDim(in.Dim) {
		return stream.NewShapeError("fftfeat", "output dim", f.OutputDim(in.Dim), out.Dim)
	}
	fft, err := NewFFT(f.opts.Nfft, in.Dim)
	if err != nil {
		return err
	}
	f.used = min(in.Num, f.opts.Nfft)
	window, err := windowing.New(f.opts.Window, f.used)
	if err != nil {
		return err
	}
	f.fft = fft
	f.window = window
	f.scratch = make([]float64, f.used*in.Dim)

	f.logger.Debug("Entered", logging.Fields{
		"nfft":   f.opts.Nfft,
		"window": f.opts.Window.String(),
		"used":   f.used,
	})
	return nil
}

func (f *FFTfeat) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	copy(f.scratch, in.Float64s()[:len(f.scratch)])
	if f.opts.Window != windowing.Rectangle {
		for ch := range in.Dim {
			f.window.ApplyStrided(f.scratch, in.Dim, ch)
		}
	}
	return f.fft.TransformMagnitude(f.used, f.scratch, out.Float64s())
}

func (f *FFTfeat) Flush(in, out *stream.Stream) error {
	f.fft, f.window, f.scratch = nil, nil, nil
	return nil
}
