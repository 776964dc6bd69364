package spectral

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// logFloor keeps log10 finite on silent bands.
const logFloor = 1e-10

// SpectrogramOptions configures a Spectrogram. The filterbank comes from the
// first source set, in this order: Banks, Intervals, BankFile, BankString,
// then NBanks bands between MinFreq and MaxFreq.
type SpectrogramOptions struct {
	Nfft   int
	Window windowing.Type

	Banks      *mat.Dense // nbanks x rfft weights used as is
	Intervals  []Interval
	BankFile   string
	BankString string

	NBanks  int
	MinFreq float64
	MaxFreq float64 // 0 selects the nyquist frequency
	Mel     bool    // mel spaced bands instead of uniform ones

	BankWindow windowing.Type // shape of every band
	Log        bool
	Power      bool // project |X|^2 instead of |X|
}

// DefaultSpectrogramOptions returns a Hamming windowed 512 point spectrogram
// with 50 uniform rectangular bands.
func DefaultSpectrogramOptions() SpectrogramOptions {
	return SpectrogramOptions{
		Nfft:       512,
		Window:     windowing.Hamming,
		NBanks:     50,
		BankWindow: windowing.Rectangle,
	}
}

// Spectrogram projects the magnitude spectrum of a single channel window onto
// a filterbank, emitting one sample with one value per band.
type Spectrogram struct {
	opts   SpectrogramOptions
	nbanks int
	logger logging.Logger

	fft      *FFT
	window   *windowing.Func
	bank     *mat.Dense
	scratch  []float64
	spectrum []float64
	used     int
}

// NewSpectrogram resolves the band layout of opts so that the output
// dimension is known before Enter.
func NewSpectrogram(opts SpectrogramOptions) (*Spectrogram, error) {
	if opts.Nfft <= 0 {
		return nil, stream.NewConfigError("spectrogram", "nfft", opts.Nfft, "must be positive")
	}
	s := &Spectrogram{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "spectrogram",
		}),
	}

	switch {
	case opts.Banks != nil:
		rows, cols := opts.Banks.Dims()
		if cols != Rfft(opts.Nfft) {
			return nil, stream.NewConfigError("spectrogram", "banks", cols, "columns must equal nfft/2+1")
		}
		s.nbanks = rows
	case len(opts.Intervals) > 0:
		s.nbanks = len(opts.Intervals)
	case opts.BankFile != "":
		intervals, err := LoadIntervals(opts.BankFile)
		if err != nil {
			return nil, err
		}
		s.opts.Intervals = intervals
		s.nbanks = len(intervals)
	case opts.BankString != "":
		intervals, err := ParseIntervals(opts.BankString)
		if err != nil {
			return nil, err
		}
		s.opts.Intervals = intervals
		s.nbanks = len(intervals)
	default:
		if opts.NBanks <= 0 {
			return nil, stream.NewConfigError("spectrogram", "nbanks", opts.NBanks, "must be positive")
		}
		if opts.MinFreq < 0 || (opts.MaxFreq != 0 && opts.MaxFreq <= opts.MinFreq) {
			return nil, stream.NewConfigError("spectrogram", "frequency range",
				[2]float64{opts.MinFreq, opts.MaxFreq}, "need 0 <= minfreq < maxfreq")
		}
		s.nbanks = opts.NBanks
	}
	return s, nil
}

// NBanks returns the number of output values per sample.
func (s *Spectrogram) NBanks() int { return s.nbanks }

func (s *Spectrogram) OutputDim(int) int { return s.nbanks }
func (s *Spectrogram) OutputByte(int) int { return stream.Double.Size() }
func (s *Spectrogram) OutputType(stream.Type) stream.Type { return stream.Double }
func (s *Spectrogram) OutputNum(int) int { return 1 }

// Bank returns the filterbank in use, nil before Enter.
func (s *Spectrogram) Bank() *mat.Dense { return s.bank }

func (s *Spectrogram) buildBank(sampleRate float64) (*mat.Dense, error) {
	if s.opts.Banks != nil {
		return mat.DenseCopyOf(s.opts.Banks), nil
	}
	intervals := s.opts.Intervals
	if len(intervals) == 0 {
		if sampleRate <= 0 {
			return nil, stream.NewConfigError("spectrogram", "sample rate", sampleRate, "required to place bands")
		}
		maxFreq := s.opts.MaxFreq
		if maxFreq == 0 {
			maxFreq = sampleRate / 2
		}
		var err error
		if s.opts.Mel {
			intervals, err = MelIntervals(s.nbanks, s.opts.MinFreq, maxFreq)
		} else {
			intervals, err = UniformIntervals(s.nbanks, s.opts.MinFreq, maxFreq)
		}
		if err != nil {
			return nil, err
		}
	}
	return Filterbank(Rfft(s.opts.Nfft), intervals, sampleRate, s.opts.BankWindow)
}

func (s *Spectrogram) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := pipeline.RequireDouble("spectrogram", in); err != nil {
		return err
	}
	if in.Dim != 1 {
		return stream.NewShapeError("spectrogram", "input dim", 1, in.Dim)
	}
	if out.Dim != s.nbanks {
		return stream.NewShapeError("spectrogram", "output dim", s.nbanks, out.Dim)
	}

	bank, err := s.buildBank(in.SampleRate)
	if err != nil {
		return err
	}
	fft, err := NewFFT(s.opts.Nfft, 1)
	if err != nil {
		return err
	}
	s.used = min(in.Num, s.opts.Nfft)
	window, err := windowing.New(s.opts.Window, s.used)
	if err != nil {
		return err
	}

	s.bank = bank
	s.fft = fft
	s.window = window
	s.scratch = make([]float64, s.used)
	s.spectrum = make([]float64, fft.Rfft())

	s.logger.Debug("Entered", logging.Fields{
		"nfft":   s.opts.Nfft,
		"nbanks": s.nbanks,
		"used":   s.used,
		"log":    s.opts.Log,
	})
	return nil
}

// project computes the band energies of the first s.used samples of frame
// into dst.
func (s *Spectrogram) project(frame, dst []float64) error {
	copy(s.scratch, frame[:s.used])
	if err := s.window.ApplyInPlace(s.scratch); err != nil {
		return err
	}
	if err := s.fft.TransformMagnitude(s.used, s.scratch, s.spectrum); err != nil {
		return err
	}
	if s.opts.Power {
		for i, v := range s.spectrum {
			s.spectrum[i] = v * v
		}
	}

	// spectrum . bank^T
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(s.bank, mat.NewVecDense(len(s.spectrum), s.spectrum))

	if s.opts.Log {
		for i, v := range dst {
			dst[i] = math.Log10(max(v, logFloor))
		}
	}
	return nil
}

func (s *Spectrogram) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	return s.project(in.Float64s(), out.Float64s())
}

func (s *Spectrogram) Flush(in, out *stream.Stream) error {
	s.fft, s.window, s.bank = nil, nil, nil
	s.scratch, s.spectrum = nil, nil
	return nil
}
