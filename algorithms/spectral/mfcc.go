package spectral

import (
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// MFCCOptions configures MFCC. Coefficients [First, Last) are emitted.
type MFCCOptions struct {
	Nfft    int
	NBanks  int
	MinFreq float64
	MaxFreq float64 // 0 selects the nyquist frequency
	First   int
	Last    int
}

// DefaultMFCCOptions returns 13 coefficients from 26 mel bands.
func DefaultMFCCOptions() MFCCOptions {
	return MFCCOptions{
		Nfft:    512,
		NBanks:  26,
		MinFreq: 0,
		MaxFreq: 0,
		First:   0,
		Last:    13,
	}
}

// MFCC computes mel-frequency cepstral coefficients: a Hamming windowed log10
// mel spectrogram multiplied by a DCT-II matrix.
type MFCC struct {
	opts   MFCCOptions
	sg     *Spectrogram
	logger logging.Logger

	dct   *mat.Dense
	bands []float64
}

// NewMFCC validates opts and builds the underlying mel spectrogram.
func NewMFCC(opts MFCCOptions) (*MFCC, error) {
	if opts.First < 0 || opts.Last > opts.NBanks || opts.First >= opts.Last {
		return nil, stream.NewConfigError("mfcc", "coefficients", [2]int{opts.First, opts.Last},
			"need 0 <= first < last <= nbanks")
	}
	sg, err := NewSpectrogram(SpectrogramOptions{
		Nfft:       opts.Nfft,
		Window:     windowing.Hamming,
		NBanks:     opts.NBanks,
		MinFreq:    opts.MinFreq,
		MaxFreq:    opts.MaxFreq,
		Mel:        true,
		BankWindow: windowing.Triangle,
		Log:        true,
	})
	if err != nil {
		return nil, err
	}
	return &MFCC{
		opts: opts,
		sg:   sg,
		logger: logging.WithFields(logging.Fields{
			"component": "mfcc",
		}),
	}, nil
}

func (m *MFCC) OutputDim(int) int { return m.opts.Last - m.opts.First }
func (m *MFCC) OutputByte(int) int { return stream.Double.Size() }
func (m *MFCC) OutputType(stream.Type) stream.Type { return stream.Double }
func (m *MFCC) OutputNum(int) int { return 1 }

func (m *MFCC) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if out.Dim != m.OutputDim(in.Dim) {
		return stream.NewShapeError("mfcc", "output dim", m.OutputDim(in.Dim), out.Dim)
	}
	bandsOut := stream.NewDouble(1, m.sg.NBanks(), out.SampleRate)
	if err := m.sg.Enter(info, in, bandsOut); err != nil {
		return err
	}
	dct, err := DCTMatrix(m.opts.NBanks, m.opts.First, m.opts.Last)
	if err != nil {
		return err
	}
	m.dct = dct
	m.bands = make([]float64, m.opts.NBanks)

	m.logger.Debug("Entered", logging.Fields{
		"nbanks": m.opts.NBanks,
		"first":  m.opts.First,
		"last":   m.opts.Last,
	})
	return nil
}

func (m *MFCC) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	if err := m.sg.project(in.Float64s(), m.bands); err != nil {
		return err
	}
	// bands . dct
	coefs := mat.NewVecDense(out.Dim, out.Float64s())
	coefs.MulVec(m.dct.T(), mat.NewVecDense(len(m.bands), m.bands))
	return nil
}

func (m *MFCC) Flush(in, out *stream.Stream) error {
	m.dct, m.bands = nil, nil
	return m.sg.Flush(in, nil)
}
