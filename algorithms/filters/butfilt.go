package filters

import (
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Band selects the response of a Butfilt.
type Band int

const (
	LowPass Band = iota
	HighPass
	BandPass
)

func (b Band) String() string {
	switch b {
	case LowPass:
		return "low"
	case HighPass:
		return "high"
	case BandPass:
		return "band"
	}
	return "unknown"
}

// ParseBand maps "low", "high" or "band" to a Band.
func ParseBand(name string) (Band, error) {
	switch strings.ToLower(name) {
	case "low", "lowpass", "lp":
		return LowPass, nil
	case "high", "highpass", "hp":
		return HighPass, nil
	case "band", "bandpass", "bp":
		return BandPass, nil
	}
	return LowPass, stream.NewConfigError("butfilt", "type", name, "expected low, high or band")
}

// ButfiltOptions configures a Butfilt. Low is the cutoff of LowPass and the
// lower edge of BandPass, High the cutoff of HighPass and the upper edge of
// BandPass. With Norm set both are normalized so 1 is nyquist, otherwise they
// are in Hz and converted with the input sample rate on Enter.
type ButfiltOptions struct {
	Type  Band
	Order int
	Low   float64
	High  float64
	Norm  bool
	Zero  bool // subtract each channel's first sample so the filter starts at rest
}

// Butfilt is a Butterworth IIR filter whose cutoffs can be changed while it
// runs. Changing options recomputes the coefficients and installs them into
// the running IIR without touching its history.
type Butfilt struct {
	mu     sync.Mutex
	opts   ButfiltOptions
	active ButfiltOptions // options the installed coefficients were built from
	iir    *IIR
	rate   float64
	offset []float64
	logger logging.Logger
}

// NewButfilt validates opts. Cutoffs in Hz can only be checked against
// nyquist on Enter.
func NewButfilt(opts ButfiltOptions) (*Butfilt, error) {
	if err := checkButfilt(opts, 0); err != nil {
		return nil, err
	}
	return &Butfilt{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "butfilt",
		}),
	}, nil
}

func checkButfilt(opts ButfiltOptions, sampleRate float64) error {
	if err := checkOrder("butfilt", opts.Order); err != nil {
		return err
	}
	if opts.Type != LowPass && opts.Type != HighPass && opts.Type != BandPass {
		return stream.NewConfigError("butfilt", "type", int(opts.Type), "unknown band")
	}
	if opts.Norm || sampleRate > 0 {
		_, err := design(opts, sampleRate)
		return err
	}
	if (opts.Type != HighPass && opts.Low <= 0) || (opts.Type != LowPass && opts.High <= 0) {
		return stream.NewConfigError("butfilt", "cutoff", [2]float64{opts.Low, opts.High}, "must be positive")
	}
	return nil
}

// design synthesizes the coefficients for opts.
func design(opts ButfiltOptions, sampleRate float64) (*mat.Dense, error) {
	low, high := opts.Low, opts.High
	if !opts.Norm {
		if sampleRate <= 0 {
			return nil, stream.NewConfigError("butfilt", "sample rate", sampleRate, "required for cutoffs in Hz")
		}
		nyquist := sampleRate / 2
		low, high = low/nyquist, high/nyquist
	}
	switch opts.Type {
	case LowPass:
		return LPButter(opts.Order, low)
	case HighPass:
		return HPButter(opts.Order, high)
	case BandPass:
		return BPButter(opts.Order, low, high)
	}
	return nil, stream.NewConfigError("butfilt", "type", int(opts.Type), "unknown band")
}

// Options returns the current options.
func (b *Butfilt) Options() ButfiltOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

// SetOptions replaces the options. While entered the new coefficients are
// installed before the next Transform; invalid options are rejected and the
// running filter keeps its coefficients. A new order changes the section
// count, which restarts the filter history.
func (b *Butfilt) SetOptions(opts ButfiltOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkButfilt(opts, b.rate); err != nil {
		return err
	}
	b.opts = opts
	return nil
}

// SetCutoffs changes the cutoffs only.
func (b *Butfilt) SetCutoffs(low, high float64) error {
	opts := b.Options()
	opts.Low, opts.High = low, high
	return b.SetOptions(opts)
}

// update installs coefficients for b.opts if they changed. Callers hold mu.
func (b *Butfilt) update() error {
	if b.iir != nil && b.active == b.opts {
		return nil
	}
	coefs, err := design(b.opts, b.rate)
	if err != nil {
		return err
	}
	if b.iir == nil {
		iir, err := NewIIR(coefs)
		if err != nil {
			return err
		}
		b.iir = iir
	} else if err := b.iir.SetCoefs(coefs); err != nil {
		return err
	}
	b.active = b.opts
	b.logger.Debug("Coefficients installed", logging.Fields{
		"type":  b.opts.Type.String(),
		"order": b.opts.Order,
		"low":   b.opts.Low,
		"high":  b.opts.High,
	})
	return nil
}

// Coefs returns a copy of the installed coefficients, nil before Enter.
func (b *Butfilt) Coefs() *mat.Dense {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.iir == nil {
		return nil
	}
	return b.iir.Coefs()
}

func (b *Butfilt) OutputDim(dim int) int { return dim }
func (b *Butfilt) OutputByte(int) int { return stream.Double.Size() }
func (b *Butfilt) OutputType(stream.Type) stream.Type { return stream.Double }
func (b *Butfilt) OutputNum(frame int) int { return frame }

func (b *Butfilt) Enter(info pipeline.Info, in, out *stream.Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rate = in.SampleRate
	b.iir = nil
	if err := b.update(); err != nil {
		return fmt.Errorf("butfilt: %w", err)
	}
	if err := b.iir.Enter(info, in, out); err != nil {
		b.iir = nil
		return err
	}
	b.offset = nil
	return nil
}

// prepare installs pending coefficients, validates the step and returns the
// samples to filter. In zero mode they are written to dst with the offset
// removed. Callers hold mu.
func (b *Butfilt) prepare(info pipeline.Info, in, out *stream.Stream) (src, dst []float64, err error) {
	if b.iir == nil {
		return nil, nil, fmt.Errorf("butfilt: transform before enter")
	}
	if err := b.update(); err != nil {
		return nil, nil, fmt.Errorf("butfilt: %w", err)
	}
	num, err := b.iir.check(info, in, out)
	if err != nil {
		return nil, nil, err
	}
	n := num * in.Dim
	src, dst = in.Float64s()[:n], out.Float64s()[:n]
	if !b.opts.Zero {
		return src, dst, nil
	}
	offset := b.offset
	if offset == nil {
		offset = src[:min(in.Dim, n)]
	}
	for i := range n {
		dst[i] = src[i] - offset[i%in.Dim]
	}
	return dst, dst, nil
}

func (b *Butfilt) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opts.Zero && b.offset == nil && b.iir != nil && in.Num > 0 {
		b.offset = append([]float64(nil), in.Float64s()[:in.Dim]...)
	}
	src, dst, err := b.prepare(info, in, out)
	if err != nil {
		return err
	}
	b.iir.Filter(src, dst)
	b.iir.state = Running
	return nil
}

// Preview filters samples ahead of the stream and restores the history
// afterwards, see IIR.Preview.
func (b *Butfilt) Preview(info pipeline.Info, in, out *stream.Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, dst, err := b.prepare(info, in, out)
	if err != nil {
		return err
	}
	b.iir.peek(src, dst)
	return nil
}

func (b *Butfilt) Flush(in, out *stream.Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.iir == nil {
		return nil
	}
	err := b.iir.Flush(in, out)
	b.iir = nil
	b.offset = nil
	return err
}
