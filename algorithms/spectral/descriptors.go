package spectral

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Descriptor names a scalar summary of one channel's window.
type Descriptor int

const (
	Centroid  Descriptor = iota // magnitude weighted mean frequency in Hz
	Bandwidth                   // magnitude weighted spread around the centroid in Hz
	Rolloff                     // frequency below which RolloffRatio of the energy lies
	Flatness                    // geometric over arithmetic mean of the magnitudes
	Crest                       // peak over RMS magnitude
	Flux                        // L2 norm of the positive magnitude change since the last window
	ZCR                         // zero crossings per sample pair in the time domain
)

var descriptorNames = map[Descriptor]string{
	Centroid:  "centroid",
	Bandwidth: "bandwidth",
	Rolloff:   "rolloff",
	Flatness:  "flatness",
	Crest:     "crest",
	Flux:      "flux",
	ZCR:       "zcr",
}

func (d Descriptor) String() string {
	if name, ok := descriptorNames[d]; ok {
		return name
	}
	return fmt.Sprintf("descriptor(%d)", int(d))
}

// ParseDescriptor maps a name to its Descriptor.
func ParseDescriptor(name string) (Descriptor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range descriptorNames {
		if n == name {
			return d, nil
		}
	}
	return 0, stream.NewConfigError("descriptors", "descriptor", name, "unknown descriptor")
}

// DescriptorsOptions configures Descriptors.
type DescriptorsOptions struct {
	Nfft         int
	Window       windowing.Type
	Descriptors  []Descriptor
	RolloffRatio float64 // defaults to 0.85
	MinMagnitude float64 // magnitudes below are ignored by Flatness, defaults to 1e-10
}

// Descriptors emits, for every channel, the selected spectral descriptors of
// the window. Output values are channel-major: all descriptors of channel 0,
// then channel 1.
type Descriptors struct {
	opts   DescriptorsOptions
	logger logging.Logger

	fft      *FFT
	window   *windowing.Func
	scratch  []float64
	spectrum []float64
	previous []float64 // last spectrum per channel, for Flux
	column   []float64
	freqBins []float64
	zcrs     []float64
	used     int
	primed   bool
}

// NewDescriptors validates opts and fills in defaults.
func NewDescriptors(opts DescriptorsOptions) (*Descriptors, error) {
	if opts.Nfft <= 0 {
		return nil, stream.NewConfigError("descriptors", "nfft", opts.Nfft, "must be positive")
	}
	if len(opts.Descriptors) == 0 {
		return nil, stream.NewConfigError("descriptors", "descriptors", 0, "at least one descriptor required")
	}
	for _, d := range opts.Descriptors {
		if _, ok := descriptorNames[d]; !ok {
			return nil, stream.NewConfigError("descriptors", "descriptor", int(d), "unknown descriptor")
		}
	}
	if opts.RolloffRatio == 0 {
		opts.RolloffRatio = 0.85
	}
	if opts.RolloffRatio <= 0 || opts.RolloffRatio > 1 {
		return nil, stream.NewConfigError("descriptors", "rolloff", opts.RolloffRatio, "must be in (0,1]")
	}
	if opts.MinMagnitude == 0 {
		opts.MinMagnitude = 1e-10
	}
	return &Descriptors{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "descriptors",
		}),
	}, nil
}

func (d *Descriptors) OutputDim(dim int) int { return dim * len(d.opts.Descriptors) }
func (d *Descriptors) OutputByte(int) int { return stream.Double.Size() }
func (d *Descriptors) OutputType(stream.Type) stream.Type { return stream.Double }
func (d *Descriptors) OutputNum(int) int { return 1 }

func (d *Descriptors) Enter(info pipeline.Info, in, out *stream.Stream) error {
	if err := pipeline.RequireDouble("descriptors", in); err != nil {
		return err
	}
	if out.Dim != d.OutputDim(in.Dim) {
		return stream.NewShapeError("descriptors", "output dim", d.OutputDim(in.Dim), out.Dim)
	}
	fft, err := NewFFT(d.opts.Nfft, in.Dim)
	if err != nil {
		return err
	}
	d.used = min(in.Num, d.opts.Nfft)
	window, err := windowing.New(d.opts.Window, d.used)
	if err != nil {
		return err
	}
	d.fft = fft
	d.window = window
	d.scratch = make([]float64, d.used*in.Dim)
	d.spectrum = make([]float64, fft.Rfft()*in.Dim)
	d.previous = make([]float64, fft.Rfft()*in.Dim)
	d.column = make([]float64, fft.Rfft())
	d.zcrs = make([]float64, in.Dim)
	d.primed = false

	// bin centre frequencies; without a sample rate they are normalized so
	// that nyquist is 1
	d.freqBins = make([]float64, fft.Rfft())
	nyquist := 1.0
	if in.SampleRate > 0 {
		nyquist = in.SampleRate / 2
	}
	for i := range d.freqBins {
		d.freqBins[i] = float64(i) * 2 * nyquist / float64(d.opts.Nfft)
	}
	return nil
}

func (d *Descriptors) Transform(info pipeline.Info, in, out *stream.Stream, xtra ...*stream.Stream) error {
	copy(d.scratch, in.Float64s()[:len(d.scratch)])
	for ch := range in.Dim {
		d.zcrs[ch] = zeroCrossingRate(d.scratch, in.Dim, ch)
		if d.opts.Window != windowing.Rectangle {
			d.window.ApplyStrided(d.scratch, in.Dim, ch)
		}
	}
	if err := d.fft.TransformMagnitude(d.used, d.scratch, d.spectrum); err != nil {
		return err
	}

	dst := out.Float64s()
	n := len(d.opts.Descriptors)
	for ch := range in.Dim {
		for i := range d.column {
			d.column[i] = d.spectrum[i*in.Dim+ch]
		}
		var centroid float64
		for k, desc := range d.opts.Descriptors {
			var v float64
			switch desc {
			case Centroid:
				v = spectralCentroid(d.column, d.freqBins)
			case Bandwidth:
				centroid = spectralCentroid(d.column, d.freqBins)
				v = spectralBandwidth(d.column, d.freqBins, centroid)
			case Rolloff:
				v = spectralRolloff(d.column, d.freqBins, d.opts.RolloffRatio)
			case Flatness:
				v = spectralFlatness(d.column, d.opts.MinMagnitude)
			case Crest:
				v = spectralCrest(d.column)
			case Flux:
				if d.primed {
					v = spectralFlux(d.column, d.previous, in.Dim, ch)
				}
			case ZCR:
				v = d.zcrs[ch]
			}
			dst[ch*n+k] = v
		}
	}
	copy(d.previous, d.spectrum)
	d.primed = true
	return nil
}

func (d *Descriptors) Flush(in, out *stream.Stream) error {
	d.fft, d.window = nil, nil
	d.scratch, d.spectrum, d.previous, d.column, d.freqBins, d.zcrs = nil, nil, nil, nil, nil, nil
	return nil
}

func spectralCentroid(spectrum, freqBins []float64) float64 {
	numerator := 0.0
	denominator := 0.0
	for i, mag := range spectrum {
		numerator += freqBins[i] * mag
		denominator += mag
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func spectralBandwidth(spectrum, freqBins []float64, centroid float64) float64 {
	numerator := 0.0
	denominator := 0.0
	for i, mag := range spectrum {
		diff := freqBins[i] - centroid
		numerator += diff * diff * mag
		denominator += mag
	}
	if denominator == 0 {
		return 0
	}
	return math.Sqrt(numerator / denominator)
}

func spectralRolloff(spectrum, freqBins []float64, ratio float64) float64 {
	totalEnergy := 0.0
	for _, mag := range spectrum {
		totalEnergy += mag * mag
	}
	if totalEnergy == 0 {
		return 0
	}
	target := ratio * totalEnergy
	cumulative := 0.0
	for i, mag := range spectrum {
		cumulative += mag * mag
		if cumulative >= target {
			return freqBins[i]
		}
	}
	return freqBins[len(freqBins)-1]
}

func spectralFlatness(spectrum []float64, minMagnitude float64) float64 {
	logSum := 0.0
	validCount := 0
	arithmeticMean := 0.0
	for _, mag := range spectrum {
		if mag > minMagnitude {
			logSum += math.Log(mag)
			validCount++
		}
		arithmeticMean += mag
	}
	arithmeticMean /= float64(len(spectrum))
	if validCount == 0 || arithmeticMean <= minMagnitude {
		return 0
	}
	return min(math.Exp(logSum/float64(validCount))/arithmeticMean, 1)
}

func spectralCrest(spectrum []float64) float64 {
	maxVal := 0.0
	sumSquares := 0.0
	for _, mag := range spectrum {
		maxVal = max(maxVal, mag)
		sumSquares += mag * mag
	}
	rms := math.Sqrt(sumSquares / float64(len(spectrum)))
	if rms == 0 {
		return 0
	}
	return maxVal / rms
}

// spectralFlux compares spectrum with channel ch of the interleaved previous
// spectrum. Only increases count.
func spectralFlux(spectrum, previous []float64, dim, ch int) float64 {
	sum := 0.0
	for i, mag := range spectrum {
		if diff := mag - previous[i*dim+ch]; diff > 0 {
			sum += diff * diff
		}
	}
	return math.Sqrt(sum)
}

func zeroCrossingRate(data []float64, dim, ch int) float64 {
	n := len(data) / dim
	if n < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < n; i++ {
		prev, cur := data[(i-1)*dim+ch], data[i*dim+ch]
		if (prev >= 0) != (cur >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(n-1)
}
