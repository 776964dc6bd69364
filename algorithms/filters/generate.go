package filters

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Sine returns num samples of dim channels where channel ch is a sum of
// sinusoids at freqs with amplitudes amps. Both slices must have equal
// length; every channel gets the same mixture.
func Sine(num, dim int, sampleRate float64, freqs, amps []float64) (*stream.Stream, error) {
	if num < 0 || dim <= 0 {
		return nil, stream.NewShapeError("sine", "shape", "num >= 0 and dim > 0", [2]int{num, dim})
	}
	if sampleRate <= 0 {
		return nil, stream.NewConfigError("sine", "sample rate", sampleRate, "must be positive")
	}
	if len(freqs) != len(amps) {
		return nil, stream.NewConfigError("sine", "amplitudes", len(amps), "need one amplitude per frequency")
	}
	s := stream.NewDouble(num, dim, sampleRate)
	data := s.Float64s()
	for i := range num {
		t := float64(i) / sampleRate
		v := 0.0
		for k, f := range freqs {
			v += amps[k] * math.Sin(2*math.Pi*f*t)
		}
		for ch := range dim {
			data[i*dim+ch] = v
		}
	}
	return s, nil
}

func gaussian(sigma float64, seed uint64) distuv.Normal {
	return distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// WhiteNoise returns gaussian noise with standard deviation amp. Equal seeds
// give equal streams.
func WhiteNoise(num, dim int, sampleRate, amp float64, seed uint64) (*stream.Stream, error) {
	if num < 0 || dim <= 0 {
		return nil, stream.NewShapeError("whitenoise", "shape", "num >= 0 and dim > 0", [2]int{num, dim})
	}
	if amp < 0 {
		return nil, stream.NewConfigError("whitenoise", "amp", amp, "must not be negative")
	}
	s := stream.NewDouble(num, dim, sampleRate)
	if amp == 0 {
		return s, nil
	}
	dist := gaussian(amp, seed)
	data := s.Float64s()
	for i := range data {
		data[i] = dist.Rand()
	}
	return s, nil
}

// AddNoise adds gaussian noise of variance energy to s in place.
func AddNoise(s *stream.Stream, energy float64, seed uint64) error {
	if err := pipeline.RequireDouble("addnoise", s); err != nil {
		return err
	}
	if energy < 0 {
		return stream.NewConfigError("addnoise", "energy", energy, "must not be negative")
	}
	if energy == 0 {
		return nil
	}
	dist := gaussian(math.Sqrt(energy), seed)
	data := s.Float64s()
	for i := range data {
		data[i] += dist.Rand()
	}
	return nil
}
