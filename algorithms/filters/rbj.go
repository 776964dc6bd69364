package filters

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Biquads from Robert Bristow-Johnson's cookbook.
// Reference: https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html

func checkRBJ(component string, sampleRate, centre, bandwidth float64) error {
	if sampleRate <= 0 {
		return stream.NewConfigError(component, "sample rate", sampleRate, "must be positive")
	}
	if centre <= 0 || centre >= sampleRate/2 {
		return stream.NewConfigError(component, "centre", centre, "must be in (0, nyquist)")
	}
	if bandwidth <= 0 {
		return stream.NewConfigError(component, "bandwidth", bandwidth, "must be positive")
	}
	return nil
}

// Boost returns a peaking equalizer section that changes the level around
// centre Hz by gain dB and leaves DC and nyquist untouched. Q = sr/bandwidth
// and K = tan(pi*centre/sr). Negative gains cut.
func Boost(sampleRate, gain, centre, bandwidth float64) (*mat.Dense, error) {
	if err := checkRBJ("boost", sampleRate, centre, bandwidth); err != nil {
		return nil, err
	}
	q := sampleRate / bandwidth
	k := math.Tan(math.Pi * centre / sampleRate)
	v := math.Pow(10, math.Abs(gain)/20)

	var b0, b1, b2, a1, a2 float64
	if gain >= 0 {
		norm := 1 / (1 + k/q + k*k)
		b0 = (1 + v*k/q + k*k) * norm
		b1 = 2 * (k*k - 1) * norm
		b2 = (1 - v*k/q + k*k) * norm
		a1 = b1
		a2 = (1 - k/q + k*k) * norm
	} else {
		norm := 1 / (1 + v*k/q + k*k)
		b0 = (1 + k/q + k*k) * norm
		b1 = 2 * (k*k - 1) * norm
		b2 = (1 - k/q + k*k) * norm
		a1 = b1
		a2 = (1 - v*k/q + k*k) * norm
	}

	coefs := mat.NewDense(1, sosCols, nil)
	setSection(coefs, 0, b0, b1, b2, a1, a2)
	return coefs, nil
}

// Resonator returns a constant 0 dB peak gain band-pass section centred on
// centre Hz with Q = centre/bandwidth.
func Resonator(sampleRate, centre, bandwidth float64) (*mat.Dense, error) {
	if err := checkRBJ("resonator", sampleRate, centre, bandwidth); err != nil {
		return nil, err
	}
	w0 := 2.0 * math.Pi * centre / sampleRate
	alpha := math.Sin(w0) / (2.0 * centre / bandwidth)
	a0 := 1.0 + alpha

	coefs := mat.NewDense(1, sosCols, nil)
	setSection(coefs, 0, alpha/a0, 0, -alpha/a0, -2.0*math.Cos(w0)/a0, (1.0-alpha)/a0)
	return coefs, nil
}
