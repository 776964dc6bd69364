package filters

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// DCBlocker returns the single section of a DC blocking filter
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// with b=[1,-1,0] and a=[1,-R,0]. R in [0,1] is the pole radius; closer to 1
// gives a lower cutoff.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
func DCBlocker(r float64) (*mat.Dense, error) {
	if r < 0 || r > 1 {
		return nil, stream.NewConfigError("dcblocker", "r", r, "pole radius must be in [0,1]")
	}
	coefs := mat.NewDense(1, sosCols, nil)
	setSection(coefs, 0, 1, -1, 0, -r, 0)
	return coefs, nil
}

// DCBlockerPole converts a -3dB cutoff in Hz into the pole radius
// R = 1 - 2*pi*fc/fs, clamped to [0.001, 0.999]. The approximation holds for
// fc much smaller than fs/2. Without a usable rate or cutoff it returns 0.995,
// about 35 Hz at 44.1 kHz.
func DCBlockerPole(sampleRate, cutoffHz float64) float64 {
	if sampleRate <= 0 || cutoffHz <= 0 {
		return 0.995
	}
	r := 1.0 - 2.0*math.Pi*cutoffHz/sampleRate
	return min(max(r, 0.001), 0.999)
}

// DCBlockerCutoff is the inverse of DCBlockerPole: fc = (1-R)*fs/(2*pi).
func DCBlockerCutoff(sampleRate, r float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return (1.0 - r) * sampleRate / (2.0 * math.Pi)
}
