package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 1127.0 * math.Log1p(hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * math.Expm1(mel/1127.0)
}

// MelIntervals returns nbanks overlapping bands equally spaced on the mel
// scale between minHz and maxHz. Band k spans from mel point k to mel point
// k+2, so neighbouring triangular bands share their edges with each other's
// centres.
func MelIntervals(nbanks int, minHz, maxHz float64) ([]Interval, error) {
	if err := checkRange("mel intervals", nbanks, minHz, maxHz); err != nil {
		return nil, err
	}

	lowMel := HzToMel(minHz)
	melStep := (HzToMel(maxHz) - lowMel) / float64(nbanks+1)

	hzPoints := make([]float64, nbanks+2)
	for i := range hzPoints {
		hzPoints[i] = MelToHz(lowMel + float64(i)*melStep)
	}
	hzPoints[len(hzPoints)-1] = maxHz

	intervals := make([]Interval, nbanks)
	for k := range intervals {
		intervals[k] = Interval{Lower: hzPoints[k], Upper: hzPoints[k+2]}
	}
	return intervals, nil
}

// UniformIntervals returns nbanks adjacent bands of equal width in Hz.
func UniformIntervals(nbanks int, minHz, maxHz float64) ([]Interval, error) {
	if err := checkRange("uniform intervals", nbanks, minHz, maxHz); err != nil {
		return nil, err
	}
	step := (maxHz - minHz) / float64(nbanks)
	intervals := make([]Interval, nbanks)
	for k := range intervals {
		intervals[k] = Interval{
			Lower: minHz + float64(k)*step,
			Upper: minHz + float64(k+1)*step,
		}
	}
	intervals[nbanks-1].Upper = maxHz
	return intervals, nil
}

func checkRange(component string, nbanks int, minHz, maxHz float64) error {
	if nbanks <= 0 {
		return stream.NewConfigError(component, "nbanks", nbanks, "must be positive")
	}
	if minHz < 0 {
		return stream.NewConfigError(component, "minfreq", minHz, "must not be negative")
	}
	if maxHz <= minHz {
		return stream.NewConfigError(component, "maxfreq", maxHz, "must exceed minfreq")
	}
	return nil
}
