package windowing

import "math"

// hamming is the symmetric Hamming window, w[i] == w[size-1-i].
func hamming(size int) []float64 {
	coefficients := make([]float64, size)
	denominator := float64(size - 1)
	for i := range size {
		coefficients[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/denominator)
	}
	return coefficients
}

// hann is the symmetric Hann window.
func hann(size int) []float64 {
	coefficients := make([]float64, size)
	denominator := float64(size - 1)
	for i := range size {
		coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
	return coefficients
}
