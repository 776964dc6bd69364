package common

import "gonum.org/v1/gonum/mat"

// Dims returns the shape of m, treating nil as 0x0.
func Dims(m mat.Matrix) (int, int) {
	if m == nil {
		return 0, 0
	}
	if d, ok := m.(*mat.Dense); ok && d == nil {
		return 0, 0
	}
	return m.Dims()
}

// Convolve returns the full linear convolution of a and b, of length
// len(a)+len(b)-1. It multiplies polynomials given by their coefficients.
func Convolve(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}
