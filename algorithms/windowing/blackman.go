package windowing

import "math"

// blackman is the symmetric three-term Blackman window.
func blackman(size int) []float64 {
	coefficients := make([]float64, size)
	denominator := float64(size - 1)
	a0, a1, a2 := 0.42, 0.5, 0.08

	for i := range size {
		arg := 2 * math.Pi * float64(i) / denominator
		coefficients[i] = a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg)
	}
	// the end points come out as tiny negative rounding residue
	coefficients[0], coefficients[size-1] = 0, 0
	return coefficients
}

// gauss is a Gaussian window centred on (size-1)/2 whose width scales with
// size: w[i] = exp(-((5/(sqrt2*size))*k)^2).
func gauss(size int) []float64 {
	coefficients := make([]float64, size)
	scale := 5.0 / (math.Sqrt2 * float64(size))
	centre := float64(size-1) / 2
	for i := range size {
		k := (float64(i) - centre) * scale
		coefficients[i] = math.Exp(-k * k)
	}
	return coefficients
}
