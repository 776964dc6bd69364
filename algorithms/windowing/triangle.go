package windowing

// triangle is the classic triangular window. Odd sizes peak at exactly 1 in
// the centre, even sizes have two equal centre samples of (size-1)/size. The
// end points are never zero.
func triangle(size int) []float64 {
	coefficients := make([]float64, size)
	half := (size + 1) / 2
	for i := range half {
		var v float64
		if size%2 == 1 {
			v = 2.0 * float64(i+1) / float64(size+1)
		} else {
			v = (2.0*float64(i+1) - 1.0) / float64(size)
		}
		coefficients[i] = v
		coefficients[size-1-i] = v
	}
	return coefficients
}
