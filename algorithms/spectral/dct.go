package spectral

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// DCTMatrix returns the size x (clast-cfirst) orthonormal DCT-II matrix
// restricted to coefficients [cfirst, clast). Multiplying a row vector of
// size values by it yields those coefficients.
func DCTMatrix(size, cfirst, clast int) (*mat.Dense, error) {
	if size <= 0 {
		return nil, stream.NewConfigError("dct", "size", size, "must be positive")
	}
	if cfirst < 0 || clast > size || cfirst >= clast {
		return nil, stream.NewConfigError("dct", "coefficients", [2]int{cfirst, clast},
			"need 0 <= first < last <= size")
	}

	scale := math.Sqrt(2 / float64(size))
	m := mat.NewDense(size, clast-cfirst, nil)
	for i := range size {
		for c := cfirst; c < clast; c++ {
			v := math.Cos(math.Pi*float64((2*i+1)*c)/float64(2*size)) * scale
			if c == 0 {
				v *= math.Sqrt2 / 2
			}
			m.Set(i, c-cfirst, v)
		}
	}
	return m, nil
}
