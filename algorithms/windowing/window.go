// Package windowing generates tapering windows applied to frames before
// spectral analysis and used to shape filterbank bands.
package windowing

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Type selects a window shape.
type Type int

const (
	Rectangle Type = iota
	Triangle
	Gauss
	Hamming
	Hann
	Blackman
)

func (t Type) String() string {
	switch t {
	case Rectangle:
		return "rectangle"
	case Triangle:
		return "triangle"
	case Gauss:
		return "gauss"
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case Blackman:
		return "blackman"
	}
	return "unknown"
}

// ParseType maps a window name to its Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "rectangle", "rect", "none":
		return Rectangle, nil
	case "triangle", "triang":
		return Triangle, nil
	case "gauss", "gaussian":
		return Gauss, nil
	case "hamming":
		return Hamming, nil
	case "hann", "hanning":
		return Hann, nil
	case "blackman":
		return Blackman, nil
	}
	return Rectangle, stream.NewConfigError("window", "type", name, "unknown window")
}

// Orientation selects whether Window returns a row or a column vector.
type Orientation int

const (
	Row Orientation = iota
	Column
)

func generate(typ Type, size int) ([]float64, error) {
	switch {
	case size < 0:
		return nil, stream.NewConfigError("window", "size", size, "must not be negative")
	case size == 0:
		return []float64{}, nil
	case size == 1:
		return []float64{1}, nil
	}
	switch typ {
	case Rectangle:
		return rectangle(size), nil
	case Triangle:
		return triangle(size), nil
	case Gauss:
		return gauss(size), nil
	case Hamming:
		return hamming(size), nil
	case Hann:
		return hann(size), nil
	case Blackman:
		return blackman(size), nil
	}
	return nil, stream.NewConfigError("window", "type", int(typ), "unknown window")
}

// Coefficients returns the size window values of typ.
func Coefficients(typ Type, size int) ([]float64, error) {
	return generate(typ, size)
}

// Window returns the window as a 1 x size (Row) or size x 1 (Column) matrix.
// A size of 0 yields nil, the empty matrix.
func Window(size int, typ Type, o Orientation) (*mat.Dense, error) {
	coefs, err := generate(typ, size)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	if o == Column {
		return mat.NewDense(size, 1, coefs), nil
	}
	return mat.NewDense(1, size, coefs), nil
}

// Func is a window of fixed size that can be applied to frames repeatedly.
type Func struct {
	typ          Type
	coefficients []float64
}

// New creates a window of typ with size coefficients.
func New(typ Type, size int) (*Func, error) {
	coefs, err := generate(typ, size)
	if err != nil {
		return nil, err
	}
	return &Func{typ: typ, coefficients: coefs}, nil
}

// Apply applies the window to a signal (creates new array)
func (w *Func) Apply(signal []float64) []float64 {
	if len(signal) != len(w.coefficients) {
		return nil
	}
	windowed := make([]float64, len(signal))
	for i, c := range w.coefficients {
		windowed[i] = signal[i] * c
	}
	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Func) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// ApplyStrided windows channel ch of an interleaved block of dim channels.
// Only the first Size samples are touched.
func (w *Func) ApplyStrided(data []float64, dim, ch int) {
	for i, c := range w.coefficients {
		idx := i*dim + ch
		if idx >= len(data) {
			return
		}
		data[idx] *= c
	}
}

// GetCoefficients returns a copy of the window coefficients
func (w *Func) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// GetSize returns the window size
func (w *Func) GetSize() int {
	return len(w.coefficients)
}

// GetType returns the window type
func (w *Func) GetType() Type {
	return w.typ
}
