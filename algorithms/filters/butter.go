// Package filters synthesizes biquad coefficient sets and runs them as
// cascaded IIR filters over streams.
package filters

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// SOS column layout: [b0 b1 b2 1 a1 a2].
const (
	colB0 = iota
	colB1
	colB2
	colA0
	colA1
	colA2
	sosCols
)

// Sections returns the number of biquads of a Butterworth filter of order.
// Odd orders are rounded up.
func Sections(order int) int {
	return (order + 1) / 2
}

func checkOrder(component string, order int) error {
	if order <= 0 {
		return stream.NewConfigError(component, "order", order, "must be positive")
	}
	return nil
}

func checkCutoff(component, option string, f float64) error {
	if !(f > 0 && f < 1) {
		return stream.NewConfigError(component, option, f, "normalized frequency must be in (0,1)")
	}
	return nil
}

// prewarp maps a frequency normalized to nyquist onto the analog axis of the
// bilinear transform.
func prewarp(f float64) float64 {
	return math.Tan(math.Pi * f / 2)
}

// bilinear maps an analog pole onto the z-plane.
func bilinear(p complex128) complex128 {
	return (1 + p) / (1 - p)
}

// prototypePoles returns the upper-half left-plane poles of an analog
// Butterworth low-pass of order 2*sections with cutoff wc.
func prototypePoles(sections int, wc float64) []complex128 {
	poles := make([]complex128, 0, sections)
	for m := sections; m < 2*sections; m++ {
		theta := float64(2*m+1) * math.Pi / float64(4*sections)
		poles = append(poles, complex(wc*math.Cos(theta), wc*math.Sin(theta)))
	}
	return poles
}

func setSection(m *mat.Dense, row int, b0, b1, b2, a1, a2 float64) {
	m.Set(row, colB0, b0)
	m.Set(row, colB1, b1)
	m.Set(row, colB2, b2)
	m.Set(row, colA0, 1)
	m.Set(row, colA1, a1)
	m.Set(row, colA2, a2)
}

// LPButter returns the second-order sections of a Butterworth low-pass with
// zeros at z=-1 and unity gain at DC. cutoff is normalized so 1 is nyquist.
func LPButter(order int, cutoff float64) (*mat.Dense, error) {
	if err := checkOrder("lpbutter", order); err != nil {
		return nil, err
	}
	if err := checkCutoff("lpbutter", "cutoff", cutoff); err != nil {
		return nil, err
	}
	sections := Sections(order)
	coefs := mat.NewDense(sections, sosCols, nil)
	for i, p := range prototypePoles(sections, prewarp(cutoff)) {
		z := bilinear(p)
		a1 := -2 * real(z)
		a2 := real(z)*real(z) + imag(z)*imag(z)
		g := (1 + a1 + a2) / 4
		setSection(coefs, i, g, 2*g, g, a1, a2)
	}
	return coefs, nil
}

// HPButter returns the second-order sections of a Butterworth high-pass with
// zeros at z=1 and unity gain at nyquist. The poles are those of the low-pass
// at the complementary frequency with their real part negated.
func HPButter(order int, cutoff float64) (*mat.Dense, error) {
	if err := checkOrder("hpbutter", order); err != nil {
		return nil, err
	}
	if err := checkCutoff("hpbutter", "cutoff", cutoff); err != nil {
		return nil, err
	}
	// complementary frequency in cycles per sample: 0.5 - cutoff/2
	complement := 2 * (0.5 - cutoff/2)
	sections := Sections(order)
	coefs := mat.NewDense(sections, sosCols, nil)
	for i, p := range prototypePoles(sections, prewarp(complement)) {
		z := bilinear(p)
		z = complex(-real(z), imag(z))
		a1 := -2 * real(z)
		a2 := real(z)*real(z) + imag(z)*imag(z)
		g := (1 - a1 + a2) / 4
		setSection(coefs, i, g, -2*g, g, a1, a2)
	}
	return coefs, nil
}

// BPButter returns the second-order sections of a Butterworth band-pass
// between low and high with zeros at z=1 and z=-1. A low-pass prototype of
// Sections(order) poles is mapped onto the band around the prewarped centre
// sqrt(w1*w2). Every section has unity gain at the band centre.
func BPButter(order int, low, high float64) (*mat.Dense, error) {
	if err := checkOrder("bpbutter", order); err != nil {
		return nil, err
	}
	if err := checkCutoff("bpbutter", "low", low); err != nil {
		return nil, err
	}
	if err := checkCutoff("bpbutter", "high", high); err != nil {
		return nil, err
	}
	if low >= high {
		return nil, stream.NewConfigError("bpbutter", "band", [2]float64{low, high}, "low must be below high")
	}

	n := Sections(order)
	w1, w2 := prewarp(low), prewarp(high)
	w0sq := w1 * w2
	bw := w2 - w1

	// s^2 - p*bw*s + w0^2 = 0 for every analog prototype pole p
	var upper []complex128
	var reals []float64
	for k := range n {
		theta := math.Pi * float64(2*k+n+1) / float64(2*n)
		p := cmplx.Exp(complex(0, theta))
		disc := cmplx.Sqrt(p*p*complex(bw*bw, 0) - complex(4*w0sq, 0))
		for _, s := range []complex128{(p*complex(bw, 0) + disc) / 2, (p*complex(bw, 0) - disc) / 2} {
			z := bilinear(s)
			switch {
			case math.Abs(imag(z)) < 1e-12:
				reals = append(reals, real(z))
			case imag(z) > 0:
				upper = append(upper, z)
			}
		}
	}

	type section struct{ a1, a2 float64 }
	sections := make([]section, 0, n)
	for _, z := range upper {
		sections = append(sections, section{-2 * real(z), real(z)*real(z) + imag(z)*imag(z)})
	}
	for i := 0; i+1 < len(reals); i += 2 {
		sections = append(sections, section{-(reals[i] + reals[i+1]), reals[i] * reals[i+1]})
	}

	centre := 2 * math.Atan(math.Sqrt(w0sq))
	e1 := cmplx.Exp(complex(0, -centre))
	e2 := e1 * e1
	coefs := mat.NewDense(len(sections), sosCols, nil)
	for i, s := range sections {
		den := 1 + complex(s.a1, 0)*e1 + complex(s.a2, 0)*e2
		num := 1 - e2
		g := cmplx.Abs(den) / cmplx.Abs(num)
		setSection(coefs, i, g, 0, -g, s.a1, s.a2)
	}
	return coefs, nil
}
