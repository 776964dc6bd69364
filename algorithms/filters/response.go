package filters

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/common"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// responseEps keeps the division finite where the denominator spectrum
// vanishes.
const responseEps = 1e-20

// Polynomials multiplies all sections of coefs into one numerator and one
// denominator polynomial in powers of z^-1.
func Polynomials(coefs *mat.Dense) (num, den []float64, err error) {
	sections, err := parseSections(coefs)
	if err != nil {
		return nil, nil, err
	}
	num, den = []float64{1}, []float64{1}
	for _, s := range sections {
		num = common.Convolve(num, []float64{s.b0, s.b1, s.b2})
		den = common.Convolve(den, []float64{1, s.a1, s.a2})
	}
	return num, den, nil
}

// Response returns the complex frequency response of coefs at the nfft/2+1
// frequencies k/nfft*fs, k = 0..nfft/2.
func Response(coefs *mat.Dense, nfft int) ([]complex128, error) {
	num, den, err := Polynomials(coefs)
	if err != nil {
		return nil, err
	}
	if nfft < len(num) {
		return nil, stream.NewConfigError("response", "nfft", nfft,
			"must not be shorter than the filter polynomial")
	}

	numSpec := fft.FFTReal(dsputils.ZeroPadF(num, nfft))
	denSpec := fft.FFTReal(dsputils.ZeroPadF(den, nfft))

	rfft := nfft/2 + 1
	out := make([]complex128, rfft)
	for i := range out {
		out[i] = numSpec[i] / (denSpec[i] + responseEps)
	}
	return out, nil
}

// Magnitude returns |h| for every bin of a response.
func Magnitude(h []complex128) []float64 {
	mag := make([]float64, len(h))
	for i, v := range h {
		mag[i] = cmplx.Abs(v)
	}
	return mag
}
