package spectral

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Rfft returns the number of non-redundant bins of a real FFT of length nfft.
func Rfft(nfft int) int {
	return nfft/2 + 1
}

// FFT computes the real-input FFT of dim interleaved channels with a fixed
// plan. Output is bin-major, channel-minor: bin i of channel j is at
// dst[i*dim+j].
type FFT struct {
	nfft int
	rfft int
	dim  int

	plan *fourier.FFT
	seq  []float64
	coef []complex128
}

// NewFFT creates a plan for frames of nfft samples with dim channels. nfft
// need not be a power of two.
func NewFFT(nfft, dim int) (*FFT, error) {
	if nfft <= 0 {
		return nil, stream.NewConfigError("fft", "nfft", nfft, "must be positive")
	}
	if dim <= 0 {
		return nil, stream.NewConfigError("fft", "dim", dim, "must be positive")
	}
	return &FFT{
		nfft: nfft,
		rfft: Rfft(nfft),
		dim:  dim,
		plan: fourier.NewFFT(nfft),
		seq:  make([]float64, nfft),
		coef: make([]complex128, Rfft(nfft)),
	}, nil
}

func (f *FFT) Nfft() int { return f.nfft }
func (f *FFT) Rfft() int { return f.rfft }
func (f *FFT) Dim() int { return f.dim }

func (f *FFT) check(num, srcLen, dstLen int) error {
	if num < 0 {
		return stream.NewShapeError("fft", "num", ">= 0", num)
	}
	if srcLen < num*f.dim {
		return stream.NewShapeError("fft", "src values", num*f.dim, srcLen)
	}
	if dstLen != f.rfft*f.dim {
		return stream.NewShapeError("fft", "dst values", f.rfft*f.dim, dstLen)
	}
	return nil
}

// channel transforms channel ch of src into f.coef. Positions past num are
// zero, samples past nfft are ignored.
func (f *FFT) channel(num int, src []float64, ch int) {
	used := min(num, f.nfft)
	for i := range used {
		f.seq[i] = src[i*f.dim+ch]
	}
	clear(f.seq[used:])
	f.plan.Coefficients(f.coef, f.seq)
}

// Transform writes the complex spectrum of the first num samples of src.
func (f *FFT) Transform(num int, src []float64, dst []complex128) error {
	if err := f.check(num, len(src), len(dst)); err != nil {
		return err
	}
	for ch := range f.dim {
		f.channel(num, src, ch)
		for i, c := range f.coef {
			dst[i*f.dim+ch] = c
		}
	}
	return nil
}

// TransformMagnitude writes the magnitude spectrum of the first num samples
// of src.
func (f *FFT) TransformMagnitude(num int, src []float64, dst []float64) error {
	if err := f.check(num, len(src), len(dst)); err != nil {
		return err
	}
	for ch := range f.dim {
		f.channel(num, src, ch)
		for i, c := range f.coef {
			dst[i*f.dim+ch] = cmplx.Abs(c)
		}
	}
	return nil
}

// IFFT is the inverse of FFT: rfft complex bins per channel in FFT's layout
// become nfft = (rfft-1)*2 real samples per channel, scaled by 1/nfft.
type IFFT struct {
	nfft int
	rfft int
	dim  int

	plan *fourier.FFT
	seq  []float64
	coef []complex128
}

// NewIFFT creates an inverse plan for rfft bins and dim channels.
func NewIFFT(rfft, dim int) (*IFFT, error) {
	if rfft < 2 {
		return nil, stream.NewConfigError("ifft", "rfft", rfft, "must be at least 2")
	}
	if dim <= 0 {
		return nil, stream.NewConfigError("ifft", "dim", dim, "must be positive")
	}
	nfft := (rfft - 1) * 2
	return &IFFT{
		nfft: nfft,
		rfft: rfft,
		dim:  dim,
		plan: fourier.NewFFT(nfft),
		seq:  make([]float64, nfft),
		coef: make([]complex128, rfft),
	}, nil
}

func (f *IFFT) Nfft() int { return f.nfft }
func (f *IFFT) Rfft() int { return f.rfft }
func (f *IFFT) Dim() int { return f.dim }

// Transform reconstructs nfft samples per channel from src into dst.
func (f *IFFT) Transform(src []complex128, dst []float64) error {
	if len(src) != f.rfft*f.dim {
		return stream.NewShapeError("ifft", "src values", f.rfft*f.dim, len(src))
	}
	if len(dst) != f.nfft*f.dim {
		return stream.NewShapeError("ifft", "dst values", f.nfft*f.dim, len(dst))
	}
	scale := 1 / float64(f.nfft)
	for ch := range f.dim {
		for i := range f.coef {
			f.coef[i] = src[i*f.dim+ch]
		}
		f.plan.Sequence(f.seq, f.coef)
		for i, v := range f.seq {
			dst[i*f.dim+ch] = v * scale
		}
	}
	return nil
}

func (f *IFFT) String() string {
	return fmt.Sprintf("ifft{nfft=%d rfft=%d dim=%d}", f.nfft, f.rfft, f.dim)
}

func (f *FFT) String() string {
	return fmt.Sprintf("fft{nfft=%d rfft=%d dim=%d}", f.nfft, f.rfft, f.dim)
}
