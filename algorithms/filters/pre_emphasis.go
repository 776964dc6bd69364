package filters

import (
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Content types with a tuned pre-emphasis coefficient.
const (
	ContentSpeech     = "speech"     // α = 0.97
	ContentMusic      = "music"      // α = 0.95
	ContentBroadcast  = "broadcast"  // α = 0.96
	ContentNarrowband = "narrowband" // α = 0.94
	ContentWideband   = "wideband"   // α = 0.98
	ContentGeneral    = "general"    // α = 0.95
)

// PreEmphasisCoefficient returns the coefficient used for contentType.
func PreEmphasisCoefficient(contentType string) float64 {
	switch contentType {
	case ContentSpeech:
		return 0.97 // ITU-T G.191 recommendation for speech
	case ContentBroadcast:
		return 0.96
	case ContentNarrowband:
		return 0.94
	case ContentWideband:
		return 0.98
	default:
		return 0.95
	}
}

// PreEmphasis returns the single section of H(z) = 1 - α*z^-1, which lifts
// high frequencies before spectral analysis.
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
func PreEmphasis(alpha float64) (*mat.Dense, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, stream.NewConfigError("preemphasis", "alpha", alpha, "must be in [0,1)")
	}
	coefs := mat.NewDense(1, sosCols, nil)
	setSection(coefs, 0, 1, -alpha, 0, 0, 0)
	return coefs, nil
}
