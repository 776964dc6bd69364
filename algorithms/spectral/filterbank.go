package spectral

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Interval is a frequency band in Hz.
type Interval struct {
	Lower float64
	Upper float64
}

// Filterbank builds one weighting row per interval over size spectrum bins.
// Band k covers bins round(Lower/nyquist*size) through
// round(Upper/nyquist*size), clamped to the spectrum, shaped by window and
// normalized to sum to 1.
func Filterbank(size int, intervals []Interval, sampleRate float64, window windowing.Type) (*mat.Dense, error) {
	if size <= 0 {
		return nil, stream.NewConfigError("filterbank", "size", size, "must be positive")
	}
	if len(intervals) == 0 {
		return nil, stream.NewConfigError("filterbank", "intervals", 0, "at least one band required")
	}
	if sampleRate <= 0 {
		return nil, stream.NewConfigError("filterbank", "sample rate", sampleRate, "must be positive")
	}
	nyquist := sampleRate / 2

	bank := mat.NewDense(len(intervals), size, nil)
	for k, iv := range intervals {
		if iv.Lower < 0 || iv.Upper <= iv.Lower {
			return nil, stream.NewConfigError("filterbank", fmt.Sprintf("band %d", k), iv, "need 0 <= lower < upper")
		}
		if iv.Upper > nyquist*(1+1e-9) {
			return nil, stream.NewConfigError("filterbank", fmt.Sprintf("band %d", k), iv,
				fmt.Sprintf("upper edge above nyquist %g", nyquist))
		}

		lo := int(math.Round(iv.Lower / nyquist * float64(size)))
		hi := int(math.Round(iv.Upper / nyquist * float64(size)))
		lo = min(max(lo, 0), size-1)
		hi = min(max(hi, lo), size-1)

		weights, err := windowing.Coefficients(window, hi-lo+1)
		if err != nil {
			return nil, err
		}
		sum := floats.Sum(weights)
		if sum <= 0 {
			// windows that vanish on very narrow bands fall back to flat weights
			for i := range weights {
				weights[i] = 1
			}
			sum = float64(len(weights))
		}
		floats.Scale(1/sum, weights)
		for i, w := range weights {
			bank.Set(k, lo+i, w)
		}
	}
	return bank, nil
}

// ParseIntervals reads bands from an inline description such as
// "0-300; 300-800; 800-2000". Bands are separated by ';', ',' or newlines and
// their edges by '-' or whitespace.
func ParseIntervals(s string) ([]Interval, error) {
	bands := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})
	return parseBands(bands, "inline")
}

// LoadIntervals reads bands from a file holding one "lower upper" pair per
// line. Blank lines and lines starting with '#' are skipped.
func LoadIntervals(path string) ([]Interval, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intervals: %w", err)
	}
	var bands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		bands = append(bands, line)
	}
	return parseBands(bands, path)
}

func parseBands(bands []string, source string) ([]Interval, error) {
	var intervals []Interval
	for i, band := range bands {
		band = strings.TrimSpace(band)
		if band == "" {
			continue
		}
		edges := strings.FieldsFunc(band, func(r rune) bool {
			return r == '-' || r == ' ' || r == '\t'
		})
		if len(edges) != 2 {
			return nil, stream.NewConfigError("intervals", fmt.Sprintf("%s band %d", source, i), band, "expected two edges")
		}
		lower, err := strconv.ParseFloat(edges[0], 64)
		if err != nil {
			return nil, stream.NewConfigError("intervals", fmt.Sprintf("%s band %d", source, i), band, err.Error())
		}
		upper, err := strconv.ParseFloat(edges[1], 64)
		if err != nil {
			return nil, stream.NewConfigError("intervals", fmt.Sprintf("%s band %d", source, i), band, err.Error())
		}
		if upper <= lower {
			return nil, stream.NewConfigError("intervals", fmt.Sprintf("%s band %d", source, i), band, "upper must exceed lower")
		}
		intervals = append(intervals, Interval{Lower: lower, Upper: upper})
	}
	if len(intervals) == 0 {
		return nil, stream.NewConfigError("intervals", source, "", "no bands found")
	}
	return intervals, nil
}
