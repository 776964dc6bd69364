package config

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/filters"
	"github.com/RyanBlaney/sonido-pipe/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pipe/algorithms/stats"
	"github.com/RyanBlaney/sonido-pipe/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pipe/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// builder constructs one transformer for an input of the given sample rate.
type builder func(p *params, rate float64) (pipeline.Transformer, error)

var builders = map[string]builder{
	"iir":         buildIIR,
	"butfilt":     buildButfilt,
	"dcblocker":   buildDCBlocker,
	"preemphasis": buildPreEmphasis,
	"boost":       buildBoost,
	"resonator":   buildResonator,

	"fftfeat":     buildFFTfeat,
	"spectrogram": buildSpectrogram,
	"mfcc":        buildMFCC,
	"descriptors": buildDescriptors,
	"energy":      buildEnergy,

	"avgvar":   buildAvgVar,
	"minmax":   buildMinMax,
	"norm":     buildNorm,
	"drvtv":    buildDrvtv,
	"median":   buildMedian,
	"condiv":   buildConDiv,
	"peakgate": buildPeakGate,
	"bundle":   buildBundle,
}

// Types lists the transformer names Build understands.
func Types() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	return names
}

// NewStage builds a single transformer for an input at sampleRate.
func NewStage(s Stage, sampleRate float64) (pipeline.Transformer, error) {
	build, ok := builders[strings.ToLower(s.Type)]
	if !ok {
		return nil, stream.NewConfigError("pipeline", "type", s.Type, "unknown transformer")
	}
	p := newParams(s)
	t, err := build(p, sampleRate)
	if p.err != nil {
		return nil, p.err
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Build constructs the chain of p for an input at sampleRate.
func Build(p *Pipeline, sampleRate float64) (*pipeline.Chain, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	stages := func(kind string, list []Stage) ([]pipeline.Transformer, error) {
		out := make([]pipeline.Transformer, 0, len(list))
		for i, s := range list {
			t, err := NewStage(s, sampleRate)
			if err != nil {
				return nil, fmt.Errorf("%s %d (%s): %w", kind, i, s.Type, err)
			}
			out = append(out, t)
		}
		return out, nil
	}
	fs, err := stages("filter", p.Filters)
	if err != nil {
		return nil, err
	}
	ft, err := stages("feature", p.Features)
	if err != nil {
		return nil, err
	}
	return pipeline.NewChain(fs, ft)
}

func windowType(p *params, key string, def windowing.Type) (windowing.Type, error) {
	if !p.has(key) {
		return def, nil
	}
	return windowing.ParseType(p.string(key, ""))
}

func buildIIR(p *params, _ float64) (pipeline.Transformer, error) {
	rows := p.rows("coefs")
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, stream.NewConfigError("iir", "coefs", rows, "at least one section required")
	}
	coefs := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, stream.NewConfigError("iir", "coefs", row, "rows differ in length")
		}
		coefs.SetRow(i, row)
	}
	return filters.NewIIR(coefs)
}

func buildButfilt(p *params, _ float64) (pipeline.Transformer, error) {
	band, err := filters.ParseBand(p.string("type", "low"))
	if err != nil {
		return nil, err
	}
	return filters.NewButfilt(filters.ButfiltOptions{
		Type:  band,
		Order: p.int("order", 4),
		Low:   p.float("low", 0),
		High:  p.float("high", 0),
		Norm:  p.bool("norm", false),
		Zero:  p.bool("zero", false),
	})
}

func buildDCBlocker(p *params, rate float64) (pipeline.Transformer, error) {
	r := p.float("r", 0)
	if !p.has("r") {
		r = filters.DCBlockerPole(rate, p.float("cutoff", 0))
	}
	coefs, err := filters.DCBlocker(r)
	if err != nil {
		return nil, err
	}
	return filters.NewIIR(coefs)
}

func buildPreEmphasis(p *params, _ float64) (pipeline.Transformer, error) {
	alpha := filters.PreEmphasisCoefficient(p.string("content", filters.ContentGeneral))
	alpha = p.float("alpha", alpha)
	coefs, err := filters.PreEmphasis(alpha)
	if err != nil {
		return nil, err
	}
	return filters.NewIIR(coefs)
}

func buildBoost(p *params, rate float64) (pipeline.Transformer, error) {
	coefs, err := filters.Boost(rate, p.float("gain", 0), p.float("centre", 0), p.float("bandwidth", 0))
	if err != nil {
		return nil, err
	}
	return filters.NewIIR(coefs)
}

func buildResonator(p *params, rate float64) (pipeline.Transformer, error) {
	coefs, err := filters.Resonator(rate, p.float("centre", 0), p.float("bandwidth", 0))
	if err != nil {
		return nil, err
	}
	return filters.NewIIR(coefs)
}

func buildFFTfeat(p *params, _ float64) (pipeline.Transformer, error) {
	w, err := windowType(p, "window", windowing.Rectangle)
	if err != nil {
		return nil, err
	}
	return spectral.NewFFTfeat(spectral.FFTfeatOptions{
		Nfft:   p.int("nfft", 512),
		Window: w,
	})
}

func buildSpectrogram(p *params, _ float64) (pipeline.Transformer, error) {
	opts := spectral.DefaultSpectrogramOptions()
	var err error
	if opts.Window, err = windowType(p, "window", opts.Window); err != nil {
		return nil, err
	}
	if opts.BankWindow, err = windowType(p, "bankwindow", opts.BankWindow); err != nil {
		return nil, err
	}
	opts.Nfft = p.int("nfft", opts.Nfft)
	opts.NBanks = p.int("nbanks", opts.NBanks)
	opts.MinFreq = p.float("minfreq", opts.MinFreq)
	opts.MaxFreq = p.float("maxfreq", opts.MaxFreq)
	opts.Mel = p.bool("mel", opts.Mel)
	opts.Log = p.bool("log", opts.Log)
	opts.Power = p.bool("power", opts.Power)
	opts.BankString = p.string("intervals", "")
	opts.BankFile = p.string("bankfile", "")
	return spectral.NewSpectrogram(opts)
}

func buildMFCC(p *params, _ float64) (pipeline.Transformer, error) {
	opts := spectral.DefaultMFCCOptions()
	opts.Nfft = p.int("nfft", opts.Nfft)
	opts.NBanks = p.int("nbanks", opts.NBanks)
	opts.MinFreq = p.float("minfreq", opts.MinFreq)
	opts.MaxFreq = p.float("maxfreq", opts.MaxFreq)
	opts.First = p.int("first", opts.First)
	opts.Last = p.int("last", opts.Last)
	return spectral.NewMFCC(opts)
}

func buildDescriptors(p *params, _ float64) (pipeline.Transformer, error) {
	w, err := windowType(p, "window", windowing.Hamming)
	if err != nil {
		return nil, err
	}
	names := p.strings("descriptors")
	if len(names) == 0 {
		names = []string{"centroid"}
	}
	ds := make([]spectral.Descriptor, 0, len(names))
	for _, name := range names {
		d, err := spectral.ParseDescriptor(name)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return spectral.NewDescriptors(spectral.DescriptorsOptions{
		Nfft:         p.int("nfft", 512),
		Window:       w,
		Descriptors:  ds,
		RolloffRatio: p.float("rolloff", 0),
		MinMagnitude: p.float("minmagnitude", 0),
	})
}

func buildEnergy(p *params, _ float64) (pipeline.Transformer, error) {
	return temporal.NewEnergy(temporal.EnergyOptions{
		DB:    p.bool("db", false),
		Floor: p.float("floor", 0),
	})
}

// windowParams reads the method and window length shared by the time based
// statistics. Win is in seconds.
func windowParams(p *params, rate float64) (stats.Params, error) {
	m, err := stats.ParseMethod(p.string("method", "moving"))
	if err != nil {
		return stats.Params{}, err
	}
	return stats.Params{Method: m, Win: p.float("win", 0), Rate: rate}, nil
}

func buildAvgVar(p *params, rate float64) (pipeline.Transformer, error) {
	wp, err := windowParams(p, rate)
	if err != nil {
		return nil, err
	}
	f, err := stats.ParseAvgVarFormat(p.string("format", ""))
	if err != nil {
		return nil, err
	}
	return stats.NewAvgVar(stats.AvgVarOptions{Params: wp, Format: f})
}

func buildMinMax(p *params, rate float64) (pipeline.Transformer, error) {
	wp, err := windowParams(p, rate)
	if err != nil {
		return nil, err
	}
	f, err := stats.ParseMinMaxFormat(p.string("format", ""))
	if err != nil {
		return nil, err
	}
	return stats.NewMinMax(stats.MinMaxOptions{Params: wp, Format: f})
}

func buildNorm(p *params, rate float64) (pipeline.Transformer, error) {
	wp, err := windowParams(p, rate)
	if err != nil {
		return nil, err
	}
	policy, err := stats.ParseNormPolicy(p.string("policy", ""))
	if err != nil {
		return nil, err
	}
	return stats.NewNorm(stats.NormOptions{
		Params: wp,
		Policy: policy,
		Low:    p.float("low", 0),
		High:   p.float("high", 1),
	})
}

func buildDrvtv(p *params, rate float64) (pipeline.Transformer, error) {
	wp, err := windowParams(p, rate)
	if err != nil {
		return nil, err
	}
	st, err := stats.ParseStencil(p.string("stencil", ""))
	if err != nil {
		return nil, err
	}
	flags, err := stats.ParseDerivative(p.string("derivative", "first"))
	if err != nil {
		return nil, err
	}
	return stats.NewDrvtv(stats.DrvtvOptions{Params: wp, Stencil: st, Flags: flags})
}

func buildMedian(p *params, _ float64) (pipeline.Transformer, error) {
	m, err := stats.ParseMethod(p.string("method", "moving"))
	if err != nil {
		return nil, err
	}
	return stats.NewMedian(stats.MedianOptions{Method: m, Win: p.int("win", 0)})
}

func buildConDiv(p *params, rate float64) (pipeline.Transformer, error) {
	m, err := stats.ParseMethod(p.string("method", "moving"))
	if err != nil {
		return nil, err
	}
	return stats.NewConDiv(stats.ConDivOptions{
		Method: m,
		Short:  p.float("short", 0),
		Long:   p.float("long", 0),
		Rate:   rate,
	})
}

func buildPeakGate(p *params, rate float64) (pipeline.Transformer, error) {
	wp, err := windowParams(p, rate)
	if err != nil {
		return nil, err
	}
	th, err := stats.NewThreshold(p.string("threshold", "fixed"), p.float("fixed", 0), p.float("k", 1))
	if err != nil {
		return nil, err
	}
	gate, err := stats.ParseGate(p.string("gate", ""))
	if err != nil {
		return nil, err
	}
	return stats.NewPeakGate(stats.PeakGateOptions{Params: wp, Threshold: th, Gate: gate})
}

func buildBundle(p *params, _ float64) (pipeline.Transformer, error) {
	r, err := stats.ParseReplace(p.string("replace", ""))
	if err != nil {
		return nil, err
	}
	return stats.NewBundle(stats.BundleOptions{
		Threshold: p.float("threshold", 0),
		HangIn:    p.int("hangin", 0),
		HangOut:   p.int("hangout", 0),
		Replace:   r,
		Value:     p.float("value", 0),
	})
}
