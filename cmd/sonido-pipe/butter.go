package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-pipe/algorithms/filters"
)

var (
	butterType  string
	butterOrder int
	butterLow   float64
	butterHigh  float64
	butterNfft  int
	butterRate  float64
)

var butterCmd = &cobra.Command{
	Use:   "butter",
	Short: "Print Butterworth sections and their magnitude response",
	Long: `Design a Butterworth filter and print its second-order sections as
"b0 b1 b2 1 a1 a2" rows, followed by the magnitude response at nfft/2+1
frequencies.

Cutoffs are normalized so 1 is nyquist unless --rate is given, in which case
they are in Hz.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		band, err := filters.ParseBand(butterType)
		if err != nil {
			return err
		}
		coefs, err := designButter(band, butterOrder, butterLow, butterHigh, butterRate)
		if err != nil {
			return err
		}
		return printButter(cmd.OutOrStdout(), coefs, butterNfft, butterRate)
	},
}

func init() {
	butterCmd.Flags().StringVarP(&butterType, "type", "t", "low", "response (low, high, band)")
	butterCmd.Flags().IntVarP(&butterOrder, "order", "n", 4, "filter order")
	butterCmd.Flags().Float64Var(&butterLow, "low", 0.5, "low-pass cutoff or lower band edge")
	butterCmd.Flags().Float64Var(&butterHigh, "high", 0.5, "high-pass cutoff or upper band edge")
	butterCmd.Flags().IntVar(&butterNfft, "nfft", 512, "response resolution")
	butterCmd.Flags().Float64Var(&butterRate, "rate", 0, "sample rate in Hz for cutoffs in Hz")
}

func designButter(band filters.Band, order int, low, high, rate float64) (*mat.Dense, error) {
	if rate > 0 {
		low, high = low/(rate/2), high/(rate/2)
	}
	switch band {
	case filters.HighPass:
		return filters.HPButter(order, high)
	case filters.BandPass:
		return filters.BPButter(order, low, high)
	}
	return filters.LPButter(order, low)
}

func printButter(w io.Writer, coefs *mat.Dense, nfft int, rate float64) error {
	rows, cols := coefs.Dims()
	for r := range rows {
		fields := make([]string, cols)
		for c := range cols {
			fields[c] = strconv.FormatFloat(coefs.At(r, c), 'g', 12, 64)
		}
		fmt.Fprintln(w, strings.Join(fields, " "))
	}

	h, err := filters.Response(coefs, nfft)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	scale := 1.0 / float64(nfft)
	unit := "cycles/sample"
	if rate > 0 {
		scale, unit = rate/float64(nfft), "Hz"
	}
	fmt.Fprintf(w, "# frequency (%s) magnitude\n", unit)
	for k, m := range filters.Magnitude(h) {
		fmt.Fprintf(w, "%g %.9f\n", float64(k)*scale, m)
	}
	return nil
}
