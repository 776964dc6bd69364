package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-pipe/config"
	"github.com/RyanBlaney/sonido-pipe/logging"
)

var (
	pipelineFile string
	outputDir    string
	parallel     int
	precision    int
	dumpConfig   bool
)

var runCmd = &cobra.Command{
	Use:   "run --pipeline p.yaml in.wav...",
	Short: "Run a pipeline over WAV files and print CSV",
	Long: `Decode every input WAV file, run the pipeline over it and write one CSV
row per output sample: the start time followed by every channel.

Inputs are processed concurrently. Without --output the tables are printed
to stdout one after the other, each preceded by a "# file" line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", "", "pipeline description (yaml, json or toml)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for one <input>.csv per input")
	runCmd.Flags().IntVarP(&parallel, "jobs", "j", 0, "inputs processed at once (0 means all)")
	runCmd.Flags().IntVar(&precision, "precision", 6, "digits after the decimal point")
	runCmd.Flags().BoolVar(&dumpConfig, "dump", false, "print the effective pipeline as YAML before running")
	_ = runCmd.MarkFlagRequired("pipeline")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger := logging.WithFields(logging.Fields{
		"component": "cli",
	})

	p, err := config.Load(pipelineFile)
	if err != nil {
		return err
	}
	if dumpConfig {
		data, err := config.Marshal(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s---\n", data)
	}

	jobs := make([]config.Job, 0, len(args))
	for _, path := range args {
		s, err := readWAV(path)
		if err != nil {
			return err
		}
		logger.Debug("Decoded input", logging.Fields{
			"file":     path,
			"samples":  s.Num,
			"channels": s.Dim,
			"rate":     s.SampleRate,
		})
		jobs = append(jobs, config.Job{Name: path, Pipeline: p, Input: s})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	outs, err := config.RunAll(ctx, jobs, parallel)
	if err != nil {
		return err
	}

	for i, out := range outs {
		name := jobs[i].Name
		if outputDir == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", name)
			if err := writeCSV(cmd.OutOrStdout(), out, precision); err != nil {
				return err
			}
			continue
		}
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		path := filepath.Join(outputDir, base+".csv")
		if err := writeCSVFile(path, out, precision); err != nil {
			return err
		}
		logger.Info("Wrote output", logging.Fields{
			"file": path,
			"rows": out.Num,
			"dim":  out.Dim,
		})
	}
	return nil
}
