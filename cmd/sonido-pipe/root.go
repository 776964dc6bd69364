package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-pipe/config"
	"github.com/RyanBlaney/sonido-pipe/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sonido-pipe",
	Short: "Frame based signal transformation pipelines",
	Long: `Run filter and feature chains over audio in fixed frames with optional
overlap, and inspect the Butterworth designs the filters use.

Pipelines are YAML documents listing filters, applied to every new sample,
and features, computed once per frame. Top level keys can be overridden
with SONIDO_PIPE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, viper.GetViper()); err != nil {
			return err
		}
		return setupLogging(viper.GetString("log-level"), viper.GetString("log-format"))
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd, butterCmd)
}

// bindFlags lets SONIDO_PIPE_* variables fill flags the user did not set.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}
		env := config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindEnv(f.Name, env); err != nil {
			lastErr = err
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				lastErr = err
			}
		}
	})
	return lastErr
}

func setupLogging(level, format string) error {
	lvl, ok := logging.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown log format %q", format)
	}
	logger := logging.NewLogrusLogger(os.Stderr, format)
	logger.SetLevel(lvl)
	logging.SetGlobalLogger(logger)
	return nil
}
