// Package config describes pipelines as YAML documents and builds them into
// runnable transformer chains.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// EnvPrefix prefixes the environment variables that override top level keys,
// e.g. SONIDO_PIPE_FRAME.
const EnvPrefix = "SONIDO_PIPE"

// Stage names one transformer and its parameters.
type Stage struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Params map[string]any `mapstructure:"params" yaml:"params,omitempty"`
}

// Pipeline is the document form of a Chain driven with one frame/delta
// configuration.
type Pipeline struct {
	Name     string  `mapstructure:"name" yaml:"name,omitempty"`
	Frame    int     `mapstructure:"frame" yaml:"frame"`
	Delta    int     `mapstructure:"delta" yaml:"delta"`
	Boundary string  `mapstructure:"boundary" yaml:"boundary"`
	Filters  []Stage `mapstructure:"filters" yaml:"filters,omitempty"`
	Features []Stage `mapstructure:"features" yaml:"features,omitempty"`
}

// Load reads a pipeline file. The format follows the file extension.
func Load(path string) (*Pipeline, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}
	return decode(v)
}

// Read parses a pipeline document of the given format ("yaml", "json", ...).
func Read(r io.Reader, format string) (*Pipeline, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Pipeline, error) {
	var p Pipeline
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the driver settings and that every stage names a known
// transformer. Stage parameters are checked by Build.
func (p *Pipeline) Validate() error {
	if p.Frame <= 0 {
		return stream.NewConfigError("pipeline", "frame", p.Frame, "must be positive")
	}
	if p.Delta < 0 {
		return stream.NewConfigError("pipeline", "delta", p.Delta, "must not be negative")
	}
	if _, err := pipeline.ParseBoundary(p.Boundary); err != nil {
		return err
	}
	if len(p.Filters)+len(p.Features) == 0 {
		return stream.NewConfigError("pipeline", "stages", 0, "at least one filter or feature required")
	}
	for _, s := range append(append([]Stage(nil), p.Filters...), p.Features...) {
		if _, ok := builders[strings.ToLower(s.Type)]; !ok {
			return stream.NewConfigError("pipeline", "type", s.Type, "unknown transformer")
		}
	}
	return nil
}

// DriverConfig returns the frame, delta and boundary settings.
func (p *Pipeline) DriverConfig() (pipeline.Config, error) {
	b, err := pipeline.ParseBoundary(p.Boundary)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{Frame: p.Frame, Delta: p.Delta, Boundary: b}, nil
}

// Marshal writes p back as YAML.
func Marshal(p *Pipeline) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline: %w", err)
	}
	return data, nil
}
