package config

import "github.com/spf13/viper"

const (
	DefaultFrame    = 512
	DefaultDelta    = 0
	DefaultBoundary = "pad"
)

func setDefaults(v *viper.Viper) {
	if !v.IsSet("frame") {
		v.SetDefault("frame", DefaultFrame)
	}
	if !v.IsSet("delta") {
		v.SetDefault("delta", DefaultDelta)
	}
	if !v.IsSet("boundary") {
		v.SetDefault("boundary", DefaultBoundary)
	}
}
