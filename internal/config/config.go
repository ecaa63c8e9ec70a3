// Package config loads tool-level settings from the environment.
//
// Settings use the OIFTREE_ prefix: OIFTREE_LOG_LEVEL,
// OIFTREE_LOG_FORMAT, OIFTREE_LABEL_BASE. Command-line flags override
// these where the CLI exposes one.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds tool-level settings.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn, or error.
	LogLevel string

	// LogFormat selects the log encoder: console or json.
	LogFormat string

	// LabelBase is the first external channel label ("1" by default).
	// It exists as configuration so alternate labeling conventions never
	// require touching path-construction code.
	LabelBase int
}

// Load reads settings from the environment, applying defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OIFTREE")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("label_base", 1)

	cfg := &Config{
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LabelBase: v.GetInt("label_base"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn, or error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q (want console or json)", c.LogFormat)
	}
	if c.LabelBase < 0 {
		return fmt.Errorf("invalid label base %d (must be >= 0)", c.LabelBase)
	}
	return nil
}
