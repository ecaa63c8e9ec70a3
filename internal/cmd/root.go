package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BradhamLab/oif/internal/config"
	"github.com/BradhamLab/oif/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "oiftree",
	Short: "Convert OIF microscopy containers into browsable directory trees",
	Long: `oiftree extracts Olympus OIF microscopy containers into a filesystem
layout of per-channel, per-z-slice PNG images plus a metadata record.

For each container the output is:

  <out_dir>/<prefix><basename>/metadata.json
  <out_dir>/<prefix><basename>/<channel>/z<depth>.png

Channel directories are numbered from 1 in container enumeration order;
stain names supplied in the job descriptor appear only in metadata.json,
never in paths.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

var (
	rootLogLevel  string
	rootLogFormat string

	// toolConfig is the environment-derived configuration, loaded once
	// per invocation in setupLogging.
	toolConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from OIFTREE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "", "Log format: console or json (default from OIFTREE_LOG_FORMAT)")
}

func setupLogging(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if rootLogLevel != "" {
		cfg.LogLevel = rootLogLevel
	}
	if rootLogFormat != "" {
		cfg.LogFormat = rootLogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	toolConfig = cfg
	return observability.Init(cfg.LogLevel, cfg.LogFormat)
}

// Execute runs the root command. It is called once from main.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

// exitError wraps a stage failure with a human-readable message.
func exitError(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}
