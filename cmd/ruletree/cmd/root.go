// Package cmd implements the ruletree command line.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/core/config"
	"github.com/solatis/ruletree/internal/core/logging"
)

// Version is the ruletree release version.
const Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	DBURL      string
	LogLevel   string
	LogFormat  string
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "ruletree",
		Short:   "ruletree condition tree evaluator",
		Long:    `ruletree stores condition trees for discounts, payment restrictions and customer segments and evaluates them against carts.`,
		Version: Version,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.DBURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (json, logfmt, text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig reads configuration and applies global flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.DBURL != "" {
		cfg.Database.URL = o.DBURL
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger installs the configured handler as the slog default. Logs go
// to stderr so command output on stdout stays parseable.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
