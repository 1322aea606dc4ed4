// Package cli wires the pipeline stages into the matchpipe command
// tree. Every stage is a subcommand supporting two invocation modes:
// a continuous poll loop (default) and --single-run for one cycle,
// which is also how stages trigger their successors.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/app/config"
	"github.com/alextrx818/matchpipe/internal/buildinfo"
	infraconfig "github.com/alextrx818/matchpipe/internal/infra/config"
	"github.com/alextrx818/matchpipe/internal/pipeline"
)

// globalConfig is the configuration loaded before any command runs.
var globalConfig *config.AppConfig

// globalPaths is the resolved home directory layout.
var globalPaths app.Paths

func NewRoot() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "matchpipe",
		Short:         "Flat-file sports data pipeline",
		Version:       buildinfo.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.SetLogger(newLeveledLogger(logLevel))

			globalPaths = app.ResolvePaths()
			cfg, err := infraconfig.LoadSettings(globalPaths.Home, globalPaths.Settings)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			globalConfig = cfg
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFetchCmd())
	for _, stage := range pipeline.Order[1:] {
		cmd.AddCommand(newStageCmd(stage))
	}
	return cmd
}
