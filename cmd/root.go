package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ink-ctl",
	Short: "ink instance orchestration CLI",
	Long: `ink-ctl runs and manages ink, which gives each signed-in user their
own application instance under its own subdomain.

Each instance is a container that:
  - belongs to exactly one owner
  - is reachable at <name>.<domain> through the ink proxy
  - is removed automatically once it outlives the retention window`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the configuration file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// printer returns user-facing output bound to cmd's writers.
func printer(cmd *cobra.Command) *logging.Printer {
	return logging.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
}
