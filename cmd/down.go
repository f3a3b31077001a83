package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
)

var downCmd = &cobra.Command{
	Use:   "down <name>",
	Short: "Stop and remove an instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withApp(cmd.Context(), func(a *app.App) error {
		logging.Debug("removing instance", "name", name)

		found, err := a.Registry.ListByName(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.InstanceNotFound(name)
		}

		printer(cmd).Info("Removing instance %s...", name)
		if err := a.Registry.Remove(cmd.Context(), name); err != nil {
			return err
		}

		printer(cmd).Success("Removed instance %s", name)
		return nil
	})
}
