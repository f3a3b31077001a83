package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive instance picker",
	Long: `Opens an interactive TUI listing running instances grouped by owner.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  n      - Create an instance (needs --owner)
  d      - Remove the selected instance
  q/Esc  - Quit`,
	RunE: runPick,
}

var pickOwner string

func init() {
	pickCmd.Flags().StringVar(&pickOwner, "owner", "", "Owner for instances created from the picker")
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withApp(ctx, func(a *app.App) error {
		logging.Debug("picker mode started")

		instances, err := a.Registry.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		result, err := tui.RunPicker(instances, a.Config.Instances.Retention)
		if err != nil {
			return fmt.Errorf("picker error: %w", err)
		}

		logging.Debug("picker result", "action", result.Action)

		switch result.Action {
		case tui.ActionNew:
			if pickOwner == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "\nTo create an instance, run:")
				fmt.Fprintln(cmd.OutOrStdout(), "  ink-ctl up --owner <id>")
				return nil
			}
			inst, err := a.Registry.Create(ctx, pickOwner)
			if err != nil {
				return err
			}
			printer(cmd).Success("Created instance %s (port %d)", inst.Name, inst.Port)

		case tui.ActionDown:
			if result.Instance != nil {
				if err := a.Registry.Remove(ctx, result.Instance.Name); err != nil {
					return err
				}
				printer(cmd).Success("Removed instance %s", result.Instance.Name)
			}

		case tui.ActionQuit:
			// Just exit cleanly
		}

		return nil
	})
}
