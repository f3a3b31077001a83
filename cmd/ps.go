package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/tui"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running instances",
	RunE:  runPs,
}

var psOwner string

func init() {
	psCmd.Flags().StringVar(&psOwner, "owner", "", "Only show instances owned by this user id")
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		var instances []instance.Instance
		var err error
		if psOwner != "" {
			instances, err = a.Registry.ListByOwner(cmd.Context(), psOwner)
		} else {
			instances, err = a.Registry.List(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), tui.Table(instances, time.Now(), a.Config.Instances.Retention))
		return nil
	})
}
