package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/health"
	"github.com/firefly-engineering/ink/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the health of an instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()

	return withApp(cmd.Context(), func(a *app.App) error {
		found, err := a.Registry.ListByName(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.InstanceNotFound(name)
		}
		inst := found[0]

		now := time.Now()
		result := health.Check(cmd.Context(), &inst, a.Config.Proxy.UpstreamHost, now)

		fmt.Fprintf(out, "Instance:   %s\n", inst.Name)
		fmt.Fprintf(out, "Owner:      %s\n", inst.Owner)
		fmt.Fprintf(out, "Status:     %s\n", result.Status)
		fmt.Fprintf(out, "Uptime:     %s\n", result.Uptime)
		if result.PortPublished {
			fmt.Fprintf(out, "Port:       %d\n", inst.Port)
		}
		fmt.Fprintf(out, "Expires in: %s\n", tui.FormatDuration(a.Config.Instances.Retention-inst.Age(now)))
		return nil
	})
}
