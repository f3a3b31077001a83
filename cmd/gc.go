package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/cleanup"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/tui"
)

var gcDryRun bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove expired instances",
	Long: `Runs one cleanup sweep: every instance older than the retention window
(instances.retention, 2h by default) is stopped and removed.

With --dry-run, prints the expired instances without removing them.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "Report expired instances without removing them")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		cfg := a.Config
		sched := cleanup.New(cfg.Cleanup.Interval, cfg.Instances.Retention, a.Registry,
			cleanup.WithDryRun(gcDryRun),
			cleanup.WithMetrics(a.Metrics),
		)

		result := sched.Tick(cmd.Context())
		printGCResult(printer(cmd), result, cfg.Instances.Retention)

		if len(result.Failed) > 0 {
			return fmt.Errorf("failed to remove %d expired instance(s)", len(result.Failed))
		}
		return nil
	})
}

func printGCResult(p *logging.Printer, result cleanup.TickResult, retention time.Duration) {
	w := p.Out
	if len(result.Expired) == 0 {
		fmt.Fprintf(w, "No expired instances (%d inspected)\n", result.Inspected)
		return
	}

	if result.DryRun {
		fmt.Fprintln(w, "Dry run (without --dry-run these would be removed):")
		fmt.Fprintln(w)
	}

	now := time.Now()
	for _, inst := range result.Expired {
		fmt.Fprintf(w, "  %s (owner %s, up %s)\n", inst.Name, inst.Owner, tui.FormatDuration(inst.Age(now)))
	}

	if result.DryRun {
		return
	}

	fmt.Fprintln(w)
	for _, f := range result.Failed {
		p.Warning("Failed to remove %s: %v", f.Name, f.Err)
	}
	fmt.Fprintf(w, "Removed %d of %d expired instance(s) (retention %s)\n",
		len(result.Removed), len(result.Expired), retention)
}
