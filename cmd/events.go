package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/audit"
	"github.com/firefly-engineering/ink/internal/config"
)

var eventsCmd = &cobra.Command{
	Use:   "events <name>",
	Short: "Display the lifecycle events recorded for an instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

var eventsJSON bool

func init() {
	eventsCmd.Flags().BoolVar(&eventsJSON, "jsonl", false, "Output events as JSON lines")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	events, err := audit.NewLogger(cfg.AuditDir()).Events(name)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		printer(cmd).Info("No events found for instance %s", name)
		return nil
	}

	for _, e := range events {
		if eventsJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-8s %s", ts, e.Type, e.Instance)
		if e.Owner != "" {
			line += " owner=" + e.Owner
		}
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		fmt.Fprintln(out, line)
	}

	return nil
}
