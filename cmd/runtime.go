package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/runtime"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Show container runtime information",
	Long: `Display information about available and active container runtimes.

ink supports these container runtimes:
  - engine:  Docker Engine API over its socket (DOCKER_HOST honoured)
  - docker:  docker CLI
  - podman:  podman CLI

With runtime.type = "auto" the engine API is preferred when the daemon
answers, then the first CLI found on PATH.`,
	RunE: runRuntime,
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	fmt.Fprintf(out, "Configured runtime: %s\n", cfg.Runtime.Type)

	rt, err := runtime.New(ctx, &runtime.Config{
		Type:      runtime.RuntimeType(cfg.Runtime.Type),
		ExtraArgs: cfg.Runtime.ExtraArgs,
	})
	if err != nil {
		fmt.Fprintf(out, "Selection failed: %s\n", err)
	} else {
		if c, ok := rt.(io.Closer); ok {
			defer c.Close()
		}
		fmt.Fprintf(out, "Active runtime: %s\n", rt.Name())
		if err := rt.Ping(ctx); err != nil {
			fmt.Fprintf(out, "Ping: failed (%s)\n", err)
		} else {
			fmt.Fprintln(out, "Ping: ok")
		}
	}

	fmt.Fprintln(out)

	available := runtime.Available(nil)
	fmt.Fprintln(out, "Available CLIs:")
	if len(available) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, r := range available {
		fmt.Fprintf(out, "  %s\n", r)
	}

	return nil
}
