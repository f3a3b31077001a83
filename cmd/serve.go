package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/identity"
	"github.com/firefly-engineering/ink/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy, API and cleanup scheduler",
	Long: `Serves the ink front end and routes <name>.<domain> requests to the
matching instance, tunnelling WebSocket connections. Expired instances are
removed in the background.

Runs in the foreground until interrupted.`,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Override the listen address from the config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		cfg := a.Config
		if serveListen != "" {
			cfg.Listen = serveListen
		}

		provider, closeProvider, err := identity.FromConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up identity: %w", err)
		}
		defer closeProvider()

		srv, err := server.New(cfg, a.Registry, provider, a.Metrics)
		if err != nil {
			return err
		}

		printer(cmd).Info("Serving on %s (runtime: %s)", cfg.Listen, a.Runtime.Name())

		if err := srv.Run(ctx); err != nil {
			return err
		}
		printer(cmd).Info("Server stopped")
		return nil
	})
}
