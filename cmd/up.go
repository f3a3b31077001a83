package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/logging"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create an instance for a user",
	Long: `Creates an instance owned by --owner, subject to the same rules as the
web front end: one instance per owner and a platform-wide capacity.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

var upOwner string

func init() {
	upCmd.Flags().StringVar(&upOwner, "owner", "", "User id that will own the instance (required)")
	_ = upCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		logging.Debug("creating instance", "owner", upOwner)

		inst, err := a.Registry.Create(cmd.Context(), upOwner)
		if err != nil {
			return err
		}

		printer(cmd).Success("Created instance %s", inst.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", inst.Name, inst.Port)
		return nil
	})
}
