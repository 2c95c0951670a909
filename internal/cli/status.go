package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/wire"
)

// StatusCmd returns the status command showing the fleet table.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [project]",
		Short: "Show fleet status",
		Long: `Show every registered project with its status, phase, PID, heartbeat
age, framework version, and restart count. With a project name, show
that project's full details instead.

Examples:
  warden status
  warden status my-app`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			adapter := wire.FleetAdapter()

			if len(args) == 1 {
				_, err := adapter.Show(ctx, args[0])
				return err
			}

			_, err := adapter.Status(ctx)
			return err
		},
	}
}
