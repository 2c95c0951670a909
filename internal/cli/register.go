package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/wire"
)

// RegisterCmd returns the register command adding a project to the fleet.
func RegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [name] [path]",
		Short: "Register a project with the fleet",
		Long: `Register a project with the fleet registry and seed its local copy of
the shared command tree. The path must be the project's filesystem root.

Examples:
  warden register my-app ~/src/my-app`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			name := args[0]

			path, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}

			_, err = wire.FleetAdapter().Register(ctx, name, path)
			return err
		},
	}
}

// DeregisterCmd returns the deregister command removing a project from
// the fleet.
func DeregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deregister [name]",
		Short: "Remove a project from the fleet",
		Long: `Remove a project from the fleet registry and drop its supervisor-side
state. The project's files are left untouched.

Examples:
  warden deregister my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			return wire.FleetAdapter().Deregister(ctx, args[0])
		},
	}
}
