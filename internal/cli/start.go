package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/wire"
)

// StartCmd returns the start command spawning a project's orchestrator.
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [project]",
		Short: "Start a project's orchestrator",
		Long: `Spawn the project's orchestrator detached inside a tmux session named
piv-<project> and record its PID in the registry. Refuses if an
orchestrator is already running for the project.

Examples:
  warden start my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, err := wire.FleetAdapter().Start(ctx, args[0])
			return err
		},
	}
}

// StopCmd returns the stop command terminating a project's orchestrator.
func StopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [project]",
		Short: "Stop a project's orchestrator",
		Long: `Terminate the project's orchestrator, tear down its tmux session, and
mark the project idle. Stopping an already-stopped project is not an
error.

Examples:
  warden stop my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			return wire.FleetAdapter().Stop(ctx, args[0])
		},
	}
}
