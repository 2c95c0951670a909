package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/wire"
)

// AttachCmd returns the attach command for joining an orchestrator's
// tmux session.
func AttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach [project]",
		Short: "Attach to a project's orchestrator session",
		Long: `Attach the current terminal to the tmux session hosting the project's
orchestrator. The warden process is replaced by tmux, so detaching with
the usual tmux prefix returns to the shell.

Examples:
  warden attach my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sessionName, err := wire.FleetAdapter().AttachTarget(ctx, args[0])
			if err != nil {
				return err
			}

			tmuxPath, err := exec.LookPath("tmux")
			if err != nil {
				return fmt.Errorf("tmux not found in PATH: %w", err)
			}

			// Replace the current process with tmux attach so the user
			// lands directly in the session.
			execArgs := []string{"tmux", "attach", "-t", sessionName}
			if err := syscall.Exec(tmuxPath, execArgs, os.Environ()); err != nil {
				return fmt.Errorf("failed to exec tmux attach: %w", err)
			}

			// Never reached if exec succeeds.
			return nil
		},
	}
}
