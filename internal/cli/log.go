package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/wire"
)

// LogCmd returns the log command for reading the improvement log.
func LogCmd() *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "View the improvement log",
		Long: `Print the tail of the improvement log, the append-only audit trail of
every intervention the warden performed. With --follow, keep streaming
entries as they are appended.

Examples:
  warden log
  warden log -n 100
  warden log --follow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			service := wire.ImprovementLogService()

			entries, err := service.Tail(context.Background(), lines)
			if err != nil {
				return fmt.Errorf("failed to read improvement log: %w", err)
			}
			for _, line := range entries {
				fmt.Println(line)
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := service.Follow(ctx, os.Stdout); err != nil && ctx.Err() == nil {
				return fmt.Errorf("failed to follow improvement log: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new entries as they are appended")

	return cmd
}
