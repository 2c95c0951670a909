package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/wire"
)

// WatchCmd returns the watch command, the supervisor's main loop.
func WatchCmd() *cobra.Command {
	var intervalMs int64
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the fleet monitor loop",
		Long: `Run the monitor loop: each cycle reads the fleet registry, classifies
every running project, and restarts, diagnoses-and-fixes, or escalates
the stalled ones. Cycles are single-flight: a tick that arrives while a
cycle is still running is dropped, never queued.

Examples:
  warden watch                   # Run until interrupted
  warden watch --once            # Run exactly one cycle and exit
  warden watch --interval 60000  # Check every minute`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			monitor := wire.MonitorService()

			if once {
				stats, err := monitor.RunCycle(ctx)
				if err != nil {
					return fmt.Errorf("cycle failed: %w", err)
				}
				printCycleStats(stats)
				return nil
			}

			fmt.Println("✓ Warden watching fleet (Ctrl-C to stop)")
			err := monitor.Watch(ctx, primary.WatchOptions{
				Interval: time.Duration(intervalMs) * time.Millisecond,
				OnCycle:  printCycleStats,
				OnError: func(err error) {
					fmt.Printf("⚠ cycle failed: %v\n", err)
				},
			})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watch failed: %w", err)
			}

			fmt.Println("✓ Warden stopped")
			return nil
		},
	}

	cmd.Flags().Int64Var(&intervalMs, "interval", 0, "Cycle interval in milliseconds (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "Run exactly one cycle and exit")

	return cmd
}

func printCycleStats(stats *primary.CycleStats) {
	fmt.Printf("cycle: checked=%d stalled=%d recovered=%d escalated=%d interventions=%d\n",
		stats.ProjectsChecked,
		stats.Stalled,
		stats.Recovered,
		stats.Escalated,
		stats.InterventionsAttempted,
	)
}
