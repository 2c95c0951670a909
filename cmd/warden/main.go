package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/cli"
	"github.com/siphio/piv-warden/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "warden",
		Short:   "Warden - supervisor for a fleet of PIV orchestrators",
		Version: version.String(),
		Long: `Warden supervises a fleet of autonomous PIV orchestrators. It watches
each registered project's heartbeat, restarts crashed orchestrators, runs
bounded diagnosis-and-fix sessions for execution errors, and propagates
validated framework fixes to every project in the fleet.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.RegisterCmd())
	rootCmd.AddCommand(cli.DeregisterCmd())
	rootCmd.AddCommand(cli.StartCmd())
	rootCmd.AddCommand(cli.StopCmd())
	rootCmd.AddCommand(cli.AttachCmd())
	rootCmd.AddCommand(cli.PropagateCmd())
	rootCmd.AddCommand(cli.InterveneCmd())
	rootCmd.AddCommand(cli.LogCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
