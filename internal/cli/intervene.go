package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/core/stall"
	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/wire"
)

// InterveneCmd returns the intervene command forcing one
// diagnose-and-fix pipeline run for a project.
func InterveneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intervene [project]",
		Short: "Run a diagnosis-and-fix intervention now",
		Long: `Run the full intervention pipeline for one project immediately,
without waiting for its heartbeat to go stale: recall similar past
fixes, run a read-only diagnosis session, classify the bug location,
and either apply a validated fix or escalate.

Examples:
  warden intervene my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			project, err := wire.FleetService().GetProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			fmt.Printf("Running intervention for %s (this launches a bounded reasoning session)...\n", project.Name)

			report, err := wire.InterventorService().HandleStall(ctx, primary.HandleStallRequest{
				Project:     project.Name,
				ProjectPath: project.Path,
				StallType:   stall.TypeExecutionError,
				Confidence:  stall.ConfidenceHigh,
				Details:     "operator-requested intervention",
				Phase:       project.CurrentPhase,
			})
			if err != nil {
				return fmt.Errorf("intervention failed: %w", err)
			}

			printInterventionReport(report)
			return nil
		},
	}
}

func printInterventionReport(report *primary.InterventionReport) {
	fmt.Println()
	switch report.Outcome {
	case primary.InterventionRecovered:
		fmt.Printf("%s Intervention recovered %s\n", color.New(color.FgGreen).Sprint("✓"), report.Project)
	case primary.InterventionEscalated:
		fmt.Printf("%s Intervention escalated %s: %s\n", color.New(color.FgYellow).Sprint("⚠"), report.Project, report.EscalationReason)
	default:
		fmt.Printf("%s Intervention failed for %s\n", color.New(color.FgRed).Sprint("✗"), report.Project)
	}

	if d := report.Diagnostic; d != nil {
		fmt.Printf("  Bug location: %s (%s confidence)\n", d.BugLocation, d.Confidence)
		fmt.Printf("  Root cause:   %s\n", d.RootCause)
		if d.FilePath != "" {
			fmt.Printf("  File:         %s\n", d.FilePath)
		}
		if d.MultiProjectPattern {
			fmt.Printf("  Pattern across: %v\n", d.AffectedProjects)
		}
	}

	if f := report.Fix; f != nil {
		fmt.Printf("  Fix applied:  %s (%d lines, validation passed: %t)\n", f.FilePath, f.LinesChanged, f.ValidationPassed)
		if f.RevertedOnFailure {
			fmt.Println("  Fix reverted after failed validation")
		}
	}

	if len(report.PropagatedTo) > 0 {
		fmt.Printf("  Propagated to: %v\n", report.PropagatedTo)
	}
}
