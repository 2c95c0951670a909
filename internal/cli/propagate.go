package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/wire"
)

// PropagateCmd returns the propagate command for manual fleet-wide
// distribution of framework files.
func PropagateCmd() *cobra.Command {
	var file string
	var all bool

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Distribute framework files to fleet projects",
		Long: `Copy canonical framework files into fleet projects and bump their
recorded framework version. Each target succeeds or fails on its own;
one project's failure never aborts the batch.

With --file, copy that one file (relative to the canonical tree) to
every registered project. With --all, sync the full command tree to
every project whose version is outdated.

Examples:
  warden propagate --file execute.md
  warden propagate --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			service := wire.PropagationService()

			switch {
			case file != "":
				results, err := service.Propagate(ctx, primary.PropagateRequest{RelPath: file})
				if err != nil {
					return fmt.Errorf("propagation failed: %w", err)
				}
				printPropagationResults(results)
				return nil

			case all:
				outdated, err := service.GetOutdated(ctx)
				if err != nil {
					return fmt.Errorf("failed to find outdated projects: %w", err)
				}
				if len(outdated) == 0 {
					fmt.Println("✓ All projects are up to date")
					return nil
				}

				results := make([]*primary.PropagationResult, 0, len(outdated))
				for _, project := range outdated {
					result, err := service.SyncProject(ctx, project.Name)
					if err != nil {
						return fmt.Errorf("failed to sync %s: %w", project.Name, err)
					}
					results = append(results, result)
				}
				printPropagationResults(results)
				return nil

			default:
				return fmt.Errorf("specify --file or --all")
			}
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Framework file to propagate, relative to the canonical tree")
	cmd.Flags().BoolVar(&all, "all", false, "Sync the full command tree to every outdated project")

	return cmd
}

func printPropagationResults(results []*primary.PropagationResult) {
	succeeded := 0

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tRESULT\tFILES\tERROR")
	for _, r := range results {
		marker := color.New(color.FgGreen).Sprint("✓")
		errText := "-"
		if r.Success {
			succeeded++
		} else {
			marker = color.New(color.FgRed).Sprint("✗")
			errText = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Project, marker, r.FilesCopied, errText)
	}
	w.Flush()

	fmt.Printf("\n%d/%d projects updated\n", succeeded, len(results))
}
