package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/siphio/piv-warden/internal/ports/primary"
)

// FleetAdapter is a thin adapter that translates CLI operations to
// FleetService calls. It depends only on the FleetService interface,
// enabling easy testing with mocks.
type FleetAdapter struct {
	service primary.FleetService
	out     io.Writer
}

// NewFleetAdapter creates a new FleetAdapter with the given service.
func NewFleetAdapter(service primary.FleetService, out io.Writer) *FleetAdapter {
	return &FleetAdapter{
		service: service,
		out:     out,
	}
}

// Status lists every registered project as a fleet table.
func (a *FleetAdapter) Status(ctx context.Context) ([]*primary.ProjectView, error) {
	projects, err := a.service.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects registered.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Register your first project:")
		fmt.Fprintln(a.out, "  warden register my-app ~/src/my-app")
		return projects, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tPHASE\tPID\tHEARTBEAT\tVERSION\tRESTARTS")
	fmt.Fprintln(w, "----\t------\t-----\t---\t---------\t-------\t--------")

	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.Name,
			p.Status,
			formatPhase(p.CurrentPhase),
			formatPid(p.OrchestratorPid),
			formatAge(p.Heartbeat),
			p.PivCommandsVersion,
			p.RestartCount,
		)
	}

	w.Flush()
	return projects, nil
}

// Show displays details for a single project.
func (a *FleetAdapter) Show(ctx context.Context, name string) (*primary.ProjectView, error) {
	project, err := a.service.GetProject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	fmt.Fprintf(a.out, "\nProject: %s\n", project.Name)
	fmt.Fprintf(a.out, "Path:       %s\n", project.Path)
	fmt.Fprintf(a.out, "Status:     %s\n", project.Status)
	fmt.Fprintf(a.out, "Phase:      %s\n", formatPhase(project.CurrentPhase))
	fmt.Fprintf(a.out, "PID:        %s\n", formatPid(project.OrchestratorPid))
	fmt.Fprintf(a.out, "Heartbeat:  %s\n", formatAge(project.Heartbeat))
	fmt.Fprintf(a.out, "Version:    %s\n", project.PivCommandsVersion)
	fmt.Fprintf(a.out, "Registered: %s\n", project.RegisteredAt)
	fmt.Fprintf(a.out, "Restarts:   %d\n", project.RestartCount)
	fmt.Fprintln(a.out)

	return project, nil
}

// Register adds a project to the fleet.
func (a *FleetAdapter) Register(ctx context.Context, name, path string) (*primary.ProjectView, error) {
	project, err := a.service.Register(ctx, primary.RegisterRequest{
		Name: name,
		Path: path,
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Registered project %s\n", project.Name)
	fmt.Fprintf(a.out, "  Path:    %s\n", project.Path)
	fmt.Fprintf(a.out, "  Version: %s\n", project.PivCommandsVersion)

	return project, nil
}

// Deregister removes a project from the fleet. Project files stay on
// disk.
func (a *FleetAdapter) Deregister(ctx context.Context, name string) error {
	if err := a.service.Deregister(ctx, name); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Deregistered project %s\n", name)
	fmt.Fprintln(a.out, "  Project files were left untouched.")

	return nil
}

// Start spawns the project's orchestrator.
func (a *FleetAdapter) Start(ctx context.Context, name string) (*primary.ProjectView, error) {
	project, err := a.service.StartOrchestrator(ctx, name)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Started orchestrator for %s (pid %s)\n", project.Name, formatPid(project.OrchestratorPid))
	fmt.Fprintf(a.out, "  Attach with: warden attach %s\n", project.Name)

	return project, nil
}

// Stop terminates the project's orchestrator.
func (a *FleetAdapter) Stop(ctx context.Context, name string) error {
	if err := a.service.StopOrchestrator(ctx, name); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Stopped orchestrator for %s\n", name)

	return nil
}

// AttachTarget resolves the tmux session name for a project.
func (a *FleetAdapter) AttachTarget(ctx context.Context, name string) (string, error) {
	return a.service.AttachTarget(ctx, name)
}

// formatPhase renders an optional phase number, "-" when unknown.
func formatPhase(phase *int) string {
	if phase == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *phase)
}

// formatPid renders an optional PID, "-" when no orchestrator runs.
func formatPid(pid *int) string {
	if pid == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *pid)
}

// formatAge renders an RFC3339 heartbeat as a relative age like "2m ago".
// Unparseable or missing heartbeats render as "-".
func formatAge(heartbeat string) string {
	if heartbeat == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, heartbeat)
	if err != nil {
		return heartbeat
	}

	age := time.Since(ts)
	switch {
	case age < 0:
		return "just now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
