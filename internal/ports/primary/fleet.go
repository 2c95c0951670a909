package primary

import "context"

// FleetService defines the primary port for fleet membership and
// orchestrator lifecycle operations.
type FleetService interface {
	// Register adds a project to the registry and seeds its local copy
	// of the shared command tree.
	Register(ctx context.Context, req RegisterRequest) (*ProjectView, error)

	// Deregister removes a project from the registry and drops its
	// supervisor-side state. Project files are left untouched.
	Deregister(ctx context.Context, name string) error

	// StartOrchestrator spawns the project's orchestrator detached and
	// records its PID in the registry. Refuses if one is already running.
	StartOrchestrator(ctx context.Context, name string) (*ProjectView, error)

	// StopOrchestrator terminates the project's orchestrator and marks
	// the project idle. Stopping an already-stopped project is not an
	// error.
	StopOrchestrator(ctx context.Context, name string) error

	// GetProject retrieves one fleet member.
	GetProject(ctx context.Context, name string) (*ProjectView, error)

	// ListProjects retrieves the whole fleet, sorted by name.
	ListProjects(ctx context.Context) ([]*ProjectView, error)

	// AttachTarget returns the tmux session name for a project, for
	// operators attaching a terminal to a live orchestrator.
	AttachTarget(ctx context.Context, name string) (string, error)
}

// RegisterRequest contains the data needed to register a project.
type RegisterRequest struct {
	Name string
	Path string
}

// ProjectView represents a fleet member at the port boundary, combining
// registry fields with supervisor-side state.
type ProjectView struct {
	Name               string
	Path               string
	Status             string
	Heartbeat          string
	CurrentPhase       *int
	PivCommandsVersion string
	OrchestratorPid    *int
	RegisteredAt       string
	LastCompletedPhase *int
	RestartCount       int
}
