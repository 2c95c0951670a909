package secondary

import "context"

// ProcessController defines the secondary port for OS process probing and
// termination. Kept minimal so recovery logic tests without real PIDs.
type ProcessController interface {
	// Alive reports whether pid refers to a live process, using a
	// non-destructive existence probe.
	Alive(pid int) bool

	// Terminate sends a termination signal to pid. Terminating a process
	// that is already gone is not an error - restart must be idempotent.
	Terminate(pid int) error
}

// SessionHost defines the secondary port for hosting orchestrator
// processes. Orchestrators run detached inside tmux sessions so an
// operator can attach to any of them while the supervisor keeps running.
type SessionHost interface {
	// StartOrchestrator spawns the orchestrator command detached, rooted
	// at projectPath, and returns the PID of the spawned process.
	StartOrchestrator(ctx context.Context, project, projectPath, command string) (int, error)

	// StopOrchestrator tears down the project's session. Missing
	// sessions are not an error.
	StopOrchestrator(ctx context.Context, project string) error

	// HasSession reports whether a session for the project exists.
	HasSession(ctx context.Context, project string) bool

	// SessionName returns the tmux session name used for a project.
	SessionName(project string) string
}
