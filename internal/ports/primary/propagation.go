package primary

import "context"

// PropagationService defines the primary port for distributing validated
// framework fixes across the fleet.
type PropagationService interface {
	// Propagate copies the canonical file at relPath into each target
	// project independently, then bumps pivCommandsVersion for every
	// success and persists the registry once. One project's failure
	// never aborts the batch. An empty target list means every
	// registered project.
	Propagate(ctx context.Context, req PropagateRequest) ([]*PropagationResult, error)

	// SyncProject copies the entire canonical command tree into one
	// project, used when registering new fleet members.
	SyncProject(ctx context.Context, project string) (*PropagationResult, error)

	// GetOutdated returns the projects whose pivCommandsVersion differs
	// from the canonical tree's current version.
	GetOutdated(ctx context.Context) ([]*ProjectView, error)

	// Revert restores relPath inside treeRoot to its last committed
	// content. Returns false on any underlying error, never panics.
	Revert(ctx context.Context, relPath, treeRoot string) bool
}

// PropagateRequest names the file and targets for one propagation.
type PropagateRequest struct {
	RelPath string
	Targets []string // Empty means all registered projects
}

// PropagationResult is one per-target outcome. Failures are isolated:
// a result row, never an aborted batch.
type PropagationResult struct {
	Project     string
	Success     bool
	FilesCopied int
	Error       string // Empty string means success
}
