// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import "context"

// ProjectStateRepository defines the secondary port for supervisor-side
// project state. This is registry-adjacent state the orchestrators never
// write: restart exhaustion tracking survives supervisor restarts here.
type ProjectStateRepository interface {
	// Get retrieves state for a project, or nil if none is recorded yet.
	Get(ctx context.Context, project string) (*ProjectStateRecord, error)

	// Upsert creates or replaces the state row for a project.
	Upsert(ctx context.Context, state *ProjectStateRecord) error

	// IncrementRestartCount bumps the restart counter and returns the new
	// value, creating the row if needed.
	IncrementRestartCount(ctx context.Context, project string) (int, error)

	// ResetRestartCount zeroes the restart counter after a project
	// recovers on its own or is explicitly restarted by an operator.
	ResetRestartCount(ctx context.Context, project string) error

	// Delete removes state for a deregistered project.
	Delete(ctx context.Context, project string) error

	// List retrieves all recorded project state.
	List(ctx context.Context) ([]*ProjectStateRecord, error)
}

// ProjectStateRecord represents supervisor-side state for one project.
type ProjectStateRecord struct {
	Project       string
	RestartCount  int
	LastStallType string // Empty string means no stall seen yet
	LastStallAt   string // Empty string means no stall seen yet
	UpdatedAt     string
}

// InterventionRepository defines the secondary port for intervention history.
type InterventionRepository interface {
	// Create persists a new intervention record.
	Create(ctx context.Context, intervention *InterventionRecord) error

	// GetByID retrieves an intervention by its ID.
	GetByID(ctx context.Context, id string) (*InterventionRecord, error)

	// List retrieves interventions matching the given filters.
	List(ctx context.Context, filters InterventionFilters) ([]*InterventionRecord, error)

	// CountByProject returns how many interventions a project has had.
	CountByProject(ctx context.Context, project string) (int, error)
}

// InterventionRecord represents one supervisor intervention as stored.
type InterventionRecord struct {
	ID          string
	Project     string
	StallType   string
	Confidence  string
	Action      string
	Outcome     string
	Details     string
	BugLocation string // Empty string means no diagnosis ran
	RootCause   string // Empty string means no diagnosis ran
	FilePath    string // Empty string means no file identified
	CostUsd     float64
	CreatedAt   string
}

// InterventionFilters contains filter options for querying interventions.
type InterventionFilters struct {
	Project string
	Action  string
	Limit   int
}

// FixAttemptRepository defines the secondary port for fix-attempt dedup.
// The escalation policy refuses to retry an identical fix that already
// failed once; signatures make "identical" explicit.
type FixAttemptRepository interface {
	// Create persists a fix attempt.
	Create(ctx context.Context, attempt *FixAttemptRecord) error

	// HasFailed reports whether a failed attempt with this signature exists.
	HasFailed(ctx context.Context, signature string) (bool, error)

	// ListByProject retrieves attempts for a project, newest first.
	ListByProject(ctx context.Context, project string) ([]*FixAttemptRecord, error)
}

// FixAttemptRecord represents one hot-fix attempt as stored.
type FixAttemptRecord struct {
	ID        string
	Project   string
	FilePath  string
	RootCause string
	Signature string // Hash of file path + root cause, see app.FixSignature
	Scope     string // "framework" or "project"
	Succeeded bool
	CreatedAt string
}

// PropagationRepository defines the secondary port for propagation receipts.
type PropagationRepository interface {
	// Create persists one per-target propagation receipt.
	Create(ctx context.Context, receipt *PropagationRecord) error

	// List retrieves receipts matching the given filters.
	List(ctx context.Context, filters PropagationFilters) ([]*PropagationRecord, error)
}

// PropagationRecord represents one per-target propagation outcome.
type PropagationRecord struct {
	ID          string
	Project     string
	RelPath     string
	Version     string
	Success     bool
	FilesCopied int
	Error       string // Empty string means success
	CreatedAt   string
}

// PropagationFilters contains filter options for querying receipts.
type PropagationFilters struct {
	Project string
	Limit   int
}
