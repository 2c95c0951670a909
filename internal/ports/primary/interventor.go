package primary

import "context"

// Bug location constants for diagnostic results.
const (
	BugLocationFramework     = "framework_bug"  // Shared command tree is at fault
	BugLocationProject       = "project_bug"    // Project's own code is at fault
	BugLocationHumanRequired = "human_required" // Not fixable by an automated edit
)

// Intervention outcome constants.
const (
	InterventionRecovered = "recovered"
	InterventionEscalated = "escalated"
	InterventionFailed    = "failed"
)

// InterventorService defines the primary port for automated diagnosis
// and remediation of stalled projects.
type InterventorService interface {
	// HandleStall runs the full pipeline for one stalled project:
	// memory recall, diagnosis, bug-location refinement, escalation
	// check, fix application, memory store and propagation. Session
	// failures degrade to escalation; they never surface as errors.
	HandleStall(ctx context.Context, req HandleStallRequest) (*InterventionReport, error)

	// Diagnose runs one read-only reasoning session against the stalled
	// project and parses its structured result. Any session failure
	// degrades to a human_required result with low confidence.
	Diagnose(ctx context.Context, req DiagnoseRequest) (*DiagnosticResult, error)

	// ClassifyBugLocation refines a diagnostic in place: credential
	// errors force human_required, a multi-project pattern forces
	// framework_bug, otherwise the file path prefix decides.
	ClassifyBugLocation(diagnostic *DiagnosticResult, concurrent []StallSighting) *DiagnosticResult

	// ApplyFrameworkHotFix runs an edit-capable session against the
	// shared framework tree, then validates and reverts on failure.
	ApplyFrameworkHotFix(ctx context.Context, diagnostic *DiagnosticResult) (*HotFixResult, error)

	// ApplyProjectFix is the same protocol scoped to the project's own
	// tree. No propagation ever follows a project fix.
	ApplyProjectFix(ctx context.Context, projectPath string, diagnostic *DiagnosticResult) (*HotFixResult, error)

	// ShouldEscalate applies the escalation policy: human_required
	// diagnoses, fixes that already failed once, and unactionable
	// low-confidence results all go to a human.
	ShouldEscalate(ctx context.Context, project string, diagnostic *DiagnosticResult) (bool, error)
}

// HandleStallRequest describes one stalled project entering the pipeline.
type HandleStallRequest struct {
	Project     string
	ProjectPath string
	StallType   string
	Confidence  string
	Details     string
	Phase       *int

	// Concurrent carries this cycle's other stall sightings for the
	// multi-project pattern check.
	Concurrent []StallSighting
}

// StallSighting is the slice of a classification the multi-project
// pattern check needs: which project stalled how, in which phase.
type StallSighting struct {
	Project   string
	Phase     *int
	StallType string
}

// DiagnoseRequest describes one diagnosis session.
type DiagnoseRequest struct {
	Project     string
	ProjectPath string
	StallType   string
	Details     string
	Phase       *int

	// MemoryContext is formatted prior-fix text, empty when memory is
	// unavailable or recalled nothing.
	MemoryContext string
}

// DiagnosticResult is the structured outcome of a diagnosis session.
type DiagnosticResult struct {
	BugLocation         string
	Confidence          string
	RootCause           string
	FilePath            string // Empty string means no file identified
	ErrorCategory       string
	MultiProjectPattern bool
	AffectedProjects    []string // Sorted project names, only for multi-project patterns
	SessionCostUsd      float64
}

// HotFixResult is the outcome of one fix session plus validation.
type HotFixResult struct {
	Success           bool
	FilePath          string
	LinesChanged      int
	ValidationPassed  bool
	RevertedOnFailure bool
	Details           string
	SessionCostUsd    float64
}

// InterventionReport summarizes one completed intervention.
type InterventionReport struct {
	ID               string
	Project          string
	Action           string
	Outcome          string // InterventionRecovered, InterventionEscalated or InterventionFailed
	Diagnostic       *DiagnosticResult
	Fix              *HotFixResult
	Escalated        bool
	EscalationReason string
	PropagatedTo     []string
}
