// Package stall classifies unhealthy fleet projects from their registry state.
package stall

import "github.com/siphio/piv-warden/internal/models"

// Stall type constants for classification results.
const (
	TypeOrchestratorCrashed = "orchestrator_crashed" // Process behind the registered PID is gone
	TypeSessionHung         = "session_hung"         // Process alive but silent, no manifest clues
	TypeExecutionError      = "execution_error"      // Process alive with pending manifest failures
)

// Confidence tiers for classification results.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Classification describes why a running project is considered stalled.
// Computed fresh each cycle and never persisted directly.
type Classification struct {
	Project    *models.RegistryProject
	StallType  string
	Confidence string
	Details    string

	// HeartbeatAgeMs is how far behind the heartbeat was at classification
	// time. -1 when the project never recorded a heartbeat; check
	// HeartbeatKnown before treating the value as an age.
	HeartbeatAgeMs int64

	// HeartbeatKnown is false when no parseable heartbeat was ever
	// recorded, which counts as maximally stale.
	HeartbeatKnown bool
}
