package secondary

import (
	"context"
	"time"
)

// SessionRequest describes one bounded reasoning session.
type SessionRequest struct {
	WorkDir      string   // Filesystem root the session is scoped to
	Prompt       string   // Full prompt text
	AllowedTools []string // Tool names the session may use
	MaxTurns     int
	MaxBudgetUsd float64
	Timeout      time.Duration
}

// SessionResult is the terminal output of a reasoning session.
type SessionResult struct {
	Output     string  // Final message text, expected to embed a JSON result
	CostUsd    float64 // Reported spend, 0 when unknown
	TurnsUsed  int
	DurationMs int64
}

// SessionRunner defines the secondary port for reasoning-agent sessions.
// The agent itself is an opaque external capability; the supervisor only
// ever sees the request/result contract.
type SessionRunner interface {
	// Run executes one session to completion. Timeouts, budget overruns
	// and stream failures surface as errors; the caller decides how to
	// degrade.
	Run(ctx context.Context, req SessionRequest) (*SessionResult, error)
}

// Notifier defines the secondary port for human escalation messages.
type Notifier interface {
	// Send delivers formatted text to the configured destination.
	Send(ctx context.Context, destination, text string) error
}
