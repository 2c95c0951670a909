// Package primary defines the primary ports (driving interfaces) for the application.
package primary

import (
	"context"
	"time"
)

// MonitorService defines the primary port for the supervision loop.
type MonitorService interface {
	// RunCycle executes exactly one monitor cycle: read registry,
	// classify running projects, decide and execute recovery actions,
	// log interventions, persist the registry once.
	RunCycle(ctx context.Context) (*CycleStats, error)

	// Watch runs cycles on a periodic timer until ctx is cancelled.
	// Single-flight: a tick that arrives while a cycle is still running
	// is skipped, never queued.
	Watch(ctx context.Context, opts WatchOptions) error
}

// WatchOptions configures the periodic monitor.
type WatchOptions struct {
	// Interval between cycle starts. Zero means the configured default.
	Interval time.Duration

	// OnCycle, when set, receives each cycle's stats. Used by the CLI
	// to print per-cycle summaries.
	OnCycle func(stats *CycleStats)

	// OnError, when set, receives cycle failures. The watch loop keeps
	// running either way; a transient registry read error must not take
	// the supervisor down.
	OnError func(err error)
}

// CycleStats are the counters returned by one monitor cycle.
type CycleStats struct {
	ProjectsChecked        int
	Stalled                int
	Recovered              int
	Escalated              int
	InterventionsAttempted int
}
