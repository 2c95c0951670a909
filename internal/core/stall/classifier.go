package stall

import (
	"fmt"
	"time"

	"github.com/siphio/piv-warden/internal/models"
)

// Prober checks whether a PID refers to a live process.
// This allows mocking in tests.
type Prober interface {
	Alive(pid int) bool
}

// ManifestSource reads a project's manifest for pending failure entries.
type ManifestSource interface {
	// PendingFailureCount returns the number of unresolved failures in the
	// manifest under projectPath. A missing or unreadable manifest is not
	// an error condition for classification; implementations return an
	// error only so the classifier can downgrade confidence.
	PendingFailureCount(projectPath string) (int, error)
}

// Classifier evaluates registry entries for stalls. All I/O is read-only
// and every failure mode downgrades rather than propagates, so Classify
// never returns an error.
type Classifier struct {
	Prober    Prober
	Manifests ManifestSource
}

// Classify returns nil for a healthy project, or a Classification
// describing the stall. Order of checks:
//
//  1. Fresh heartbeat (age strictly below staleAfter) means healthy.
//     A future-dated heartbeat also means healthy - clock skew must not
//     produce false positives. A missing or unparseable heartbeat counts
//     as maximally stale.
//  2. Dead or unrecorded orchestrator PID means the orchestrator crashed.
//  3. Alive with pending manifest failures means an execution error.
//  4. Alive with no manifest clues means the session hung.
func (c *Classifier) Classify(project *models.RegistryProject, now time.Time, staleAfter time.Duration) *Classification {
	ageMs := int64(-1)
	ageKnown := false
	if project.Heartbeat != "" {
		if ts, err := time.Parse(time.RFC3339, project.Heartbeat); err == nil {
			ageKnown = true
			ageMs = now.Sub(ts).Milliseconds()
			if ageMs < 0 {
				// Heartbeat from the future: clock skew, not a stall.
				return nil
			}
			if ageMs < staleAfter.Milliseconds() {
				return nil
			}
		}
	}

	if project.OrchestratorPid == nil {
		return &Classification{
			Project:        project,
			StallType:      TypeOrchestratorCrashed,
			Confidence:     ConfidenceHigh,
			Details:        "heartbeat stale and no orchestrator PID recorded",
			HeartbeatAgeMs: ageMs,
			HeartbeatKnown: ageKnown,
		}
	}

	pid := *project.OrchestratorPid
	if !c.Prober.Alive(pid) {
		return &Classification{
			Project:        project,
			StallType:      TypeOrchestratorCrashed,
			Confidence:     ConfidenceHigh,
			Details:        fmt.Sprintf("orchestrator process %d is not running", pid),
			HeartbeatAgeMs: ageMs,
			HeartbeatKnown: ageKnown,
		}
	}

	pending, err := c.Manifests.PendingFailureCount(project.Path)
	if err == nil && pending > 0 {
		return &Classification{
			Project:        project,
			StallType:      TypeExecutionError,
			Confidence:     ConfidenceHigh,
			Details:        fmt.Sprintf("%d pending failure(s) in manifest", pending),
			HeartbeatAgeMs: ageMs,
			HeartbeatKnown: ageKnown,
		}
	}

	return &Classification{
		Project:        project,
		StallType:      TypeSessionHung,
		Confidence:     ConfidenceLow,
		Details:        "process alive but no manifest clues",
		HeartbeatAgeMs: ageMs,
		HeartbeatKnown: ageKnown,
	}
}

// Healthy reports whether the heartbeat alone would pass the staleness
// check. Used by status rendering to color fleet rows without running a
// full classification.
func Healthy(heartbeat string, now time.Time, staleAfter time.Duration) bool {
	if heartbeat == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339, heartbeat)
	if err != nil {
		return false
	}
	age := now.Sub(ts)
	return age < 0 || age < staleAfter
}
