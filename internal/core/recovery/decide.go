// Package recovery maps stall classifications to supervisor actions.
package recovery

import (
	"fmt"

	"github.com/siphio/piv-warden/internal/core/stall"
)

// Action types for stalled projects.
const (
	ActionRestart  = "restart"  // Kill and respawn the orchestrator
	ActionDiagnose = "diagnose" // Run a diagnosis session before touching anything
	ActionEscalate = "escalate" // Hand the project to a human
)

// Action is the decision for one stalled project in one cycle.
type Action struct {
	Type         string
	Project      string
	StallType    string
	Details      string
	RestartCount int
}

// Decide maps a classification and the project's restart history to an
// action. Crashed and hung orchestrators are restarted until the attempt
// budget is exhausted, then escalated. Execution errors always go to
// diagnosis since a restart cannot fix a logic or data problem.
//
// Decide is total over the three stall types; any other value is a
// programming error and panics rather than silently defaulting.
func Decide(c *stall.Classification, restartCount, maxRestartAttempts int) Action {
	switch c.StallType {
	case stall.TypeOrchestratorCrashed, stall.TypeSessionHung:
		if restartCount < maxRestartAttempts {
			return Action{
				Type:         ActionRestart,
				Project:      c.Project.Name,
				StallType:    c.StallType,
				Details:      c.Details,
				RestartCount: restartCount,
			}
		}
		return Action{
			Type:         ActionEscalate,
			Project:      c.Project.Name,
			StallType:    c.StallType,
			Details:      fmt.Sprintf("restart budget exhausted after %d attempt(s): %s", restartCount, c.Details),
			RestartCount: restartCount,
		}

	case stall.TypeExecutionError:
		return Action{
			Type:         ActionDiagnose,
			Project:      c.Project.Name,
			StallType:    c.StallType,
			Details:      c.Details,
			RestartCount: restartCount,
		}

	default:
		panic(fmt.Sprintf("recovery: unknown stall type %q", c.StallType))
	}
}
