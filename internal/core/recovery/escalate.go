package recovery

// Diagnostic values the escalation policy branches on. These mirror the
// wire values produced by diagnosis sessions.
const (
	diagnosisHumanRequired = "human_required"
	confidenceLow          = "low"
)

// EscalationDecision is the outcome of the escalation policy for one
// diagnostic.
type EscalationDecision struct {
	Escalate bool
	Reason   string
}

// ShouldEscalate applies the escalation policy to a diagnosis:
//
//  1. A human_required diagnosis always escalates.
//  2. A fix with this signature that already failed once escalates -
//     retrying an identical failed fix burns budget for nothing.
//  3. A low-confidence diagnosis with no file to act on escalates;
//     there is nothing an edit session could safely target.
//
// Everything else proceeds to an automated fix attempt.
func ShouldEscalate(bugLocation, confidence, filePath string, fixAlreadyFailed bool) EscalationDecision {
	if bugLocation == diagnosisHumanRequired {
		return EscalationDecision{Escalate: true, Reason: "diagnosis requires a human"}
	}
	if fixAlreadyFailed {
		return EscalationDecision{Escalate: true, Reason: "an identical fix already failed"}
	}
	if confidence == confidenceLow && filePath == "" {
		return EscalationDecision{Escalate: true, Reason: "low confidence and no file identified"}
	}
	return EscalationDecision{}
}
