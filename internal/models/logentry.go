package models

// ImprovementLogEntry is one append-only audit record of an intervention.
// Optional diagnosis fields stay empty for plain restart/escalate entries.
type ImprovementLogEntry struct {
	Timestamp    string
	Project      string
	Phase        *int
	StallType    string
	Action       string
	Outcome      string
	Details      string
	BugLocation  string
	RootCause    string
	FilePath     string
	FixApplied   bool
	PropagatedTo []string
}
