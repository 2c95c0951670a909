package models

// Failure resolution values inside a project manifest.
const (
	ResolutionPending  = "pending"
	ResolutionResolved = "resolved"
)

// ManifestFailure is one failure entry from a project's .piv/manifest.json.
// Orchestrators write these; the supervisor only reads them.
type ManifestFailure struct {
	Phase      *int   `json:"phase"`
	Step       string `json:"step,omitempty"`
	Error      string `json:"error,omitempty"`
	Resolution string `json:"resolution"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// Manifest is the portion of a project manifest the supervisor consumes.
// Unknown fields are ignored on decode so orchestrator-side additions
// never break classification.
type Manifest struct {
	Project  string            `json:"project,omitempty"`
	Failures []ManifestFailure `json:"failures"`
}

// PendingFailures returns the failures still awaiting resolution.
func (m *Manifest) PendingFailures() []ManifestFailure {
	var out []ManifestFailure
	for _, f := range m.Failures {
		if f.Resolution == ResolutionPending {
			out = append(out, f)
		}
	}
	return out
}
