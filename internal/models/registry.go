package models

// Project status values as written to the registry file.
// Orchestrators own these transitions; the supervisor only writes
// them during recovery (restart marks running, stop marks idle).
const (
	StatusIdle     = "idle"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// RegistryProject is one fleet member as persisted in registry.json.
// Heartbeat is RFC3339; empty string means the orchestrator never
// reported one. Nullable integers stay pointers so null round-trips.
type RegistryProject struct {
	Name               string `json:"name"`
	Path               string `json:"path"`
	Status             string `json:"status"`
	Heartbeat          string `json:"heartbeat"`
	CurrentPhase       *int   `json:"currentPhase"`
	PivCommandsVersion string `json:"pivCommandsVersion"`
	OrchestratorPid    *int   `json:"orchestratorPid"`
	RegisteredAt       string `json:"registeredAt"`
	LastCompletedPhase *int   `json:"lastCompletedPhase"`
}

// CentralRegistry is the whole fleet state file.
type CentralRegistry struct {
	Projects    map[string]*RegistryProject `json:"projects"`
	LastUpdated string                      `json:"lastUpdated"`
}

// NewRegistry returns an empty registry with an initialized project map.
func NewRegistry() *CentralRegistry {
	return &CentralRegistry{Projects: make(map[string]*RegistryProject)}
}

// Upsert adds or replaces a project entry, initializing the map if the
// registry was decoded from a file with no projects key.
func (r *CentralRegistry) Upsert(p *RegistryProject) {
	if r.Projects == nil {
		r.Projects = make(map[string]*RegistryProject)
	}
	r.Projects[p.Name] = p
}

// Running returns the projects with status "running", the only ones the
// monitor cycle classifies.
func (r *CentralRegistry) Running() []*RegistryProject {
	var out []*RegistryProject
	for _, p := range r.Projects {
		if p.Status == StatusRunning {
			out = append(out, p)
		}
	}
	return out
}
