package secondary

import "context"

// MemoryHit is one recalled fix, ranked by similarity (highest first).
type MemoryHit struct {
	ID         string
	Text       string
	Similarity float64
	Metadata   map[string]string
}

// FixRecord is one past fix as stored in semantic memory. Written once
// per successful fix, never mutated.
type FixRecord struct {
	Content       string
	CustomID      string
	ContainerTag  string
	Metadata      map[string]string // error_category, phase, project, fix_type, severity, command, resolved
	EntityContext string
}

// FixMemory defines the secondary port for long-term fix memory.
//
// The memory backend is strictly optional and no operation may raise:
// every failure mode degrades to an empty or zero result, so the
// diagnosis pipeline behaves identically whether memory is absent,
// unreachable, or healthy. Callers hold a nil FixMemory when memory is
// not configured; wrap access in the app layer's nil-safe helpers.
type FixMemory interface {
	// Recall performs a ranked semantic search. An empty containerTag
	// searches across all projects. Backend errors yield an empty slice.
	Recall(ctx context.Context, query, containerTag string, limit int) []MemoryHit

	// Store persists a fix record and returns its ID, or "" on any
	// failure. A storage failure must never fail the fix it describes.
	Store(ctx context.Context, record *FixRecord) string

	// CheckHealth probes backend connectivity, best effort.
	CheckHealth(ctx context.Context) bool
}
