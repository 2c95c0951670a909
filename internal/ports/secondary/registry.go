package secondary

import (
	"context"

	"github.com/siphio/piv-warden/internal/models"
)

// RegistryStore defines the secondary port for the shared fleet registry
// file. The file is also written by orchestrators (heartbeats), so the
// store trades in the wire structs directly rather than private records.
type RegistryStore interface {
	// Load reads the registry. A missing file or a file that fails to
	// parse yields an empty registry, never an error - the supervisor
	// must stay operable even when its own state is damaged. Errors are
	// reserved for I/O failures that reading cannot recover from.
	Load(ctx context.Context) (*models.CentralRegistry, error)

	// Save atomically replaces the registry file (write temp, then
	// rename) and refreshes lastUpdated. A crash mid-write never leaves
	// a partial file behind.
	Save(ctx context.Context, registry *models.CentralRegistry) error

	// Path returns the registry file location, for diagnostics.
	Path() string
}

// ManifestReader defines the secondary port for per-project manifests.
// Manifests are read-only from the supervisor's perspective.
type ManifestReader interface {
	// Read parses the manifest under projectPath. A missing manifest
	// returns (nil, nil); a corrupt one returns an error so callers can
	// decide how much to trust the absence of clues.
	Read(projectPath string) (*models.Manifest, error)

	// PendingFailureCount returns the number of unresolved failures in
	// the manifest under projectPath.
	PendingFailureCount(projectPath string) (int, error)
}
