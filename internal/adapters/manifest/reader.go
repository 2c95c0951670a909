// Package manifest reads per-project execution manifests.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Reader implements secondary.ManifestReader for manifests written by
// orchestrators at <project>/.piv/manifest.json.
type Reader struct{}

// NewReader creates a manifest reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read parses the manifest for the project rooted at projectPath.
// Returns (nil, nil) when no manifest exists yet.
func (r *Reader) Read(projectPath string) (*models.Manifest, error) {
	path := filepath.Join(projectPath, ".piv", "manifest.json")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest at %s: %w", path, err)
	}
	return &m, nil
}

// PendingFailureCount returns the number of unresolved failures recorded
// in the project's manifest. A missing manifest counts as zero.
func (r *Reader) PendingFailureCount(projectPath string) (int, error) {
	m, err := r.Read(projectPath)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, nil
	}
	return len(m.PendingFailures()), nil
}

// Ensure Reader implements the interface
var _ secondary.ManifestReader = (*Reader)(nil)
