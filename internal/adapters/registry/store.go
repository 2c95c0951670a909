// Package registry persists the shared fleet registry as a JSON file.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Store implements secondary.RegistryStore on top of a single JSON file.
// Orchestrators write their own heartbeat entries into the same file, so
// every load re-reads from disk rather than caching.
type Store struct {
	path string
}

// NewStore creates a registry store. If path is empty, defaults to
// ~/.piv/registry.json.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".piv", "registry.json")
	}
	return &Store{path: path}, nil
}

// Load reads the registry from disk. A missing file or one that fails to
// parse yields an empty registry - a damaged registry must never wedge
// the monitor loop.
func (s *Store) Load(ctx context.Context) (*models.CentralRegistry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return models.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg := models.NewRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		return models.NewRegistry(), nil
	}
	if reg.Projects == nil {
		reg.Projects = make(map[string]*models.RegistryProject)
	}
	return reg, nil
}

// Save atomically replaces the registry file. The registry is written to
// a temp file in the same directory and renamed into place, so readers
// never observe a partial write. LastUpdated is refreshed on every save.
func (s *Store) Save(ctx context.Context, registry *models.CentralRegistry) error {
	registry.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// Ensure Store implements the interface
var _ secondary.RegistryStore = (*Store)(nil)
