package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// PropagationServiceImpl implements the PropagationService interface.
type PropagationServiceImpl struct {
	registry  secondary.RegistryStore
	framework secondary.FrameworkStore
	receipts  secondary.PropagationRepository
}

// NewPropagationService creates a new PropagationService with injected
// dependencies.
func NewPropagationService(
	registry secondary.RegistryStore,
	framework secondary.FrameworkStore,
	receipts secondary.PropagationRepository,
) *PropagationServiceImpl {
	return &PropagationServiceImpl{
		registry:  registry,
		framework: framework,
		receipts:  receipts,
	}
}

// Propagate copies the canonical file at relPath into each target
// project independently. One project's failure never aborts the batch;
// the registry version bump covers successes only and is persisted
// exactly once after the whole batch.
func (s *PropagationServiceImpl) Propagate(ctx context.Context, req primary.PropagateRequest) ([]*primary.PropagationResult, error) {
	if req.RelPath == "" {
		return nil, fmt.Errorf("relative path is required")
	}

	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	version, err := s.framework.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework version: %w", err)
	}

	targets := req.Targets
	if len(targets) == 0 {
		for name := range registry.Projects {
			targets = append(targets, name)
		}
		sort.Strings(targets)
	}

	results := make([]*primary.PropagationResult, 0, len(targets))
	updated := false
	for _, target := range targets {
		result := &primary.PropagationResult{Project: target}
		results = append(results, result)

		project, exists := registry.Projects[target]
		if !exists {
			result.Error = "Project not registered"
			s.recordReceipt(ctx, req.RelPath, version, result)
			continue
		}
		if !s.framework.SourceExists(req.RelPath) {
			result.Error = "Source file not found"
			s.recordReceipt(ctx, req.RelPath, version, result)
			continue
		}

		copied, err := s.framework.CopyToProject(ctx, req.RelPath, project.Path)
		if err != nil {
			result.Error = err.Error()
			s.recordReceipt(ctx, req.RelPath, version, result)
			continue
		}

		result.Success = true
		result.FilesCopied = copied
		project.PivCommandsVersion = version
		updated = true
		s.recordReceipt(ctx, req.RelPath, version, result)
	}

	if updated {
		if err := s.registry.Save(ctx, registry); err != nil {
			return results, fmt.Errorf("failed to save registry: %w", err)
		}
	}
	return results, nil
}

// SyncProject copies the entire canonical command tree into one project.
func (s *PropagationServiceImpl) SyncProject(ctx context.Context, name string) (*primary.PropagationResult, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	project, exists := registry.Projects[name]
	if !exists {
		return nil, fmt.Errorf("project not found: %s", name)
	}

	version, err := s.framework.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework version: %w", err)
	}

	result := &primary.PropagationResult{Project: name}
	copied, err := s.framework.CopyAllToProject(ctx, project.Path)
	if err != nil {
		result.Error = err.Error()
		s.recordReceipt(ctx, "*", version, result)
		return result, nil
	}

	result.Success = true
	result.FilesCopied = copied
	project.PivCommandsVersion = version
	s.recordReceipt(ctx, "*", version, result)

	if err := s.registry.Save(ctx, registry); err != nil {
		return result, fmt.Errorf("failed to save registry: %w", err)
	}
	return result, nil
}

// GetOutdated returns the projects whose pivCommandsVersion differs from
// the canonical tree's current version, sorted by name.
func (s *PropagationServiceImpl) GetOutdated(ctx context.Context) ([]*primary.ProjectView, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	version, err := s.framework.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework version: %w", err)
	}

	var outdated []*primary.ProjectView
	for _, project := range registry.Projects {
		if project.PivCommandsVersion == version {
			continue
		}
		outdated = append(outdated, &primary.ProjectView{
			Name:               project.Name,
			Path:               project.Path,
			Status:             project.Status,
			Heartbeat:          project.Heartbeat,
			CurrentPhase:       project.CurrentPhase,
			PivCommandsVersion: project.PivCommandsVersion,
			OrchestratorPid:    project.OrchestratorPid,
			RegisteredAt:       project.RegisteredAt,
			LastCompletedPhase: project.LastCompletedPhase,
		})
	}
	sort.Slice(outdated, func(i, j int) bool { return outdated[i].Name < outdated[j].Name })
	return outdated, nil
}

// Revert restores relPath inside treeRoot to its last committed content.
// Returns false on any underlying error, never panics.
func (s *PropagationServiceImpl) Revert(ctx context.Context, relPath, treeRoot string) bool {
	return s.framework.RevertFile(ctx, treeRoot, relPath) == nil
}

// recordReceipt persists one per-target receipt, best effort. Receipts
// are an audit convenience; losing one never fails a propagation.
func (s *PropagationServiceImpl) recordReceipt(ctx context.Context, relPath, version string, result *primary.PropagationResult) {
	_ = s.receipts.Create(ctx, &secondary.PropagationRecord{
		ID:          "PROP-" + uuid.NewString()[:8],
		Project:     result.Project,
		RelPath:     relPath,
		Version:     version,
		Success:     result.Success,
		FilesCopied: result.FilesCopied,
		Error:       result.Error,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ensure PropagationServiceImpl implements the interface
var _ primary.PropagationService = (*PropagationServiceImpl)(nil)
