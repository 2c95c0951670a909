package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// FleetServiceImpl implements the FleetService interface.
type FleetServiceImpl struct {
	registry  secondary.RegistryStore
	stateRepo secondary.ProjectStateRepository
	host      secondary.SessionHost
	processes secondary.ProcessController
	framework secondary.FrameworkStore

	orchestratorCommand string
}

// NewFleetService creates a new FleetService with injected dependencies.
func NewFleetService(
	registry secondary.RegistryStore,
	stateRepo secondary.ProjectStateRepository,
	host secondary.SessionHost,
	processes secondary.ProcessController,
	framework secondary.FrameworkStore,
	orchestratorCommand string,
) *FleetServiceImpl {
	return &FleetServiceImpl{
		registry:            registry,
		stateRepo:           stateRepo,
		host:                host,
		processes:           processes,
		framework:           framework,
		orchestratorCommand: orchestratorCommand,
	}
}

// Register adds a project to the registry and seeds its local copy of
// the shared command tree.
func (s *FleetServiceImpl) Register(ctx context.Context, req primary.RegisterRequest) (*primary.ProjectView, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if req.Path == "" {
		return nil, fmt.Errorf("project path is required")
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project path is not a directory: %s", absPath)
	}

	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if _, exists := registry.Projects[req.Name]; exists {
		return nil, fmt.Errorf("project already registered: %s", req.Name)
	}

	// Seed the project's local command copy and manifest directory
	if _, err := s.framework.CopyAllToProject(ctx, absPath); err != nil {
		return nil, fmt.Errorf("failed to seed command tree: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(absPath, ".piv"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	version, err := s.framework.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework version: %w", err)
	}

	project := &models.RegistryProject{
		Name:               req.Name,
		Path:               absPath,
		Status:             models.StatusIdle,
		PivCommandsVersion: version,
		RegisteredAt:       time.Now().UTC().Format(time.RFC3339),
	}
	registry.Upsert(project)

	if err := s.registry.Save(ctx, registry); err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	return s.projectToView(project, 0), nil
}

// Deregister removes a project from the registry and drops its
// supervisor-side state. Project files are left untouched.
func (s *FleetServiceImpl) Deregister(ctx context.Context, name string) error {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	project, exists := registry.Projects[name]
	if !exists {
		return fmt.Errorf("project not found: %s", name)
	}

	// Best effort teardown of a still-running orchestrator
	if project.OrchestratorPid != nil {
		_ = s.processes.Terminate(*project.OrchestratorPid)
	}
	_ = s.host.StopOrchestrator(ctx, name)

	delete(registry.Projects, name)
	if err := s.registry.Save(ctx, registry); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	if err := s.stateRepo.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete project state: %w", err)
	}
	return nil
}

// StartOrchestrator spawns the project's orchestrator detached and
// records its PID in the registry.
func (s *FleetServiceImpl) StartOrchestrator(ctx context.Context, name string) (*primary.ProjectView, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	project, exists := registry.Projects[name]
	if !exists {
		return nil, fmt.Errorf("project not found: %s", name)
	}

	if project.OrchestratorPid != nil && s.processes.Alive(*project.OrchestratorPid) {
		return nil, fmt.Errorf("orchestrator already running for %s (pid %d)", name, *project.OrchestratorPid)
	}

	pid, err := s.host.StartOrchestrator(ctx, name, project.Path, s.orchestratorCommand)
	if err != nil {
		return nil, fmt.Errorf("failed to start orchestrator: %w", err)
	}

	// Stamp a fresh heartbeat so the new process gets a full staleness
	// window before it reports one itself.
	project.Status = models.StatusRunning
	project.OrchestratorPid = &pid
	project.Heartbeat = time.Now().UTC().Format(time.RFC3339)

	if err := s.registry.Save(ctx, registry); err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	if err := s.stateRepo.ResetRestartCount(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to reset restart count: %w", err)
	}

	return s.projectToView(project, 0), nil
}

// StopOrchestrator terminates the project's orchestrator and marks the
// project idle. Stopping an already-stopped project is not an error.
func (s *FleetServiceImpl) StopOrchestrator(ctx context.Context, name string) error {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	project, exists := registry.Projects[name]
	if !exists {
		return fmt.Errorf("project not found: %s", name)
	}

	if project.OrchestratorPid != nil {
		if err := s.processes.Terminate(*project.OrchestratorPid); err != nil {
			return fmt.Errorf("failed to terminate orchestrator: %w", err)
		}
	}
	if err := s.host.StopOrchestrator(ctx, name); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}

	project.Status = models.StatusIdle
	project.OrchestratorPid = nil

	if err := s.registry.Save(ctx, registry); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// GetProject retrieves one fleet member.
func (s *FleetServiceImpl) GetProject(ctx context.Context, name string) (*primary.ProjectView, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	project, exists := registry.Projects[name]
	if !exists {
		return nil, fmt.Errorf("project not found: %s", name)
	}

	return s.projectToView(project, s.restartCount(ctx, name)), nil
}

// ListProjects retrieves the whole fleet, sorted by name.
func (s *FleetServiceImpl) ListProjects(ctx context.Context) ([]*primary.ProjectView, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	counts := make(map[string]int)
	if states, err := s.stateRepo.List(ctx); err == nil {
		for _, st := range states {
			counts[st.Project] = st.RestartCount
		}
	}

	views := make([]*primary.ProjectView, 0, len(registry.Projects))
	for _, project := range registry.Projects {
		views = append(views, s.projectToView(project, counts[project.Name]))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

// AttachTarget returns the tmux session name for a project.
func (s *FleetServiceImpl) AttachTarget(ctx context.Context, name string) (string, error) {
	registry, err := s.registry.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load registry: %w", err)
	}
	if _, exists := registry.Projects[name]; !exists {
		return "", fmt.Errorf("project not found: %s", name)
	}
	return s.host.SessionName(name), nil
}

// Helper methods

func (s *FleetServiceImpl) restartCount(ctx context.Context, name string) int {
	state, err := s.stateRepo.Get(ctx, name)
	if err != nil || state == nil {
		return 0
	}
	return state.RestartCount
}

func (s *FleetServiceImpl) projectToView(p *models.RegistryProject, restartCount int) *primary.ProjectView {
	return &primary.ProjectView{
		Name:               p.Name,
		Path:               p.Path,
		Status:             p.Status,
		Heartbeat:          p.Heartbeat,
		CurrentPhase:       p.CurrentPhase,
		PivCommandsVersion: p.PivCommandsVersion,
		OrchestratorPid:    p.OrchestratorPid,
		RegisteredAt:       p.RegisteredAt,
		LastCompletedPhase: p.LastCompletedPhase,
		RestartCount:       restartCount,
	}
}

// Ensure FleetServiceImpl implements the interface
var _ primary.FleetService = (*FleetServiceImpl)(nil)
