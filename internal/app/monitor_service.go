package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/siphio/piv-warden/internal/core/recovery"
	"github.com/siphio/piv-warden/internal/core/stall"
	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// MonitorSettings carries the supervision knobs the monitor reads from
// configuration.
type MonitorSettings struct {
	StaleAfter          time.Duration
	CheckInterval       time.Duration
	MaxRestartAttempts  int
	OrchestratorCommand string
	NotifyWebhook       string
}

// MonitorServiceImpl implements the MonitorService interface.
type MonitorServiceImpl struct {
	registry      secondary.RegistryStore
	stateRepo     secondary.ProjectStateRepository
	host          secondary.SessionHost
	processes     secondary.ProcessController
	manifests     secondary.ManifestReader
	interventions secondary.InterventionRepository
	log           secondary.ImprovementLog
	notifier      secondary.Notifier
	interventor   primary.InterventorService
	settings      MonitorSettings
}

// NewMonitorService creates a new monitor service.
func NewMonitorService(
	registry secondary.RegistryStore,
	stateRepo secondary.ProjectStateRepository,
	host secondary.SessionHost,
	processes secondary.ProcessController,
	manifests secondary.ManifestReader,
	interventions secondary.InterventionRepository,
	log secondary.ImprovementLog,
	notifier secondary.Notifier,
	interventor primary.InterventorService,
	settings MonitorSettings,
) *MonitorServiceImpl {
	return &MonitorServiceImpl{
		registry:      registry,
		stateRepo:     stateRepo,
		host:          host,
		processes:     processes,
		manifests:     manifests,
		interventions: interventions,
		log:           log,
		notifier:      notifier,
		interventor:   interventor,
		settings:      settings,
	}
}

// registryUpdates collects per-project mutations made during a cycle.
// They are replayed onto a fresh registry load before the single save,
// because a diagnosis-path propagation rewrites the registry on disk
// mid-cycle and a blind save of the cycle-start snapshot would undo its
// version bumps.
type registryUpdates map[string][]func(*models.RegistryProject)

func (u registryUpdates) add(project string, apply func(*models.RegistryProject)) {
	u[project] = append(u[project], apply)
}

func (u registryUpdates) applyTo(registry *models.CentralRegistry) {
	for name, fns := range u {
		project, ok := registry.Projects[name]
		if !ok {
			continue
		}
		for _, apply := range fns {
			apply(project)
		}
	}
}

// RunCycle executes exactly one monitor cycle.
func (s *MonitorServiceImpl) RunCycle(ctx context.Context) (*primary.CycleStats, error) {
	stats := &primary.CycleStats{}

	registry, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	running := registry.Running()
	sort.Slice(running, func(i, j int) bool { return running[i].Name < running[j].Name })
	stats.ProjectsChecked = len(running)

	// 1. Classify the whole fleet before acting, so every diagnosis in
	// this cycle can see the other projects' stalls.
	classifier := &stall.Classifier{Prober: s.processes, Manifests: s.manifests}
	now := time.Now().UTC()
	var stalled []*stall.Classification
	for _, project := range running {
		if c := classifier.Classify(project, now, s.settings.StaleAfter); c != nil {
			stalled = append(stalled, c)
		}
	}
	stats.Stalled = len(stalled)

	sightings := make([]primary.StallSighting, 0, len(stalled))
	for _, c := range stalled {
		sightings = append(sightings, primary.StallSighting{
			Project:   c.Project.Name,
			Phase:     c.Project.CurrentPhase,
			StallType: c.StallType,
		})
	}

	// 2. Decide and execute per project. One project's failure never
	// aborts the rest of the cycle.
	updates := make(registryUpdates)
	for _, c := range stalled {
		stats.InterventionsAttempted++
		s.rememberStall(ctx, c)

		action := recovery.Decide(c, s.restartCountFor(ctx, c.Project.Name), s.settings.MaxRestartAttempts)
		switch action.Type {
		case recovery.ActionRestart:
			if s.restartProject(ctx, c, updates) {
				stats.Recovered++
			}

		case recovery.ActionDiagnose:
			switch s.diagnoseProject(ctx, c, othersFor(sightings, c.Project.Name)) {
			case primary.InterventionRecovered:
				stats.Recovered++
			case primary.InterventionEscalated:
				stats.Escalated++
				s.parkProject(c.Project.Name, updates)
			}

		case recovery.ActionEscalate:
			s.escalateProject(ctx, c, action.Details)
			stats.Escalated++
			s.parkProject(c.Project.Name, updates)
		}
	}

	// 3. Persist the registry once, onto fresh state.
	if len(updates) == 0 {
		return stats, nil
	}
	fresh, err := s.registry.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to reload registry: %w", err)
	}
	updates.applyTo(fresh)
	if err := s.registry.Save(ctx, fresh); err != nil {
		return stats, fmt.Errorf("failed to persist registry: %w", err)
	}
	return stats, nil
}

// Watch runs cycles on a periodic timer until ctx is cancelled.
func (s *MonitorServiceImpl) Watch(ctx context.Context, opts primary.WatchOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = s.settings.CheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stats, err := s.RunCycle(ctx)
		if err != nil {
			if opts.OnError != nil {
				opts.OnError(err)
			}
		} else if opts.OnCycle != nil {
			opts.OnCycle(stats)
		}

		// A tick that fired while the cycle ran is dropped, not queued:
		// a slow cycle must not trigger a catch-up burst.
		select {
		case <-ticker.C:
			log.Printf("[Warden] dropping tick: previous cycle still running")
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// restartProject kills the stale orchestrator and spawns a fresh one.
// Returns true when the new process is up.
func (s *MonitorServiceImpl) restartProject(ctx context.Context, c *stall.Classification, updates registryUpdates) bool {
	project := c.Project
	if project.OrchestratorPid != nil {
		// Terminating an already-dead PID is a no-op.
		_ = s.processes.Terminate(*project.OrchestratorPid)
	}

	count, err := s.stateRepo.IncrementRestartCount(ctx, project.Name)
	if err != nil {
		count = -1
	}

	pid, err := s.host.StartOrchestrator(ctx, project.Name, project.Path, s.settings.OrchestratorCommand)
	if err != nil {
		s.recordIntervention(ctx, c, recovery.ActionRestart, primary.InterventionFailed,
			fmt.Sprintf("restart failed: %v", err))
		return false
	}

	heartbeat := time.Now().UTC().Format(time.RFC3339)
	updates.add(project.Name, func(p *models.RegistryProject) {
		p.Status = models.StatusRunning
		p.OrchestratorPid = &pid
		p.Heartbeat = heartbeat
	})

	details := fmt.Sprintf("restarted orchestrator (pid %d) after %s", pid, c.StallType)
	if count > 0 {
		details = fmt.Sprintf("restart %d/%d: spawned pid %d after %s", count, s.settings.MaxRestartAttempts, pid, c.StallType)
	}
	s.recordIntervention(ctx, c, recovery.ActionRestart, primary.InterventionRecovered, details)
	return true
}

// diagnoseProject hands the stall to the interventor and returns the
// intervention outcome. The interventor writes its own audit records;
// only a pipeline error before any record falls back to us.
func (s *MonitorServiceImpl) diagnoseProject(ctx context.Context, c *stall.Classification, others []primary.StallSighting) string {
	report, err := s.interventor.HandleStall(ctx, primary.HandleStallRequest{
		Project:     c.Project.Name,
		ProjectPath: c.Project.Path,
		StallType:   c.StallType,
		Confidence:  c.Confidence,
		Details:     c.Details,
		Phase:       c.Project.CurrentPhase,
		Concurrent:  others,
	})
	if err != nil {
		s.recordIntervention(ctx, c, recovery.ActionDiagnose, primary.InterventionFailed,
			fmt.Sprintf("diagnosis pipeline error: %v", err))
		return primary.InterventionFailed
	}
	return report.Outcome
}

// escalateProject notifies a human that the restart budget is exhausted.
func (s *MonitorServiceImpl) escalateProject(ctx context.Context, c *stall.Classification, details string) {
	if s.notifier != nil && s.settings.NotifyWebhook != "" {
		text := fmt.Sprintf("Project %q needs a human: %s\nStall: %s (%s)\n",
			c.Project.Name, details, c.StallType, c.Details)
		_ = s.notifier.Send(ctx, s.settings.NotifyWebhook, text)
	}
	s.recordIntervention(ctx, c, recovery.ActionEscalate, primary.InterventionEscalated, details)
}

// parkProject marks an escalated project so later cycles stop burning
// diagnosis sessions on it. An operator start clears the state.
func (s *MonitorServiceImpl) parkProject(name string, updates registryUpdates) {
	updates.add(name, func(p *models.RegistryProject) {
		p.Status = models.StatusError
	})
}

func (s *MonitorServiceImpl) restartCountFor(ctx context.Context, project string) int {
	state, err := s.stateRepo.Get(ctx, project)
	if err != nil || state == nil {
		return 0
	}
	return state.RestartCount
}

// rememberStall stamps the latest stall onto the project's supervisor
// state, best effort.
func (s *MonitorServiceImpl) rememberStall(ctx context.Context, c *stall.Classification) {
	state, err := s.stateRepo.Get(ctx, c.Project.Name)
	if err != nil || state == nil {
		state = &secondary.ProjectStateRecord{Project: c.Project.Name}
	}
	state.LastStallType = c.StallType
	state.LastStallAt = time.Now().UTC().Format(time.RFC3339)
	_ = s.stateRepo.Upsert(ctx, state)
}

// recordIntervention writes the audit trail for restart and escalate
// actions. Diagnose actions are recorded by the interventor itself, so
// each intervention lands exactly one log entry.
func (s *MonitorServiceImpl) recordIntervention(ctx context.Context, c *stall.Classification, action, outcome, details string) {
	now := time.Now().UTC().Format(time.RFC3339)
	_ = s.interventions.Create(ctx, &secondary.InterventionRecord{
		ID:         "INT-" + uuid.NewString()[:8],
		Project:    c.Project.Name,
		StallType:  c.StallType,
		Confidence: c.Confidence,
		Action:     action,
		Outcome:    outcome,
		Details:    details,
		CreatedAt:  now,
	})
	s.log.Append(&models.ImprovementLogEntry{
		Timestamp: now,
		Project:   c.Project.Name,
		Phase:     c.Project.CurrentPhase,
		StallType: c.StallType,
		Action:    action,
		Outcome:   outcome,
		Details:   details,
	})
}

// othersFor returns every sighting except the named project's own.
func othersFor(sightings []primary.StallSighting, project string) []primary.StallSighting {
	var others []primary.StallSighting
	for _, s := range sightings {
		if s.Project != project {
			others = append(others, s)
		}
	}
	return others
}

// Verify interface compliance at compile time.
var _ primary.MonitorService = (*MonitorServiceImpl)(nil)
