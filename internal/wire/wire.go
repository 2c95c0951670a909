// Package wire provides dependency injection for the warden application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/siphio/piv-warden/internal/adapters/agent"
	cliadapter "github.com/siphio/piv-warden/internal/adapters/cli"
	"github.com/siphio/piv-warden/internal/adapters/framework"
	"github.com/siphio/piv-warden/internal/adapters/logfile"
	"github.com/siphio/piv-warden/internal/adapters/manifest"
	"github.com/siphio/piv-warden/internal/adapters/memory"
	"github.com/siphio/piv-warden/internal/adapters/notify"
	"github.com/siphio/piv-warden/internal/adapters/process"
	"github.com/siphio/piv-warden/internal/adapters/registry"
	"github.com/siphio/piv-warden/internal/adapters/sqlite"
	"github.com/siphio/piv-warden/internal/adapters/tmux"
	"github.com/siphio/piv-warden/internal/app"
	"github.com/siphio/piv-warden/internal/config"
	"github.com/siphio/piv-warden/internal/db"
	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

var (
	cfg                *config.Config
	fleetService       primary.FleetService
	monitorService     primary.MonitorService
	interventorService primary.InterventorService
	propagationService primary.PropagationService
	improvementService primary.ImprovementLogService
	memoryBackend      secondary.FixMemory
	once               sync.Once
)

// Cfg returns the loaded configuration.
func Cfg() *config.Config {
	once.Do(initServices)
	return cfg
}

// FleetService returns the singleton FleetService instance.
func FleetService() primary.FleetService {
	once.Do(initServices)
	return fleetService
}

// MonitorService returns the singleton MonitorService instance.
func MonitorService() primary.MonitorService {
	once.Do(initServices)
	return monitorService
}

// InterventorService returns the singleton InterventorService instance.
func InterventorService() primary.InterventorService {
	once.Do(initServices)
	return interventorService
}

// PropagationService returns the singleton PropagationService instance.
func PropagationService() primary.PropagationService {
	once.Do(initServices)
	return propagationService
}

// ImprovementLogService returns the singleton ImprovementLogService instance.
func ImprovementLogService() primary.ImprovementLogService {
	once.Do(initServices)
	return improvementService
}

// MemoryBackend returns the fix memory, or nil when memory is disabled
// or unreachable. Callers outside the app layer only ever probe health.
func MemoryBackend() secondary.FixMemory {
	once.Do(initServices)
	return memoryBackend
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	configPath, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("failed to resolve config path: %v", err)
	}
	cfg, err = config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Secondary adapters.
	registryStore, err := registry.NewStore("")
	if err != nil {
		log.Fatalf("failed to open registry: %v", err)
	}
	improvementLog, err := logfile.NewLog("")
	if err != nil {
		log.Fatalf("failed to open improvement log: %v", err)
	}
	frameworkStore, err := framework.NewStore(cfg.Framework.Root, cfg.Framework.ValidationCommands)
	if err != nil {
		log.Fatalf("failed to open framework tree: %v", err)
	}
	sessionHost, err := tmux.NewSessionHost()
	if err != nil {
		log.Fatalf("tmux is required to host orchestrators: %v", err)
	}

	stateRepo := sqlite.NewProjectStateRepository(database)
	interventionRepo := sqlite.NewInterventionRepository(database)
	fixAttemptRepo := sqlite.NewFixAttemptRepository(database)
	propagationRepo := sqlite.NewPropagationRepository(database)
	processes := process.NewController()
	manifests := manifest.NewReader()
	runner := agent.NewRunner(cfg.Sessions.AgentBinary)
	notifier := notify.NewWebhookNotifier()
	memoryBackend = connectMemory(cfg)

	// Primary services.
	propagationService = app.NewPropagationService(registryStore, frameworkStore, propagationRepo)
	interventorService = app.NewInterventorService(
		runner,
		frameworkStore,
		interventionRepo,
		fixAttemptRepo,
		improvementLog,
		notifier,
		app.NewMemoryContext(memoryBackend),
		propagationService,
		app.InterventorSettings{
			DiagnoseTimeout: cfg.DiagnoseTimeout(),
			FixTimeout:      cfg.FixTimeout(),
			MaxTurns:        cfg.Sessions.MaxTurns,
			MaxBudgetUsd:    cfg.Sessions.MaxBudgetUsd,
			NotifyWebhook:   cfg.Notify.WebhookURL,
		},
	)
	monitorService = app.NewMonitorService(
		registryStore,
		stateRepo,
		sessionHost,
		processes,
		manifests,
		interventionRepo,
		improvementLog,
		notifier,
		interventorService,
		app.MonitorSettings{
			StaleAfter:          cfg.StaleAfter(),
			CheckInterval:       cfg.CheckInterval(),
			MaxRestartAttempts:  cfg.MaxRestartAttempts,
			OrchestratorCommand: cfg.OrchestratorCommand,
			NotifyWebhook:       cfg.Notify.WebhookURL,
		},
	)
	fleetService = app.NewFleetService(
		registryStore,
		stateRepo,
		sessionHost,
		processes,
		frameworkStore,
		cfg.OrchestratorCommand,
	)
	improvementService = app.NewImprovementLogService(improvementLog)
}

// connectMemory builds the optional fix memory. Any failure disables
// memory for the run rather than blocking startup.
func connectMemory(cfg *config.Config) secondary.FixMemory {
	if !cfg.MemoryEnabled() {
		return nil
	}
	backend, err := memory.NewWeaviateMemory(cfg.Memory.Endpoint)
	if err != nil {
		log.Printf("memory disabled: %v", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.EnsureSchema(ctx); err != nil {
		log.Printf("memory disabled: %v", err)
		return nil
	}
	return backend
}

// FleetAdapter returns a new FleetAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func FleetAdapter() *cliadapter.FleetAdapter {
	return FleetAdapterWithOutput(os.Stdout)
}

// FleetAdapterWithOutput returns a new FleetAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func FleetAdapterWithOutput(out io.Writer) *cliadapter.FleetAdapter {
	once.Do(initServices)
	return cliadapter.NewFleetAdapter(fleetService, out)
}
