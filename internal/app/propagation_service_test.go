package app

import (
	"context"
	"errors"
	"testing"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/primary"
)

func newTestPropagationService(t *testing.T) (*PropagationServiceImpl, *mockRegistryStore, *mockFrameworkStore, *mockPropagationRepo) {
	t.Helper()
	registry := newMockRegistryStore()
	framework := newMockFrameworkStore()
	receipts := &mockPropagationRepo{}
	service := NewPropagationService(registry, framework, receipts)
	return service, registry, framework, receipts
}

func TestPropagationService_PropagateToAllTargets(t *testing.T) {
	service, registry, framework, receipts := newTestPropagationService(t)
	framework.sources["commands/execute.md"] = true
	registry.seedProject(&models.RegistryProject{Name: "beta", Path: "/tmp/beta", PivCommandsVersion: "old00001"})
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha", PivCommandsVersion: "old00001"})

	results, err := service.Propagate(context.Background(), primary.PropagateRequest{RelPath: "commands/execute.md"})

	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Empty target list expands to all projects, sorted
	if results[0].Project != "alpha" || results[1].Project != "beta" {
		t.Errorf("expected alpha then beta, got %s then %s", results[0].Project, results[1].Project)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("expected %s to succeed, got error %q", r.Project, r.Error)
		}
		if r.FilesCopied != 1 {
			t.Errorf("expected 1 file copied for %s, got %d", r.Project, r.FilesCopied)
		}
	}
	if registry.registry.Projects["alpha"].PivCommandsVersion != "ab12cd34" {
		t.Errorf("expected alpha version bumped, got %q", registry.registry.Projects["alpha"].PivCommandsVersion)
	}
	if registry.saves != 1 {
		t.Errorf("expected registry persisted once, got %d saves", registry.saves)
	}
	if len(receipts.receipts) != 2 {
		t.Errorf("expected 2 receipts, got %d", len(receipts.receipts))
	}
}

func TestPropagationService_MissingSourceIsolated(t *testing.T) {
	service, registry, framework, _ := newTestPropagationService(t)
	// Source never registered in the framework store
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha", PivCommandsVersion: "old00001"})
	registry.seedProject(&models.RegistryProject{Name: "beta", Path: "/tmp/beta", PivCommandsVersion: "old00001"})
	_ = framework

	results, err := service.Propagate(context.Background(), primary.PropagateRequest{RelPath: "commands/ghost.md"})

	if err != nil {
		t.Fatalf("expected batch to complete, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Success {
			t.Errorf("expected %s to fail", r.Project)
		}
		if r.Error != "Source file not found" {
			t.Errorf("expected 'Source file not found', got %q", r.Error)
		}
	}
	if registry.saves != 0 {
		t.Errorf("expected no registry save with zero successes, got %d", registry.saves)
	}
	if registry.registry.Projects["alpha"].PivCommandsVersion != "old00001" {
		t.Error("expected no version bump on failure")
	}
}

func TestPropagationService_OneFailureDoesNotAbortBatch(t *testing.T) {
	service, registry, framework, _ := newTestPropagationService(t)
	framework.sources["commands/execute.md"] = true
	framework.copyErrFor["/tmp/beta"] = errors.New("copy commands/execute.md: permission denied")
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha", PivCommandsVersion: "old00001"})
	registry.seedProject(&models.RegistryProject{Name: "beta", Path: "/tmp/beta", PivCommandsVersion: "old00001"})
	registry.seedProject(&models.RegistryProject{Name: "gamma", Path: "/tmp/gamma", PivCommandsVersion: "old00001"})

	results, err := service.Propagate(context.Background(), primary.PropagateRequest{
		RelPath: "commands/execute.md",
		Targets: []string{"alpha", "beta", "gamma"},
	})

	if err != nil {
		t.Fatalf("expected batch to complete, got %v", err)
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Errorf("expected success, failure, success; got %v, %v, %v", results[0].Success, results[1].Success, results[2].Success)
	}
	if results[1].Error == "" {
		t.Error("expected error message for failed target")
	}
	// Version bumps cover successes only
	if registry.registry.Projects["alpha"].PivCommandsVersion != "ab12cd34" {
		t.Error("expected alpha version bumped")
	}
	if registry.registry.Projects["beta"].PivCommandsVersion != "old00001" {
		t.Error("expected beta version untouched")
	}
	if registry.registry.Projects["gamma"].PivCommandsVersion != "ab12cd34" {
		t.Error("expected gamma version bumped")
	}
	if registry.saves != 1 {
		t.Errorf("expected registry persisted once, got %d saves", registry.saves)
	}
}

func TestPropagationService_UnknownTarget(t *testing.T) {
	service, registry, framework, _ := newTestPropagationService(t)
	framework.sources["commands/execute.md"] = true
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha"})

	results, err := service.Propagate(context.Background(), primary.PropagateRequest{
		RelPath: "commands/execute.md",
		Targets: []string{"ghost", "alpha"},
	})

	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if results[0].Success {
		t.Error("expected unregistered target to fail")
	}
	if results[0].Error != "Project not registered" {
		t.Errorf("expected 'Project not registered', got %q", results[0].Error)
	}
	if !results[1].Success {
		t.Errorf("expected registered target to succeed, got %q", results[1].Error)
	}
}

func TestPropagationService_SyncProject(t *testing.T) {
	service, registry, framework, receipts := newTestPropagationService(t)
	framework.listFiles = []string{"commands/execute.md", "commands/verify.md", "agents/reviewer.md"}
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha", PivCommandsVersion: "old00001"})

	result, err := service.SyncProject(context.Background(), "alpha")

	if err != nil {
		t.Fatalf("SyncProject failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.FilesCopied != 3 {
		t.Errorf("expected 3 files copied, got %d", result.FilesCopied)
	}
	if registry.registry.Projects["alpha"].PivCommandsVersion != "ab12cd34" {
		t.Error("expected version bumped after sync")
	}
	if len(receipts.receipts) != 1 || receipts.receipts[0].RelPath != "*" {
		t.Errorf("expected full-tree receipt, got %+v", receipts.receipts)
	}
}

func TestPropagationService_GetOutdated(t *testing.T) {
	service, registry, _, _ := newTestPropagationService(t)
	registry.seedProject(&models.RegistryProject{Name: "alpha", Path: "/tmp/alpha", PivCommandsVersion: "ab12cd34"})
	registry.seedProject(&models.RegistryProject{Name: "gamma", Path: "/tmp/gamma", PivCommandsVersion: "old00001"})
	registry.seedProject(&models.RegistryProject{Name: "beta", Path: "/tmp/beta", PivCommandsVersion: ""})

	outdated, err := service.GetOutdated(context.Background())

	if err != nil {
		t.Fatalf("GetOutdated failed: %v", err)
	}
	if len(outdated) != 2 {
		t.Fatalf("expected 2 outdated projects, got %d", len(outdated))
	}
	if outdated[0].Name != "beta" || outdated[1].Name != "gamma" {
		t.Errorf("expected beta then gamma, got %s then %s", outdated[0].Name, outdated[1].Name)
	}
}

func TestPropagationService_Revert(t *testing.T) {
	service, _, framework, _ := newTestPropagationService(t)

	if !service.Revert(context.Background(), "commands/execute.md", "/tmp/framework") {
		t.Error("expected revert to succeed")
	}
	if len(framework.reverted) != 1 || framework.reverted[0] != "/tmp/framework:commands/execute.md" {
		t.Errorf("expected revert call recorded, got %v", framework.reverted)
	}

	framework.revertErr = errors.New("not a repository")
	if service.Revert(context.Background(), "commands/execute.md", "/tmp/framework") {
		t.Error("expected revert to report false on error")
	}
}
