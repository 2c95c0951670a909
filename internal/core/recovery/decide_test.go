package recovery

import (
	"testing"

	"github.com/siphio/piv-warden/internal/core/stall"
	"github.com/siphio/piv-warden/internal/models"
)

func classification(stallType string) *stall.Classification {
	return &stall.Classification{
		Project:   &models.RegistryProject{Name: "alpha", Path: "/projects/alpha"},
		StallType: stallType,
		Details:   "test stall",
	}
}

func TestDecide_RestartUntilBudgetExhausted(t *testing.T) {
	tests := []struct {
		name         string
		stallType    string
		restartCount int
		want         string
	}{
		{name: "crashed first time", stallType: stall.TypeOrchestratorCrashed, restartCount: 0, want: ActionRestart},
		{name: "crashed below budget", stallType: stall.TypeOrchestratorCrashed, restartCount: 1, want: ActionRestart},
		{name: "crashed at budget", stallType: stall.TypeOrchestratorCrashed, restartCount: 2, want: ActionEscalate},
		{name: "hung first time", stallType: stall.TypeSessionHung, restartCount: 0, want: ActionRestart},
		{name: "hung at budget", stallType: stall.TypeSessionHung, restartCount: 2, want: ActionEscalate},
		{name: "hung over budget", stallType: stall.TypeSessionHung, restartCount: 5, want: ActionEscalate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(classification(tt.stallType), tt.restartCount, 2)
			if got.Type != tt.want {
				t.Errorf("Decide() = %q, want %q", got.Type, tt.want)
			}
			if got.Project != "alpha" {
				t.Errorf("expected project alpha, got %q", got.Project)
			}
			if got.RestartCount != tt.restartCount {
				t.Errorf("expected restart count %d, got %d", tt.restartCount, got.RestartCount)
			}
		})
	}
}

func TestDecide_ExecutionErrorAlwaysDiagnosed(t *testing.T) {
	for _, count := range []int{0, 2, 10} {
		got := Decide(classification(stall.TypeExecutionError), count, 2)
		if got.Type != ActionDiagnose {
			t.Errorf("restartCount=%d: Decide() = %q, want %q", count, got.Type, ActionDiagnose)
		}
	}
}

func TestDecide_UnknownStallTypePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for unknown stall type")
		}
	}()
	Decide(classification("melted"), 0, 2)
}
