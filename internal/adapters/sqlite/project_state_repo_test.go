package sqlite_test

import (
	"context"
	"testing"

	"github.com/siphio/piv-warden/internal/adapters/sqlite"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

func TestProjectStateRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown project, got %+v", got)
	}
}

func TestProjectStateRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	t.Run("creates row when missing", func(t *testing.T) {
		err := repo.Upsert(ctx, &secondary.ProjectStateRecord{
			Project:       "alpha",
			RestartCount:  1,
			LastStallType: "session_hung",
			LastStallAt:   "2025-06-01T12:00:00Z",
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, err := repo.Get(ctx, "alpha")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected state row, got nil")
		}
		if got.RestartCount != 1 {
			t.Errorf("RestartCount = %d, want 1", got.RestartCount)
		}
		if got.LastStallType != "session_hung" {
			t.Errorf("LastStallType = %q, want session_hung", got.LastStallType)
		}
	})

	t.Run("replaces existing row", func(t *testing.T) {
		err := repo.Upsert(ctx, &secondary.ProjectStateRecord{
			Project:       "alpha",
			RestartCount:  3,
			LastStallType: "orchestrator_crashed",
			LastStallAt:   "2025-06-01T13:00:00Z",
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, _ := repo.Get(ctx, "alpha")
		if got.RestartCount != 3 {
			t.Errorf("RestartCount = %d, want 3", got.RestartCount)
		}
		if got.LastStallType != "orchestrator_crashed" {
			t.Errorf("LastStallType = %q, want orchestrator_crashed", got.LastStallType)
		}
	})
}

func TestProjectStateRepository_IncrementRestartCount(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	t.Run("creates row at one for new project", func(t *testing.T) {
		count, err := repo.IncrementRestartCount(ctx, "fresh")
		if err != nil {
			t.Fatalf("IncrementRestartCount failed: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("increments existing counter", func(t *testing.T) {
		seedProjectState(t, db, "beta", 2)

		count, err := repo.IncrementRestartCount(ctx, "beta")
		if err != nil {
			t.Fatalf("IncrementRestartCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("count = %d, want 3", count)
		}
	})
}

func TestProjectStateRepository_ResetRestartCount(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	seedProjectState(t, db, "alpha", 2)

	if err := repo.ResetRestartCount(ctx, "alpha"); err != nil {
		t.Fatalf("ResetRestartCount failed: %v", err)
	}

	got, _ := repo.Get(ctx, "alpha")
	if got.RestartCount != 0 {
		t.Errorf("RestartCount = %d, want 0", got.RestartCount)
	}

	// Resetting a project with no state row is a no-op.
	if err := repo.ResetRestartCount(ctx, "unknown"); err != nil {
		t.Errorf("ResetRestartCount on unknown project: %v", err)
	}
}

func TestProjectStateRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	seedProjectState(t, db, "alpha", 1)

	if err := repo.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, _ := repo.Get(ctx, "alpha")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestProjectStateRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectStateRepository(db)
	ctx := context.Background()

	seedProjectState(t, db, "beta", 1)
	seedProjectState(t, db, "alpha", 2)

	states, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if states[0].Project != "alpha" {
		t.Errorf("expected alpha first (sorted), got %q", states[0].Project)
	}
}
