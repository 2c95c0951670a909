// Package sqlite_test contains integration tests for SQLite repositories.
//
// This file is the single point where the database schema is loaded for
// tests. All test setup functions use db.GetSchemaSQL() so tests run
// against the authoritative schema, preventing drift between test and
// production. Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siphio/piv-warden/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedProjectState inserts a state row and returns the project name.
func seedProjectState(t *testing.T, db *sql.DB, project string, restartCount int) string {
	t.Helper()
	if project == "" {
		project = "alpha"
	}
	_, err := db.Exec("INSERT INTO project_state (project, restart_count) VALUES (?, ?)", project, restartCount)
	if err != nil {
		t.Fatalf("failed to seed project state: %v", err)
	}
	return project
}

// seedIntervention inserts a test intervention and returns its ID.
func seedIntervention(t *testing.T, db *sql.DB, id, project, action string) string {
	t.Helper()
	if id == "" {
		id = "int-001"
	}
	if project == "" {
		project = "alpha"
	}
	if action == "" {
		action = "restart"
	}
	_, err := db.Exec(
		"INSERT INTO interventions (id, project, stall_type, action, outcome) VALUES (?, ?, 'orchestrator_crashed', ?, 'recovered')",
		id, project, action,
	)
	if err != nil {
		t.Fatalf("failed to seed intervention: %v", err)
	}
	return id
}

// seedFixAttempt inserts a test fix attempt and returns its ID.
func seedFixAttempt(t *testing.T, db *sql.DB, id, signature string, succeeded bool) string {
	t.Helper()
	if id == "" {
		id = "fix-001"
	}
	if signature == "" {
		signature = "sig-abc123"
	}
	_, err := db.Exec(
		"INSERT INTO fix_attempts (id, project, file_path, signature, scope, succeeded) VALUES (?, 'alpha', 'commands/plan.md', ?, 'framework', ?)",
		id, signature, succeeded,
	)
	if err != nil {
		t.Fatalf("failed to seed fix attempt: %v", err)
	}
	return id
}
