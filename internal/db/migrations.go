package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_supervisor_state",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_propagation_receipts",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_cost_tracking_to_interventions",
		Up:      migrationV3,
	},
}

// RunMigrations runs all pending migrations
func RunMigrations() error {
	db, err := GetDB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	// Create schema_version table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Get current schema version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		fmt.Printf("Running migration %d: %s\n", migration.Version, migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(db); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		fmt.Printf("✓ Migration %d completed\n", migration.Version)
	}

	return nil
}

// migrationV1 creates the original supervisor state tables.
func migrationV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS project_state (
			project TEXT PRIMARY KEY,
			restart_count INTEGER NOT NULL DEFAULT 0,
			last_stall_type TEXT CHECK(last_stall_type IN ('orchestrator_crashed', 'session_hung', 'execution_error')),
			last_stall_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS interventions (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			stall_type TEXT NOT NULL CHECK(stall_type IN ('orchestrator_crashed', 'session_hung', 'execution_error')),
			confidence TEXT CHECK(confidence IN ('low', 'medium', 'high')),
			action TEXT NOT NULL CHECK(action IN ('restart', 'diagnose', 'escalate')),
			outcome TEXT NOT NULL CHECK(outcome IN ('recovered', 'escalated', 'failed')),
			details TEXT,
			bug_location TEXT CHECK(bug_location IN ('framework_bug', 'project_bug', 'human_required')),
			root_cause TEXT,
			file_path TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS fix_attempts (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			file_path TEXT NOT NULL,
			root_cause TEXT,
			signature TEXT NOT NULL,
			scope TEXT NOT NULL CHECK(scope IN ('framework', 'project')),
			succeeded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_interventions_project ON interventions(project);
		CREATE INDEX IF NOT EXISTS idx_interventions_action ON interventions(action);
		CREATE INDEX IF NOT EXISTS idx_interventions_created ON interventions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_fix_attempts_signature ON fix_attempts(signature);
		CREATE INDEX IF NOT EXISTS idx_fix_attempts_project ON fix_attempts(project, created_at DESC);
	`)
	return err
}

// migrationV2 adds per-target propagation receipts.
func migrationV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS propagations (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			rel_path TEXT NOT NULL,
			version TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			files_copied INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_propagations_project ON propagations(project, created_at DESC);
	`)
	return err
}

// migrationV3 adds session cost tracking to interventions.
func migrationV3(db *sql.DB) error {
	// Older databases predate cost tracking; ignore the duplicate-column
	// error when re-applied against a fresh schema.
	_, err := db.Exec(`ALTER TABLE interventions ADD COLUMN cost_usd REAL NOT NULL DEFAULT 0`)
	if err != nil && isDuplicateColumn(err) {
		return nil
	}
	return err
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
