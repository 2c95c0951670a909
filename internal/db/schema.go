package db

// SchemaSQL is the complete schema for fresh warden installs.
// This schema reflects the current state after all migrations.
//
// This is the single source of truth for the database schema. Tests use
// it via GetSchemaSQL() so repository code that references a missing
// column fails immediately with "no such column" instead of drifting.
//
// When adding new columns or tables:
//  1. Add a migration in internal/db/migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Supervisor-side project state (restart exhaustion survives restarts)
CREATE TABLE IF NOT EXISTS project_state (
	project TEXT PRIMARY KEY,
	restart_count INTEGER NOT NULL DEFAULT 0,
	last_stall_type TEXT CHECK(last_stall_type IN ('orchestrator_crashed', 'session_hung', 'execution_error')),
	last_stall_at DATETIME,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Interventions (one row per recovery action the supervisor executed)
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
	cost_usd REAL NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Fix attempts (escalation policy refuses to retry an identical failure)
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

-- Propagation receipts (one row per target project per propagation)
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

-- Create indexes for common queries
CREATE INDEX IF NOT EXISTS idx_interventions_project ON interventions(project);
CREATE INDEX IF NOT EXISTS idx_interventions_action ON interventions(action);
CREATE INDEX IF NOT EXISTS idx_interventions_created ON interventions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fix_attempts_signature ON fix_attempts(signature);
CREATE INDEX IF NOT EXISTS idx_fix_attempts_project ON fix_attempts(project, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_propagations_project ON propagations(project, created_at DESC);
`

// InitSchema creates the database schema
func InitSchema() error {
	db, err := GetDB()
	if err != nil {
		return err
	}

	// Check if schema_version table exists to determine if this is a fresh install
	var tableCount int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// Fresh install - create modern schema directly, then mark all
		// migrations as applied so they never re-run.
		if _, err = db.Exec(SchemaSQL); err != nil {
			return err
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}
		for i := 1; i <= len(migrations); i++ {
			if _, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", i); err != nil {
				return err
			}
		}
		return nil
	}

	// schema_version table exists - run any pending migrations
	return RunMigrations()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
