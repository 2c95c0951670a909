// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// ProjectStateRepository implements secondary.ProjectStateRepository using SQLite.
type ProjectStateRepository struct {
	db *sql.DB
}

// NewProjectStateRepository creates a new ProjectStateRepository.
func NewProjectStateRepository(db *sql.DB) *ProjectStateRepository {
	return &ProjectStateRepository{db: db}
}

// Get retrieves state for a project, or nil if none is recorded yet.
func (r *ProjectStateRepository) Get(ctx context.Context, project string) (*secondary.ProjectStateRecord, error) {
	query := `SELECT project, restart_count, last_stall_type, last_stall_at, updated_at
		FROM project_state WHERE project = ?`

	var state secondary.ProjectStateRecord
	var lastStallType, lastStallAt sql.NullString

	err := r.db.QueryRowContext(ctx, query, project).Scan(
		&state.Project,
		&state.RestartCount,
		&lastStallType,
		&lastStallAt,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // No state yet is not an error
	}
	if err != nil {
		return nil, err
	}

	state.LastStallType = lastStallType.String
	state.LastStallAt = lastStallAt.String

	return &state, nil
}

// Upsert creates or replaces the state row for a project.
func (r *ProjectStateRepository) Upsert(ctx context.Context, state *secondary.ProjectStateRecord) error {
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	var lastStallType, lastStallAt any
	if state.LastStallType != "" {
		lastStallType = state.LastStallType
	}
	if state.LastStallAt != "" {
		lastStallAt = state.LastStallAt
	}

	query := `UPDATE project_state SET restart_count = ?, last_stall_type = ?, last_stall_at = ?, updated_at = ?
		WHERE project = ?`

	result, err := r.db.ExecContext(ctx, query,
		state.RestartCount,
		lastStallType,
		lastStallAt,
		state.UpdatedAt,
		state.Project,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		insert := `INSERT INTO project_state (project, restart_count, last_stall_type, last_stall_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`
		_, err = r.db.ExecContext(ctx, insert,
			state.Project,
			state.RestartCount,
			lastStallType,
			lastStallAt,
			state.UpdatedAt,
		)
		return err
	}

	return nil
}

// IncrementRestartCount bumps the restart counter and returns the new value.
func (r *ProjectStateRepository) IncrementRestartCount(ctx context.Context, project string) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `UPDATE project_state SET restart_count = restart_count + 1, updated_at = ? WHERE project = ?`
	result, err := r.db.ExecContext(ctx, query, now, project)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		insert := `INSERT INTO project_state (project, restart_count, updated_at) VALUES (?, 1, ?)`
		if _, err := r.db.ExecContext(ctx, insert, project, now); err != nil {
			return 0, err
		}
		return 1, nil
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT restart_count FROM project_state WHERE project = ?`, project).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetRestartCount zeroes the restart counter for a project.
// Resetting a project with no state row is a no-op.
func (r *ProjectStateRepository) ResetRestartCount(ctx context.Context, project string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `UPDATE project_state SET restart_count = 0, updated_at = ? WHERE project = ?`
	_, err := r.db.ExecContext(ctx, query, now, project)
	return err
}

// Delete removes state for a deregistered project.
func (r *ProjectStateRepository) Delete(ctx context.Context, project string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM project_state WHERE project = ?`, project)
	return err
}

// List retrieves all recorded project state.
func (r *ProjectStateRepository) List(ctx context.Context) ([]*secondary.ProjectStateRecord, error) {
	query := `SELECT project, restart_count, last_stall_type, last_stall_at, updated_at
		FROM project_state ORDER BY project`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*secondary.ProjectStateRecord
	for rows.Next() {
		var state secondary.ProjectStateRecord
		var lastStallType, lastStallAt sql.NullString

		if err := rows.Scan(
			&state.Project,
			&state.RestartCount,
			&lastStallType,
			&lastStallAt,
			&state.UpdatedAt,
		); err != nil {
			return nil, err
		}

		state.LastStallType = lastStallType.String
		state.LastStallAt = lastStallAt.String

		states = append(states, &state)
	}

	return states, rows.Err()
}

// Ensure ProjectStateRepository implements the interface.
var _ secondary.ProjectStateRepository = (*ProjectStateRepository)(nil)
