package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// FixAttemptRepository implements secondary.FixAttemptRepository using SQLite.
type FixAttemptRepository struct {
	db *sql.DB
}

// NewFixAttemptRepository creates a new FixAttemptRepository.
func NewFixAttemptRepository(db *sql.DB) *FixAttemptRepository {
	return &FixAttemptRepository{db: db}
}

// Create persists a fix attempt.
func (r *FixAttemptRepository) Create(ctx context.Context, attempt *secondary.FixAttemptRecord) error {
	if attempt.CreatedAt == "" {
		attempt.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query := `INSERT INTO fix_attempts (id, project, file_path, root_cause, signature, scope, succeeded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var rootCause any
	if attempt.RootCause != "" {
		rootCause = attempt.RootCause
	}

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Project,
		attempt.FilePath,
		rootCause,
		attempt.Signature,
		attempt.Scope,
		attempt.Succeeded,
		attempt.CreatedAt,
	)
	return err
}

// HasFailed reports whether a failed attempt with this signature exists.
func (r *FixAttemptRepository) HasFailed(ctx context.Context, signature string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM fix_attempts WHERE signature = ? AND succeeded = 0)`
	if err := r.db.QueryRowContext(ctx, query, signature).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByProject retrieves attempts for a project, newest first.
func (r *FixAttemptRepository) ListByProject(ctx context.Context, project string) ([]*secondary.FixAttemptRecord, error) {
	query := `SELECT id, project, file_path, root_cause, signature, scope, succeeded, created_at
		FROM fix_attempts WHERE project = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*secondary.FixAttemptRecord
	for rows.Next() {
		var attempt secondary.FixAttemptRecord
		var rootCause sql.NullString

		if err := rows.Scan(
			&attempt.ID,
			&attempt.Project,
			&attempt.FilePath,
			&rootCause,
			&attempt.Signature,
			&attempt.Scope,
			&attempt.Succeeded,
			&attempt.CreatedAt,
		); err != nil {
			return nil, err
		}

		attempt.RootCause = rootCause.String

		attempts = append(attempts, &attempt)
	}

	return attempts, rows.Err()
}

// Ensure FixAttemptRepository implements the interface.
var _ secondary.FixAttemptRepository = (*FixAttemptRepository)(nil)
