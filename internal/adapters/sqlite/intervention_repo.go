package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// InterventionRepository implements secondary.InterventionRepository using SQLite.
type InterventionRepository struct {
	db *sql.DB
}

// NewInterventionRepository creates a new InterventionRepository.
func NewInterventionRepository(db *sql.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

// Create persists a new intervention record.
func (r *InterventionRepository) Create(ctx context.Context, intervention *secondary.InterventionRecord) error {
	if intervention.CreatedAt == "" {
		intervention.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query := `INSERT INTO interventions (id, project, stall_type, confidence, action, outcome, details,
		bug_location, root_cause, file_path, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var confidence, bugLocation, rootCause, filePath any
	if intervention.Confidence != "" {
		confidence = intervention.Confidence
	}
	if intervention.BugLocation != "" {
		bugLocation = intervention.BugLocation
	}
	if intervention.RootCause != "" {
		rootCause = intervention.RootCause
	}
	if intervention.FilePath != "" {
		filePath = intervention.FilePath
	}

	_, err := r.db.ExecContext(ctx, query,
		intervention.ID,
		intervention.Project,
		intervention.StallType,
		confidence,
		intervention.Action,
		intervention.Outcome,
		intervention.Details,
		bugLocation,
		rootCause,
		filePath,
		intervention.CostUsd,
		intervention.CreatedAt,
	)
	return err
}

// GetByID retrieves an intervention by its ID.
func (r *InterventionRepository) GetByID(ctx context.Context, id string) (*secondary.InterventionRecord, error) {
	query := `SELECT id, project, stall_type, confidence, action, outcome, details,
		bug_location, root_cause, file_path, cost_usd, created_at
		FROM interventions WHERE id = ?`

	var intervention secondary.InterventionRecord
	var confidence, details, bugLocation, rootCause, filePath sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&intervention.ID,
		&intervention.Project,
		&intervention.StallType,
		&confidence,
		&intervention.Action,
		&intervention.Outcome,
		&details,
		&bugLocation,
		&rootCause,
		&filePath,
		&intervention.CostUsd,
		&intervention.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("intervention not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	intervention.Confidence = confidence.String
	intervention.Details = details.String
	intervention.BugLocation = bugLocation.String
	intervention.RootCause = rootCause.String
	intervention.FilePath = filePath.String

	return &intervention, nil
}

// List retrieves interventions matching the given filters.
func (r *InterventionRepository) List(ctx context.Context, filters secondary.InterventionFilters) ([]*secondary.InterventionRecord, error) {
	query := `SELECT id, project, stall_type, confidence, action, outcome, details,
		bug_location, root_cause, file_path, cost_usd, created_at
		FROM interventions WHERE 1=1`
	args := []any{}

	if filters.Project != "" {
		query += " AND project = ?"
		args = append(args, filters.Project)
	}
	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInterventions(rows)
}

// CountByProject returns how many interventions a project has had.
func (r *InterventionRepository) CountByProject(ctx context.Context, project string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM interventions WHERE project = ?`
	if err := r.db.QueryRowContext(ctx, query, project).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// scanInterventions scans rows into intervention records.
func (r *InterventionRepository) scanInterventions(rows *sql.Rows) ([]*secondary.InterventionRecord, error) {
	var interventions []*secondary.InterventionRecord

	for rows.Next() {
		var intervention secondary.InterventionRecord
		var confidence, details, bugLocation, rootCause, filePath sql.NullString

		if err := rows.Scan(
			&intervention.ID,
			&intervention.Project,
			&intervention.StallType,
			&confidence,
			&intervention.Action,
			&intervention.Outcome,
			&details,
			&bugLocation,
			&rootCause,
			&filePath,
			&intervention.CostUsd,
			&intervention.CreatedAt,
		); err != nil {
			return nil, err
		}

		intervention.Confidence = confidence.String
		intervention.Details = details.String
		intervention.BugLocation = bugLocation.String
		intervention.RootCause = rootCause.String
		intervention.FilePath = filePath.String

		interventions = append(interventions, &intervention)
	}

	return interventions, rows.Err()
}

// Ensure InterventionRepository implements the interface.
var _ secondary.InterventionRepository = (*InterventionRepository)(nil)
