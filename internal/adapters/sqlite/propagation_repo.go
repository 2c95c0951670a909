package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// PropagationRepository implements secondary.PropagationRepository using SQLite.
type PropagationRepository struct {
	db *sql.DB
}

// NewPropagationRepository creates a new PropagationRepository.
func NewPropagationRepository(db *sql.DB) *PropagationRepository {
	return &PropagationRepository{db: db}
}

// Create persists one per-target propagation receipt.
func (r *PropagationRepository) Create(ctx context.Context, receipt *secondary.PropagationRecord) error {
	if receipt.CreatedAt == "" {
		receipt.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query := `INSERT INTO propagations (id, project, rel_path, version, success, files_copied, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var version, errText any
	if receipt.Version != "" {
		version = receipt.Version
	}
	if receipt.Error != "" {
		errText = receipt.Error
	}

	_, err := r.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.Project,
		receipt.RelPath,
		version,
		receipt.Success,
		receipt.FilesCopied,
		errText,
		receipt.CreatedAt,
	)
	return err
}

// List retrieves receipts matching the given filters.
func (r *PropagationRepository) List(ctx context.Context, filters secondary.PropagationFilters) ([]*secondary.PropagationRecord, error) {
	query := `SELECT id, project, rel_path, version, success, files_copied, error, created_at
		FROM propagations WHERE 1=1`
	args := []any{}

	if filters.Project != "" {
		query += " AND project = ?"
		args = append(args, filters.Project)
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

	var receipts []*secondary.PropagationRecord
	for rows.Next() {
		var receipt secondary.PropagationRecord
		var version, errText sql.NullString

		if err := rows.Scan(
			&receipt.ID,
			&receipt.Project,
			&receipt.RelPath,
			&version,
			&receipt.Success,
			&receipt.FilesCopied,
			&errText,
			&receipt.CreatedAt,
		); err != nil {
			return nil, err
		}

		receipt.Version = version.String
		receipt.Error = errText.String

		receipts = append(receipts, &receipt)
	}

	return receipts, rows.Err()
}

// Ensure PropagationRepository implements the interface.
var _ secondary.PropagationRepository = (*PropagationRepository)(nil)
