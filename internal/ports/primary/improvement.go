package primary

import (
	"context"
	"io"
)

// ImprovementLogService defines the primary port for reading the
// append-only intervention audit trail. Writing happens inside the
// monitor and interventor services; the CLI only reads.
type ImprovementLogService interface {
	// Tail returns the last n lines of the improvement log.
	Tail(ctx context.Context, n int) ([]string, error)

	// Follow streams appended log content to out until ctx is cancelled.
	Follow(ctx context.Context, out io.Writer) error

	// Location returns the log file path.
	Location() string
}
