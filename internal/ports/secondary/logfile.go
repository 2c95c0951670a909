package secondary

import (
	"context"
	"io"

	"github.com/siphio/piv-warden/internal/models"
)

// ImprovementLog defines the secondary port for the append-only audit
// trail of interventions.
type ImprovementLog interface {
	// Append writes one entry, creating the file and its parent
	// directory on first use. Write failures are swallowed: losing an
	// audit line is strictly less harmful than crashing the supervisor
	// mid-remediation.
	Append(entry *models.ImprovementLogEntry)

	// Tail returns the last n lines of the log. A missing log file
	// yields an empty slice.
	Tail(n int) ([]string, error)

	// Follow streams appended log bytes to out until ctx is cancelled.
	Follow(ctx context.Context, out io.Writer) error

	// Path returns the log file location, for diagnostics.
	Path() string
}
