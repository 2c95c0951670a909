package app

import (
	"context"
	"io"

	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// ImprovementLogServiceImpl implements the ImprovementLogService interface.
type ImprovementLogServiceImpl struct {
	log secondary.ImprovementLog
}

// NewImprovementLogService creates a new improvement log service.
func NewImprovementLogService(log secondary.ImprovementLog) *ImprovementLogServiceImpl {
	return &ImprovementLogServiceImpl{log: log}
}

// Tail returns the last n lines of the improvement log.
func (s *ImprovementLogServiceImpl) Tail(ctx context.Context, n int) ([]string, error) {
	return s.log.Tail(n)
}

// Follow streams appended log content to out until ctx is cancelled.
func (s *ImprovementLogServiceImpl) Follow(ctx context.Context, out io.Writer) error {
	return s.log.Follow(ctx, out)
}

// Location returns the log file path.
func (s *ImprovementLogServiceImpl) Location() string {
	return s.log.Path()
}

// Verify interface compliance at compile time.
var _ primary.ImprovementLogService = (*ImprovementLogServiceImpl)(nil)
