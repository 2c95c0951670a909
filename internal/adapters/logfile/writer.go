// Package logfile maintains the append-only improvement log.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Log implements secondary.ImprovementLog as a human-readable markdown
// file. Appends never fail from the caller's perspective: losing an
// audit line is strictly less harmful than crashing the supervisor
// mid-remediation.
type Log struct {
	path string
}

// NewLog creates an improvement log. If path is empty, defaults to
// ~/.piv/improvement-log.md.
func NewLog(path string) (*Log, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".piv", "improvement-log.md")
	}
	return &Log{path: path}, nil
}

// Append writes one entry, creating the file and its parent directory
// on first use. Write failures are swallowed.
func (l *Log) Append(entry *models.ImprovementLogEntry) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(FormatEntry(entry))
}

// FormatEntry renders one entry as a markdown section. A nil phase
// renders as "N/A", never as a literal null.
func FormatEntry(entry *models.ImprovementLogEntry) string {
	phase := "N/A"
	if entry.Phase != nil {
		phase = fmt.Sprintf("%d", *entry.Phase)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## [%s] %s\n", entry.Timestamp, entry.Project)
	fmt.Fprintf(&b, "- Phase: %s\n", phase)
	fmt.Fprintf(&b, "- Stall type: %s\n", entry.StallType)
	fmt.Fprintf(&b, "- Action: %s\n", entry.Action)
	fmt.Fprintf(&b, "- Outcome: %s\n", entry.Outcome)
	if entry.Details != "" {
		fmt.Fprintf(&b, "- Details: %s\n", entry.Details)
	}
	if entry.BugLocation != "" {
		fmt.Fprintf(&b, "- Bug location: %s\n", entry.BugLocation)
	}
	if entry.RootCause != "" {
		fmt.Fprintf(&b, "- Root cause: %s\n", entry.RootCause)
	}
	if entry.FilePath != "" {
		fmt.Fprintf(&b, "- File: %s\n", entry.FilePath)
	}
	if entry.FixApplied {
		fmt.Fprintf(&b, "- Fix applied: yes\n")
	}
	if len(entry.PropagatedTo) > 0 {
		fmt.Fprintf(&b, "- Propagated to: %s\n", strings.Join(entry.PropagatedTo, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// Tail returns the last n lines of the log. A missing log file yields
// an empty slice.
func (l *Log) Tail(n int) ([]string, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read improvement log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Ensure Log implements the interface
var _ secondary.ImprovementLog = (*Log)(nil)
