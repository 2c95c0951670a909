// Package tmux hosts orchestrator processes inside tmux sessions.
package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// SessionHost implements secondary.SessionHost using gotmux. Each
// orchestrator runs as the root process of a dedicated session named
// piv-<project>, so operators can attach to any of them while the
// supervisor keeps running detached.
type SessionHost struct {
	tmux *gotmux.Tmux
}

// NewSessionHost creates a session host backed by the default tmux
// socket.
func NewSessionHost() (*SessionHost, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &SessionHost{tmux: tmux}, nil
}

// SessionName returns the tmux session name for a project.
func (h *SessionHost) SessionName(project string) string {
	return "piv-" + project
}

// StartOrchestrator spawns command as the root process of a fresh
// session rooted at projectPath and returns its PID. Any previous
// session for the project is torn down first, so a restart is a single
// call.
func (h *SessionHost) StartOrchestrator(ctx context.Context, project, projectPath, command string) (int, error) {
	name := h.SessionName(project)

	if existing, err := h.findSession(name); err == nil && existing != nil {
		if err := existing.Kill(); err != nil {
			return 0, fmt.Errorf("failed to kill stale session %s: %w", name, err)
		}
	}

	// Create session with plain shell, then replace the shell with the
	// orchestrator via respawn-pane -k. gotmux session options cannot
	// set the root command directly.
	session, err := h.tmux.NewSession(&gotmux.SessionOptions{
		Name:           name,
		StartDirectory: projectPath,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create session %s: %w", name, err)
	}

	if out, err := exec.CommandContext(ctx, "tmux", "respawn-pane", "-t", session.Name, "-k", command).CombinedOutput(); err != nil {
		_ = session.Kill()
		return 0, fmt.Errorf("failed to start orchestrator in %s: %w: %s", name, err, string(out))
	}

	pid, err := h.panePid(ctx, session.Name)
	if err != nil {
		return 0, fmt.Errorf("session %s started but pid lookup failed: %w", name, err)
	}
	return pid, nil
}

// panePid returns the PID of the root process of the session's first
// pane. gotmux does not expose pane_pid, so this shells out.
func (h *SessionHost) panePid(ctx context.Context, sessionName string) (int, error) {
	out, err := exec.CommandContext(ctx, "tmux", "display-message", "-p", "-t", sessionName, "#{pane_pid}").Output()
	if err != nil {
		return 0, fmt.Errorf("tmux display-message failed: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected pane_pid output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return pid, nil
}

// StopOrchestrator kills the project's session. A session that is
// already gone is not an error.
func (h *SessionHost) StopOrchestrator(ctx context.Context, project string) error {
	name := h.SessionName(project)

	session, err := h.findSession(name)
	if err != nil {
		return fmt.Errorf("failed to look up session %s: %w", name, err)
	}
	if session == nil {
		return nil
	}
	if err := session.Kill(); err != nil {
		return fmt.Errorf("failed to kill session %s: %w", name, err)
	}
	return nil
}

// HasSession reports whether a session for the project exists.
func (h *SessionHost) HasSession(ctx context.Context, project string) bool {
	session, err := h.findSession(h.SessionName(project))
	return err == nil && session != nil
}

// findSession returns the session by name, or nil if not found.
func (h *SessionHost) findSession(name string) (*gotmux.Session, error) {
	sessions, err := h.tmux.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, nil
}

// AttachInstructions returns operator-facing instructions for attaching
// to a project's session.
func AttachInstructions(sessionName string) string {
	return fmt.Sprintf("Attach to session: tmux attach -t %s\n\n"+
		"TMux Commands:\n"+
		"  Detach session: Ctrl+b then d\n"+
		"  Scroll output:  Ctrl+b then [\n",
		sessionName)
}

// Ensure SessionHost implements the interface
var _ secondary.SessionHost = (*SessionHost)(nil)
