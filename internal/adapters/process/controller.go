// Package process implements OS-level process probing and termination.
package process

import (
	"fmt"
	"syscall"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Controller implements secondary.ProcessController using POSIX signals.
type Controller struct{}

// NewController creates a process controller.
func NewController() *Controller {
	return &Controller{}
}

// Alive reports whether pid refers to a live process. Signal 0 performs
// the existence check without delivering anything. EPERM means the
// process exists but belongs to another user, which still counts as
// alive.
func (c *Controller) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// Terminate sends SIGTERM to pid. A process that already exited is
// treated as terminated.
func (c *Controller) Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}
	err := syscall.Kill(pid, syscall.SIGTERM)
	if err == nil || err == syscall.ESRCH {
		return nil
	}
	return fmt.Errorf("failed to terminate pid %d: %w", pid, err)
}

// Ensure Controller implements the interface
var _ secondary.ProcessController = (*Controller)(nil)
