// Package framework manages the canonical shared command tree and its
// per-project copies.
package framework

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Store implements secondary.FrameworkStore over a directory tree. The
// tree is expected to be a git checkout so hot-fix reverts can restore
// committed content.
type Store struct {
	root         string
	validateCmds []string
}

// NewStore creates a framework store rooted at root. If root is empty,
// defaults to ~/.piv/framework.
func NewStore(root string, validateCmds []string) (*Store, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		root = filepath.Join(home, ".piv", "framework")
	}
	return &Store{root: root, validateCmds: validateCmds}, nil
}

// Root returns the canonical tree root.
func (s *Store) Root() string {
	return s.root
}

// ListCommandFiles returns every file under the canonical tree as a
// sorted slash-separated path relative to the root. The .git directory
// is not part of the tree.
func (s *Store) ListCommandFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk framework tree: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Version returns a short content hash of the canonical tree. Identical
// tree contents always produce the identical hash, independent of file
// timestamps or walk order.
func (s *Store) Version(ctx context.Context) (string, error) {
	files, err := s.ListCommandFiles(ctx)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		h.Write([]byte(rel))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8], nil
}

// SourceExists reports whether relPath exists under the canonical tree.
func (s *Store) SourceExists(relPath string) bool {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(relPath)))
	return err == nil && !info.IsDir()
}

// CopyToProject copies the canonical file at relPath into the project's
// local command tree at <project>/.claude/<relPath>, creating parent
// directories as needed.
func (s *Store) CopyToProject(ctx context.Context, relPath, projectPath string) (int, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(relPath)))
	if err != nil {
		return 0, fmt.Errorf("failed to read source %s: %w", relPath, err)
	}

	dst := filepath.Join(projectPath, ".claude", filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to copy %s: %w", relPath, err)
	}
	return 1, nil
}

// CopyAllToProject copies the entire canonical tree into the project's
// local command tree. Returns the number of files copied.
func (s *Store) CopyAllToProject(ctx context.Context, projectPath string) (int, error) {
	files, err := s.ListCommandFiles(ctx)
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, rel := range files {
		n, err := s.CopyToProject(ctx, rel, projectPath)
		if err != nil {
			return copied, err
		}
		copied += n
	}
	return copied, nil
}

// RevertFile restores relPath inside treeRoot to its last committed
// content.
func (s *Store) RevertFile(ctx context.Context, treeRoot, relPath string) error {
	cmd := exec.CommandContext(ctx, "git", "checkout", "--", filepath.FromSlash(relPath))
	cmd.Dir = treeRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git checkout failed for %s: %w: %s", relPath, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Validate runs the configured validation commands inside dir,
// stopping at the first failure. A failing command is reported in the
// ValidationReport; an error means a command could not be run at all.
func (s *Store) Validate(ctx context.Context, dir string) (*secondary.ValidationReport, error) {
	for _, cmdStr := range s.validateCmds {
		cmd := exec.CommandContext(ctx, "bash", "-lc", cmdStr)
		cmd.Dir = dir

		output, err := cmd.CombinedOutput()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &secondary.ValidationReport{
					Passed:        false,
					FailedCommand: cmdStr,
					Output:        string(output),
				}, nil
			}
			return nil, fmt.Errorf("failed to run %q: %w", cmdStr, err)
		}
	}
	return &secondary.ValidationReport{Passed: true}, nil
}

// Ensure Store implements the interface
var _ secondary.FrameworkStore = (*Store)(nil)
