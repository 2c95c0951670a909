package secondary

import "context"

// ValidationReport is the outcome of running the validation commands.
type ValidationReport struct {
	Passed        bool
	FailedCommand string // Empty when Passed
	Output        string // Combined output of the failing command
}

// FrameworkStore defines the secondary port for the canonical shared
// framework tree and its per-project copies.
type FrameworkStore interface {
	// Root returns the canonical tree root directory, the scope for
	// framework-level fix sessions and validation.
	Root() string

	// Version returns the current content hash of the canonical command
	// tree. Identical tree contents always produce the identical hash.
	Version(ctx context.Context) (string, error)

	// SourceExists reports whether relPath exists under the canonical
	// command tree.
	SourceExists(relPath string) bool

	// CopyToProject copies the canonical file at relPath into the
	// project's local command tree, creating parent directories as
	// needed. Returns the number of files copied.
	CopyToProject(ctx context.Context, relPath, projectPath string) (int, error)

	// CopyAllToProject copies the entire canonical command tree into the
	// project's local command tree. Returns the number of files copied.
	CopyAllToProject(ctx context.Context, projectPath string) (int, error)

	// ListCommandFiles returns every file in the canonical command tree
	// as a path relative to the tree root, sorted.
	ListCommandFiles(ctx context.Context) ([]string, error)

	// RevertFile restores relPath inside treeRoot to its last committed
	// content via version control. Returns an error rather than leaving
	// a half-applied edit in place silently.
	RevertFile(ctx context.Context, treeRoot, relPath string) error

	// Validate runs the configured type-check and test commands inside
	// dir. Command failure is reported in the ValidationReport, not as
	// an error; errors mean the commands could not be run at all.
	Validate(ctx context.Context, dir string) (*ValidationReport, error)
}
