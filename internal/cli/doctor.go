package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/adapters/memory"
	"github.com/siphio/piv-warden/internal/adapters/registry"
	"github.com/siphio/piv-warden/internal/config"
	"github.com/siphio/piv-warden/internal/db"
)

// CheckResult represents the outcome of a single environment check.
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation.
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the warden environment",
		Long: `Environment health check for the warden.

Validates:
- Supervisor config (~/.piv/warden.yaml parses and validates)
- State database opens (~/.piv/warden.db)
- Fleet registry is readable
- Canonical framework tree exists and is a git checkout
- tmux and the reasoning-agent binary are on PATH
- Memory backend is reachable, when configured

Examples:
  warden doctor           # Run full health check
  warden doctor --quiet   # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigForDoctor()

			results := []CheckResult{
				checkConfig(),
				checkDatabase(),
				checkRegistry(),
				checkFrameworkTree(cfg),
				checkBinary("tmux", "tmux"),
				checkBinary("agent binary", agentBinaryName(cfg)),
				checkMemory(cfg),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						fmt.Printf("%s %s: %s\n", r.Status, r.Name, r.Details)
					}
				}
			}

			if hasErrors {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress output, exit code only")

	return cmd
}

// loadConfigForDoctor loads the config best-effort; checkConfig reports
// any load error separately.
func loadConfigForDoctor() *config.Config {
	path, err := config.DefaultPath()
	if err != nil {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

func checkConfig() CheckResult {
	path, err := config.DefaultPath()
	if err != nil {
		return CheckResult{Name: "config", Status: "✗", Details: err.Error()}
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return CheckResult{Name: "config", Status: "⚠", Details: fmt.Sprintf("%s not found, using defaults (run 'warden init')", path)}
	}
	if _, err := config.Load(path); err != nil {
		return CheckResult{Name: "config", Status: "✗", Details: err.Error()}
	}
	return CheckResult{Name: "config", Status: "✓"}
}

func checkDatabase() CheckResult {
	if _, err := db.GetDB(); err != nil {
		return CheckResult{Name: "state database", Status: "✗", Details: err.Error()}
	}
	return CheckResult{Name: "state database", Status: "✓"}
}

func checkRegistry() CheckResult {
	store, err := registry.NewStore("")
	if err != nil {
		return CheckResult{Name: "registry", Status: "✗", Details: err.Error()}
	}
	reg, err := store.Load(context.Background())
	if err != nil {
		return CheckResult{Name: "registry", Status: "✗", Details: err.Error()}
	}
	if len(reg.Projects) == 0 {
		return CheckResult{Name: "registry", Status: "⚠", Details: "no projects registered"}
	}
	return CheckResult{Name: "registry", Status: "✓"}
}

func checkFrameworkTree(cfg *config.Config) CheckResult {
	root := cfg.Framework.Root
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return CheckResult{Name: "framework tree", Status: "✗", Details: err.Error()}
		}
		root = filepath.Join(home, ".piv", "framework")
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return CheckResult{Name: "framework tree", Status: "✗", Details: fmt.Sprintf("%s does not exist", root)}
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return CheckResult{Name: "framework tree", Status: "⚠", Details: fmt.Sprintf("%s is not a git checkout; hot-fix reverts need one", root)}
	}
	return CheckResult{Name: "framework tree", Status: "✓"}
}

func checkBinary(name, binary string) CheckResult {
	if _, err := exec.LookPath(binary); err != nil {
		return CheckResult{Name: name, Status: "✗", Details: fmt.Sprintf("%s not found in PATH", binary)}
	}
	return CheckResult{Name: name, Status: "✓"}
}

// agentBinaryName mirrors the session runner's binary resolution.
func agentBinaryName(cfg *config.Config) string {
	if cfg.Sessions.AgentBinary != "" {
		return cfg.Sessions.AgentBinary
	}
	if env := os.Getenv("PIV_AGENT_BINARY"); env != "" {
		return env
	}
	return "claude"
}

func checkMemory(cfg *config.Config) CheckResult {
	if !cfg.MemoryEnabled() {
		return CheckResult{Name: "memory", Status: "⚠", Details: "memory disabled (no endpoint or credential configured)"}
	}

	backend, err := memory.NewWeaviateMemory(cfg.Memory.Endpoint)
	if err != nil {
		return CheckResult{Name: "memory", Status: "✗", Details: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !backend.CheckHealth(ctx) {
		return CheckResult{Name: "memory", Status: "✗", Details: fmt.Sprintf("%s is not reachable", cfg.Memory.Endpoint)}
	}
	return CheckResult{Name: "memory", Status: "✓"}
}
