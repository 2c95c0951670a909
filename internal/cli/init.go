package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/siphio/piv-warden/internal/config"
	"github.com/siphio/piv-warden/internal/db"
)

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the warden home directory",
		Long: `Create ~/.piv/ with a default warden.yaml and an empty state database.
An existing config file is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := config.DefaultPath()
			if err != nil {
				return fmt.Errorf("failed to resolve config path: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("✓ Config already exists at %s\n", configPath)
			} else {
				if err := config.WriteDefault(configPath); err != nil {
					return fmt.Errorf("failed to write default config: %w", err)
				}
				fmt.Printf("✓ Wrote default config to %s\n", configPath)
			}

			if _, err := db.GetDB(); err != nil {
				return fmt.Errorf("failed to initialize state database: %w", err)
			}
			fmt.Println("✓ State database initialized")

			frameworkRoot := filepath.Join(filepath.Dir(configPath), "framework")
			if _, err := os.Stat(frameworkRoot); os.IsNotExist(err) {
				fmt.Println()
				fmt.Printf("⚠ No framework tree at %s\n", frameworkRoot)
				fmt.Println("  Clone your shared command tree there (it must be a git checkout).")
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  warden register my-app ~/src/my-app")
			fmt.Println("  warden start my-app")
			fmt.Println("  warden watch")

			return nil
		},
	}
}
