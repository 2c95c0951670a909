package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "warden.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HeartbeatStaleMs != 900000 {
		t.Errorf("HeartbeatStaleMs = %d, want 900000", cfg.HeartbeatStaleMs)
	}
	if cfg.MaxRestartAttempts != 2 {
		t.Errorf("MaxRestartAttempts = %d, want 2", cfg.MaxRestartAttempts)
	}
	if cfg.OrchestratorCommand != "piv-orchestrator" {
		t.Errorf("OrchestratorCommand = %q, want piv-orchestrator", cfg.OrchestratorCommand)
	}
	if len(cfg.Framework.ValidationCommands) != 2 {
		t.Errorf("ValidationCommands = %v, want two defaults", cfg.Framework.ValidationCommands)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "heartbeat_stale_ms: 60000\nsessions:\n  max_turns: 10\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HeartbeatStaleMs != 60000 {
		t.Errorf("HeartbeatStaleMs = %d, want 60000", cfg.HeartbeatStaleMs)
	}
	if cfg.Sessions.MaxTurns != 10 {
		t.Errorf("MaxTurns = %d, want 10", cfg.Sessions.MaxTurns)
	}
	if cfg.CheckIntervalMs != 300000 {
		t.Errorf("CheckIntervalMs = %d, want default 300000", cfg.CheckIntervalMs)
	}
	if cfg.Sessions.MaxBudgetUsd != 2.50 {
		t.Errorf("MaxBudgetUsd = %.2f, want default 2.50", cfg.Sessions.MaxBudgetUsd)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "heartbeat_stale_ms: [not a number\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "heartbeat_stale_ms: -5\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for negative staleness threshold")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero restart attempts allowed", func(c *Config) { c.MaxRestartAttempts = 0 }, false},
		{"negative restart attempts", func(c *Config) { c.MaxRestartAttempts = -1 }, true},
		{"zero check interval", func(c *Config) { c.CheckIntervalMs = 0 }, true},
		{"zero diagnose timeout", func(c *Config) { c.Sessions.DiagnoseTimeoutMs = 0 }, true},
		{"zero budget", func(c *Config) { c.Sessions.MaxBudgetUsd = 0 }, true},
		{"zero max turns", func(c *Config) { c.Sessions.MaxTurns = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestMemoryEnabled(t *testing.T) {
	t.Run("disabled without endpoint", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Memory.APIKeyEnv = "PIV_TEST_MEMORY_KEY"
		t.Setenv("PIV_TEST_MEMORY_KEY", "secret")
		if cfg.MemoryEnabled() {
			t.Error("expected memory disabled without endpoint")
		}
	})

	t.Run("disabled when env var unset", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Memory.Endpoint = "http://localhost:8080"
		cfg.Memory.APIKeyEnv = "PIV_TEST_MEMORY_KEY_UNSET"
		os.Unsetenv("PIV_TEST_MEMORY_KEY_UNSET")
		if cfg.MemoryEnabled() {
			t.Error("expected memory disabled when credential env var is unset")
		}
	})

	t.Run("enabled with endpoint and credential", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Memory.Endpoint = "http://localhost:8080"
		cfg.Memory.APIKeyEnv = "PIV_TEST_MEMORY_KEY"
		t.Setenv("PIV_TEST_MEMORY_KEY", "secret")
		if !cfg.MemoryEnabled() {
			t.Error("expected memory enabled")
		}
	})
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.StaleAfter() != 15*time.Minute {
		t.Errorf("StaleAfter = %v, want 15m", cfg.StaleAfter())
	}
	if cfg.CheckInterval() != 5*time.Minute {
		t.Errorf("CheckInterval = %v, want 5m", cfg.CheckInterval())
	}
	if cfg.DiagnoseTimeout() != 10*time.Minute {
		t.Errorf("DiagnoseTimeout = %v, want 10m", cfg.DiagnoseTimeout())
	}
	if cfg.FixTimeout() != 15*time.Minute {
		t.Errorf("FixTimeout = %v, want 15m", cfg.FixTimeout())
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piv", "warden.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of written default failed: %v", err)
	}
	if cfg.HeartbeatStaleMs != 900000 {
		t.Errorf("round-tripped HeartbeatStaleMs = %d, want 900000", cfg.HeartbeatStaleMs)
	}

	// Second write must refuse to clobber
	if err := WriteDefault(path); err == nil {
		t.Error("expected error overwriting existing config")
	}
}
