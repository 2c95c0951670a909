// Package config loads the supervisor configuration from ~/.piv/warden.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level warden.yaml configuration. All durations are
// milliseconds so the file round-trips without unit parsing.
type Config struct {
	HeartbeatStaleMs    int64  `yaml:"heartbeat_stale_ms"`
	CheckIntervalMs     int64  `yaml:"check_interval_ms"`
	MaxRestartAttempts  int    `yaml:"max_restart_attempts"`
	OrchestratorCommand string `yaml:"orchestrator_command"`

	Framework FrameworkConfig `yaml:"framework"`
	Sessions  SessionConfig   `yaml:"sessions"`
	Notify    NotifyConfig    `yaml:"notify"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// FrameworkConfig locates the canonical shared command tree and the
// validation commands run after hot fixes.
type FrameworkConfig struct {
	Root               string   `yaml:"root,omitempty"` // Empty means ~/.piv/framework
	ValidationCommands []string `yaml:"validation_commands"`
}

// SessionConfig bounds reasoning-agent sessions.
type SessionConfig struct {
	AgentBinary       string  `yaml:"agent_binary,omitempty"` // Empty means $PIV_AGENT_BINARY or "claude"
	DiagnoseTimeoutMs int64   `yaml:"diagnose_timeout_ms"`
	FixTimeoutMs      int64   `yaml:"fix_timeout_ms"`
	MaxTurns          int     `yaml:"max_turns"`
	MaxBudgetUsd      float64 `yaml:"max_budget_usd"`
}

// NotifyConfig points escalations at a chat webhook. An empty URL
// disables outbound notification; escalations still land in the log.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// MemoryConfig configures the optional semantic fix memory. Memory is
// enabled only when Endpoint is set and the env var named by APIKeyEnv
// is non-empty.
type MemoryConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// DefaultConfig returns the configuration used when warden.yaml is
// absent or leaves fields unset.
func DefaultConfig() *Config {
	return &Config{
		HeartbeatStaleMs:    900000,
		CheckIntervalMs:     300000,
		MaxRestartAttempts:  2,
		OrchestratorCommand: "piv-orchestrator",
		Framework: FrameworkConfig{
			ValidationCommands: []string{"npm run typecheck", "npm test"},
		},
		Sessions: SessionConfig{
			DiagnoseTimeoutMs: 600000,
			FixTimeoutMs:      900000,
			MaxTurns:          30,
			MaxBudgetUsd:      2.50,
		},
	}
}

// DefaultPath returns ~/.piv/warden.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".piv", "warden.yaml"), nil
}

// Load reads and validates the config at path. A missing file yields
// DefaultConfig - the supervisor must run unconfigured. A file that
// exists but fails to parse or validate is an error; silently ignoring
// a broken config would mask operator intent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// WriteDefault writes the default configuration to path, creating
// parent directories. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyDefaults fills zero-valued fields after a partial YAML decode.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.HeartbeatStaleMs == 0 {
		c.HeartbeatStaleMs = defaults.HeartbeatStaleMs
	}
	if c.CheckIntervalMs == 0 {
		c.CheckIntervalMs = defaults.CheckIntervalMs
	}
	if c.MaxRestartAttempts == 0 {
		c.MaxRestartAttempts = defaults.MaxRestartAttempts
	}
	if c.OrchestratorCommand == "" {
		c.OrchestratorCommand = defaults.OrchestratorCommand
	}
	if c.Framework.ValidationCommands == nil {
		c.Framework.ValidationCommands = defaults.Framework.ValidationCommands
	}
	if c.Sessions.DiagnoseTimeoutMs == 0 {
		c.Sessions.DiagnoseTimeoutMs = defaults.Sessions.DiagnoseTimeoutMs
	}
	if c.Sessions.FixTimeoutMs == 0 {
		c.Sessions.FixTimeoutMs = defaults.Sessions.FixTimeoutMs
	}
	if c.Sessions.MaxTurns == 0 {
		c.Sessions.MaxTurns = defaults.Sessions.MaxTurns
	}
	if c.Sessions.MaxBudgetUsd == 0 {
		c.Sessions.MaxBudgetUsd = defaults.Sessions.MaxBudgetUsd
	}
}

// Validate checks invariants a running supervisor depends on.
func (c *Config) Validate() error {
	if c.HeartbeatStaleMs <= 0 {
		return fmt.Errorf("heartbeat_stale_ms must be positive, got %d", c.HeartbeatStaleMs)
	}
	if c.CheckIntervalMs <= 0 {
		return fmt.Errorf("check_interval_ms must be positive, got %d", c.CheckIntervalMs)
	}
	if c.MaxRestartAttempts < 0 {
		return fmt.Errorf("max_restart_attempts must be >= 0, got %d", c.MaxRestartAttempts)
	}
	if c.Sessions.DiagnoseTimeoutMs <= 0 {
		return fmt.Errorf("sessions.diagnose_timeout_ms must be positive, got %d", c.Sessions.DiagnoseTimeoutMs)
	}
	if c.Sessions.FixTimeoutMs <= 0 {
		return fmt.Errorf("sessions.fix_timeout_ms must be positive, got %d", c.Sessions.FixTimeoutMs)
	}
	if c.Sessions.MaxTurns <= 0 {
		return fmt.Errorf("sessions.max_turns must be positive, got %d", c.Sessions.MaxTurns)
	}
	if c.Sessions.MaxBudgetUsd <= 0 {
		return fmt.Errorf("sessions.max_budget_usd must be positive, got %.2f", c.Sessions.MaxBudgetUsd)
	}
	return nil
}

// MemoryEnabled reports whether semantic fix memory should be wired:
// an endpoint is configured and the named credential env var is set.
func (c *Config) MemoryEnabled() bool {
	if c.Memory.Endpoint == "" || c.Memory.APIKeyEnv == "" {
		return false
	}
	return os.Getenv(c.Memory.APIKeyEnv) != ""
}

// StaleAfter returns the heartbeat staleness threshold as a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.HeartbeatStaleMs) * time.Millisecond
}

// CheckInterval returns the monitor cycle interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

// DiagnoseTimeout returns the diagnosis session timeout as a duration.
func (c *Config) DiagnoseTimeout() time.Duration {
	return time.Duration(c.Sessions.DiagnoseTimeoutMs) * time.Millisecond
}

// FixTimeout returns the fix session timeout as a duration.
func (c *Config) FixTimeout() time.Duration {
	return time.Duration(c.Sessions.FixTimeoutMs) * time.Millisecond
}
