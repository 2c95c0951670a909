// Package agent runs headless reasoning sessions via the claude CLI.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Runner implements secondary.SessionRunner by invoking the agent
// binary in print mode with JSON output. The prompt travels over stdin
// so its size is never constrained by argv limits.
type Runner struct {
	binary string
}

// NewRunner creates a session runner. If binary is empty, the
// PIV_AGENT_BINARY environment variable is consulted, then "claude".
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = os.Getenv("PIV_AGENT_BINARY")
	}
	if binary == "" {
		binary = "claude"
	}
	return &Runner{binary: binary}
}

// Run executes one session to completion and parses the CLI's JSON
// result envelope.
func (r *Runner) Run(ctx context.Context, req secondary.SessionRequest) (*secondary.SessionResult, error) {
	cmdCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	args := []string{"-p", "--output-format", "json"}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}

	cmd := exec.CommandContext(cmdCtx, r.binary, args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("session timed out after %s", req.Timeout)
	}
	if runErr != nil {
		return nil, fmt.Errorf("session process failed: %w: %s", runErr, firstLine(stderr.String()))
	}

	result, err := ParseResult(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if req.MaxBudgetUsd > 0 && result.CostUsd > req.MaxBudgetUsd {
		return nil, fmt.Errorf("session exceeded budget: $%.2f > $%.2f", result.CostUsd, req.MaxBudgetUsd)
	}
	return result, nil
}

// resultEnvelope mirrors the CLI's -p --output-format json envelope.
// The cost field was renamed upstream at some point, so both spellings
// are accepted.
type resultEnvelope struct {
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	CostUsd      float64 `json:"cost_usd"`
	TotalCostUsd float64 `json:"total_cost_usd"`
	NumTurns     int     `json:"num_turns"`
	DurationMs   int64   `json:"duration_ms"`
}

// ParseResult decodes the JSON envelope the CLI prints in -p mode.
// Malformed output is an error, never a zero-value result: callers
// degrade to conservative outcomes on failure and must not mistake
// garbage for success.
func ParseResult(output []byte) (*secondary.SessionResult, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("session produced no output")
	}

	var envelope resultEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("malformed session output: %w", err)
	}
	if envelope.IsError {
		return nil, fmt.Errorf("session reported failure: %s", firstLine(envelope.Result))
	}

	cost := envelope.TotalCostUsd
	if cost == 0 {
		cost = envelope.CostUsd
	}
	return &secondary.SessionResult{
		Output:     envelope.Result,
		CostUsd:    cost,
		TurnsUsed:  envelope.NumTurns,
		DurationMs: envelope.DurationMs,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Ensure Runner implements the interface
var _ secondary.SessionRunner = (*Runner)(nil)
