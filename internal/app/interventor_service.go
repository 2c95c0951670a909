package app

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/siphio/piv-warden/internal/core/recovery"
	"github.com/siphio/piv-warden/internal/core/stall"
	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/primary"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Tool sets for reasoning sessions. Diagnosis may inspect the tree but
// never touch it; only fix sessions get edit access.
var (
	diagnoseTools = []string{"Read", "Glob", "Grep"}
	fixTools      = []string{"Read", "Glob", "Grep", "Edit", "Write"}
)

// Path prefixes that decide bug location when neither the error category
// nor a multi-project pattern already did.
var (
	frameworkPathPrefixes = []string{".claude/", "commands/"}
	projectPathPrefixes   = []string{"src/", "test/", "tests/", "lib/"}
)

const memoryRecallLimit = 3

// InterventorSettings carries the session and notification knobs the
// interventor reads from configuration.
type InterventorSettings struct {
	DiagnoseTimeout time.Duration
	FixTimeout      time.Duration
	MaxTurns        int
	MaxBudgetUsd    float64
	NotifyWebhook   string
}

// InterventorServiceImpl implements the InterventorService interface.
type InterventorServiceImpl struct {
	runner        secondary.SessionRunner
	framework     secondary.FrameworkStore
	interventions secondary.InterventionRepository
	fixAttempts   secondary.FixAttemptRepository
	log           secondary.ImprovementLog
	notifier      secondary.Notifier
	memory        *MemoryContext
	propagation   primary.PropagationService
	settings      InterventorSettings
}

// NewInterventorService creates a new interventor service.
func NewInterventorService(
	runner secondary.SessionRunner,
	framework secondary.FrameworkStore,
	interventions secondary.InterventionRepository,
	fixAttempts secondary.FixAttemptRepository,
	log secondary.ImprovementLog,
	notifier secondary.Notifier,
	memory *MemoryContext,
	propagation primary.PropagationService,
	settings InterventorSettings,
) *InterventorServiceImpl {
	if memory == nil {
		memory = NewMemoryContext(nil)
	}
	return &InterventorServiceImpl{
		runner:        runner,
		framework:     framework,
		interventions: interventions,
		fixAttempts:   fixAttempts,
		log:           log,
		notifier:      notifier,
		memory:        memory,
		propagation:   propagation,
		settings:      settings,
	}
}

// FixSignature keys fix attempts for dedup. Two diagnoses naming the
// same file and root cause count as the same fix for the escalation
// policy.
func FixSignature(filePath, rootCause string) string {
	h := sha256.Sum256([]byte(filePath + "\x00" + rootCause))
	return fmt.Sprintf("%x", h)[:16]
}

// HandleStall runs the full pipeline for one stalled project.
func (s *InterventorServiceImpl) HandleStall(ctx context.Context, req primary.HandleStallRequest) (*primary.InterventionReport, error) {
	report := &primary.InterventionReport{
		ID:      "INT-" + uuid.NewString()[:8],
		Project: req.Project,
		Action:  recovery.ActionDiagnose,
	}

	// 1. Recall what fixed similar failures before.
	hits := s.memory.RecallForStall(ctx, req.StallType+": "+req.Details, req.Project, memoryRecallLimit)

	// 2. Diagnose. Session failures come back as degraded results, not errors.
	diag, err := s.Diagnose(ctx, primary.DiagnoseRequest{
		Project:       req.Project,
		ProjectPath:   req.ProjectPath,
		StallType:     req.StallType,
		Details:       req.Details,
		Phase:         req.Phase,
		MemoryContext: FormatMemoryHits(hits),
	})
	if err != nil {
		return nil, err
	}

	// 3. Refine the bug location against this cycle's other sightings.
	sightings := append([]primary.StallSighting{{
		Project:   req.Project,
		Phase:     req.Phase,
		StallType: req.StallType,
	}}, req.Concurrent...)
	diag = s.ClassifyBugLocation(diag, sightings)
	report.Diagnostic = diag

	// 4. Escalation policy runs before any edit session is considered.
	decision, err := s.escalationDecision(ctx, diag)
	if err != nil {
		return nil, err
	}
	if decision.Escalate {
		report.Outcome = primary.InterventionEscalated
		report.Escalated = true
		report.EscalationReason = decision.Reason
		s.notifyEscalation(ctx, req, diag, decision.Reason)
		s.finish(ctx, req, report)
		return report, nil
	}

	// 5. Apply the fix in the diagnosed scope.
	var fix *primary.HotFixResult
	if diag.BugLocation == primary.BugLocationFramework {
		fix, err = s.ApplyFrameworkHotFix(ctx, diag)
	} else {
		fix, err = s.ApplyProjectFix(ctx, req.ProjectPath, diag)
	}
	if err != nil {
		return nil, err
	}
	report.Fix = fix
	s.recordFixAttempt(ctx, req.Project, diag, fix)

	if !fix.Success {
		report.Outcome = primary.InterventionFailed
		s.finish(ctx, req, report)
		return report, nil
	}
	report.Outcome = primary.InterventionRecovered

	// 6. A validated fix becomes a memory other projects can recall.
	s.storeFixMemory(ctx, req, diag, fix)

	// 7. Framework fixes roll out to every project still on an old tree.
	if diag.BugLocation == primary.BugLocationFramework && diag.FilePath != "" {
		report.PropagatedTo = s.propagateFix(ctx, diag.FilePath)
	}

	s.finish(ctx, req, report)
	return report, nil
}

// Diagnose runs one read-only reasoning session against the stalled
// project and parses its structured result.
func (s *InterventorServiceImpl) Diagnose(ctx context.Context, req primary.DiagnoseRequest) (*primary.DiagnosticResult, error) {
	result, err := s.runner.Run(ctx, secondary.SessionRequest{
		WorkDir:      req.ProjectPath,
		Prompt:       diagnosePrompt(req),
		AllowedTools: diagnoseTools,
		MaxTurns:     s.settings.MaxTurns,
		MaxBudgetUsd: s.settings.MaxBudgetUsd,
		Timeout:      s.settings.DiagnoseTimeout,
	})
	if err != nil {
		return degradedDiagnostic(fmt.Sprintf("diagnosis session failed: %v", err), result), nil
	}

	diag, parseErr := parseDiagnostic(result.Output)
	if parseErr != nil {
		return degradedDiagnostic(fmt.Sprintf("diagnosis returned no usable result: %v", parseErr), result), nil
	}
	diag.SessionCostUsd = result.CostUsd
	return diag, nil
}

// ClassifyBugLocation refines a diagnostic in place and returns it.
func (s *InterventorServiceImpl) ClassifyBugLocation(diagnostic *primary.DiagnosticResult, concurrent []primary.StallSighting) *primary.DiagnosticResult {
	// 1. Credential and auth failures are never code bugs.
	if isCredentialCategory(diagnostic.ErrorCategory) {
		diagnostic.BugLocation = primary.BugLocationHumanRequired
		return diagnostic
	}

	// 2. The same stall in the same phase across several projects points
	// at the shared tree, whatever the session concluded.
	if group := sharedStallGroup(concurrent); len(group) >= 2 {
		diagnostic.BugLocation = primary.BugLocationFramework
		diagnostic.Confidence = stall.ConfidenceHigh
		diagnostic.MultiProjectPattern = true
		diagnostic.AffectedProjects = group
		return diagnostic
	}

	// 3. Fall back to the file path.
	s.classifyByPath(diagnostic)
	return diagnostic
}

// ApplyFrameworkHotFix runs an edit session against the canonical
// command tree, then validates and reverts on failure.
func (s *InterventorServiceImpl) ApplyFrameworkHotFix(ctx context.Context, diagnostic *primary.DiagnosticResult) (*primary.HotFixResult, error) {
	return s.applyFix(ctx, s.framework.Root(), diagnostic), nil
}

// ApplyProjectFix is the same protocol scoped to the project's own tree.
func (s *InterventorServiceImpl) ApplyProjectFix(ctx context.Context, projectPath string, diagnostic *primary.DiagnosticResult) (*primary.HotFixResult, error) {
	return s.applyFix(ctx, projectPath, diagnostic), nil
}

// ShouldEscalate applies the escalation policy for a diagnostic.
func (s *InterventorServiceImpl) ShouldEscalate(ctx context.Context, project string, diagnostic *primary.DiagnosticResult) (bool, error) {
	decision, err := s.escalationDecision(ctx, diagnostic)
	if err != nil {
		return false, err
	}
	return decision.Escalate, nil
}

func (s *InterventorServiceImpl) escalationDecision(ctx context.Context, diagnostic *primary.DiagnosticResult) (recovery.EscalationDecision, error) {
	alreadyFailed, err := s.fixAttempts.HasFailed(ctx, FixSignature(diagnostic.FilePath, diagnostic.RootCause))
	if err != nil {
		return recovery.EscalationDecision{}, fmt.Errorf("failed to check prior fix attempts: %w", err)
	}
	return recovery.ShouldEscalate(diagnostic.BugLocation, diagnostic.Confidence, diagnostic.FilePath, alreadyFailed), nil
}

// applyFix runs one edit session scoped to workDir, then validates the
// tree. The session's own claim of success is never trusted: validation
// always runs, and a failing tree is reverted before reporting failure.
func (s *InterventorServiceImpl) applyFix(ctx context.Context, workDir string, diagnostic *primary.DiagnosticResult) *primary.HotFixResult {
	fix := &primary.HotFixResult{FilePath: diagnostic.FilePath}

	result, err := s.runner.Run(ctx, secondary.SessionRequest{
		WorkDir:      workDir,
		Prompt:       fixPrompt(diagnostic),
		AllowedTools: fixTools,
		MaxTurns:     s.settings.MaxTurns,
		MaxBudgetUsd: s.settings.MaxBudgetUsd,
		Timeout:      s.settings.FixTimeout,
	})
	if result != nil {
		fix.SessionCostUsd = result.CostUsd
	}
	if err != nil {
		// A dead session may have left a half-applied edit behind.
		s.revertFix(ctx, workDir, fix)
		fix.Details = fmt.Sprintf("fix session failed: %v", err)
		return fix
	}

	if summary := parseFixSummary(result.Output); summary != nil {
		fix.LinesChanged = summary.LinesChanged
		if summary.FilePath != "" {
			fix.FilePath = summary.FilePath
		}
	}

	report, err := s.framework.Validate(ctx, workDir)
	if err != nil {
		s.revertFix(ctx, workDir, fix)
		fix.Details = fmt.Sprintf("validation failed to run: %v", err)
		return fix
	}
	if !report.Passed {
		s.revertFix(ctx, workDir, fix)
		fix.Details = fmt.Sprintf("validation failed: %s", report.FailedCommand)
		return fix
	}

	fix.Success = true
	fix.ValidationPassed = true
	fix.Details = "fix applied and validated"
	return fix
}

func (s *InterventorServiceImpl) revertFix(ctx context.Context, treeRoot string, fix *primary.HotFixResult) {
	if fix.FilePath == "" {
		return
	}
	if err := s.framework.RevertFile(ctx, treeRoot, fix.FilePath); err == nil {
		fix.RevertedOnFailure = true
	}
}

func (s *InterventorServiceImpl) classifyByPath(diagnostic *primary.DiagnosticResult) {
	path := filepath.ToSlash(diagnostic.FilePath)
	if path == "" {
		return
	}
	if root := filepath.ToSlash(s.framework.Root()); root != "" && strings.HasPrefix(path, root+"/") {
		diagnostic.BugLocation = primary.BugLocationFramework
		return
	}
	if matchesPathPrefix(path, frameworkPathPrefixes) {
		diagnostic.BugLocation = primary.BugLocationFramework
		return
	}
	if matchesPathPrefix(path, projectPathPrefixes) {
		diagnostic.BugLocation = primary.BugLocationProject
	}
}

func matchesPathPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) || strings.Contains(path, "/"+prefix) {
			return true
		}
	}
	return false
}

func isCredentialCategory(category string) bool {
	lower := strings.ToLower(category)
	return strings.Contains(lower, "credential") || strings.Contains(lower, "auth")
}

// sharedStallGroup finds projects stalled the same way in the same
// phase. Returns the sorted names of the largest such group, or nil
// when every sighting is unique.
func sharedStallGroup(sightings []primary.StallSighting) []string {
	groups := make(map[string]map[string]bool)
	for _, sighting := range sightings {
		if sighting.StallType == "" {
			continue
		}
		key := phaseKey(sighting.Phase) + "|" + sighting.StallType
		if groups[key] == nil {
			groups[key] = make(map[string]bool)
		}
		groups[key][sighting.Project] = true
	}

	var best []string
	var bestKey string
	for key, projects := range groups {
		if len(projects) < 2 {
			continue
		}
		names := make([]string, 0, len(projects))
		for name := range projects {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > len(best) || (len(names) == len(best) && key < bestKey) {
			best = names
			bestKey = key
		}
	}
	return best
}

func phaseKey(phase *int) string {
	if phase == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *phase)
}

// propagateFix rolls a validated framework fix out to every project
// whose command tree is behind the canonical version.
func (s *InterventorServiceImpl) propagateFix(ctx context.Context, filePath string) []string {
	outdated, err := s.propagation.GetOutdated(ctx)
	if err != nil || len(outdated) == 0 {
		return nil
	}
	targets := make([]string, 0, len(outdated))
	for _, project := range outdated {
		targets = append(targets, project.Name)
	}

	results, err := s.propagation.Propagate(ctx, primary.PropagateRequest{
		RelPath: s.frameworkRelPath(filePath),
		Targets: targets,
	})
	if err != nil {
		return nil
	}

	var propagated []string
	for _, result := range results {
		if result.Success {
			propagated = append(propagated, result.Project)
		}
	}
	sort.Strings(propagated)
	return propagated
}

// frameworkRelPath strips the canonical tree root from a session-reported
// path so propagation sees the path relative to the tree.
func (s *InterventorServiceImpl) frameworkRelPath(filePath string) string {
	root := s.framework.Root()
	if root == "" {
		return filePath
	}
	if rel, err := filepath.Rel(root, filePath); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filePath
}

func (s *InterventorServiceImpl) storeFixMemory(ctx context.Context, req primary.HandleStallRequest, diagnostic *primary.DiagnosticResult, fix *primary.HotFixResult) {
	if !s.memory.Enabled() {
		return
	}

	// Framework fixes are recallable fleet-wide; project fixes stay scoped.
	containerTag := req.Project
	if diagnostic.BugLocation == primary.BugLocationFramework {
		containerTag = ""
	}

	metadata := map[string]string{
		"project":   req.Project,
		"fix_type":  diagnostic.BugLocation,
		"resolved":  "true",
		"stall":     req.StallType,
		"file_path": fix.FilePath,
		"severity":  stallSeverity(req.StallType),
	}
	if diagnostic.ErrorCategory != "" {
		metadata["error_category"] = diagnostic.ErrorCategory
	}
	if req.Phase != nil {
		metadata["phase"] = fmt.Sprintf("%d", *req.Phase)
	}
	if diagnostic.BugLocation == primary.BugLocationFramework && fix.FilePath != "" {
		metadata["command"] = strings.TrimSuffix(filepath.Base(fix.FilePath), ".md")
	}

	s.memory.StoreFix(ctx, &secondary.FixRecord{
		Content:       fmt.Sprintf("%s stall in %s. Root cause: %s Fix: edited %s, %s", req.StallType, req.Project, diagnostic.RootCause, fix.FilePath, fix.Details),
		CustomID:      FixSignature(diagnostic.FilePath, diagnostic.RootCause),
		ContainerTag:  containerTag,
		Metadata:      metadata,
		EntityContext: fmt.Sprintf("%s (%d lines changed)", fix.FilePath, fix.LinesChanged),
	})
}

// stallSeverity maps stall evidence onto the memory severity scale.
func stallSeverity(stallType string) string {
	switch stallType {
	case stall.TypeOrchestratorCrashed:
		return "critical"
	case stall.TypeExecutionError:
		return "high"
	default:
		return "medium"
	}
}

func (s *InterventorServiceImpl) notifyEscalation(ctx context.Context, req primary.HandleStallRequest, diagnostic *primary.DiagnosticResult, reason string) {
	if s.notifier == nil || s.settings.NotifyWebhook == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Project %q needs a human: %s\n", req.Project, reason)
	fmt.Fprintf(&b, "Stall: %s", req.StallType)
	if req.Phase != nil {
		fmt.Fprintf(&b, " (phase %d)", *req.Phase)
	}
	b.WriteString("\n")
	if diagnostic.RootCause != "" {
		fmt.Fprintf(&b, "Root cause: %s\n", diagnostic.RootCause)
	}
	if diagnostic.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", diagnostic.FilePath)
	}
	_ = s.notifier.Send(ctx, s.settings.NotifyWebhook, b.String())
}

// recordFixAttempt persists the attempt so an identical diagnosis later
// hits the already-failed-once escalation rule. Best effort: the fix
// itself already happened.
func (s *InterventorServiceImpl) recordFixAttempt(ctx context.Context, project string, diagnostic *primary.DiagnosticResult, fix *primary.HotFixResult) {
	scope := "project"
	if diagnostic.BugLocation == primary.BugLocationFramework {
		scope = "framework"
	}
	_ = s.fixAttempts.Create(ctx, &secondary.FixAttemptRecord{
		ID:        "FIX-" + uuid.NewString()[:8],
		Project:   project,
		FilePath:  diagnostic.FilePath,
		RootCause: diagnostic.RootCause,
		Signature: FixSignature(diagnostic.FilePath, diagnostic.RootCause),
		Scope:     scope,
		Succeeded: fix.Success,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// finish writes the intervention record and the improvement log entry.
// Both are history, not control flow: failures are swallowed.
func (s *InterventorServiceImpl) finish(ctx context.Context, req primary.HandleStallRequest, report *primary.InterventionReport) {
	now := time.Now().UTC().Format(time.RFC3339)

	record := &secondary.InterventionRecord{
		ID:         report.ID,
		Project:    req.Project,
		StallType:  req.StallType,
		Confidence: req.Confidence,
		Action:     report.Action,
		Outcome:    report.Outcome,
		Details:    interventionDetails(report),
		CreatedAt:  now,
	}
	entry := &models.ImprovementLogEntry{
		Timestamp:    now,
		Project:      req.Project,
		Phase:        req.Phase,
		StallType:    req.StallType,
		Action:       report.Action,
		Outcome:      report.Outcome,
		Details:      record.Details,
		PropagatedTo: report.PropagatedTo,
	}
	if d := report.Diagnostic; d != nil {
		record.BugLocation = d.BugLocation
		record.RootCause = d.RootCause
		record.FilePath = d.FilePath
		record.CostUsd = d.SessionCostUsd
		entry.BugLocation = d.BugLocation
		entry.RootCause = d.RootCause
		entry.FilePath = d.FilePath
	}
	if f := report.Fix; f != nil {
		record.CostUsd += f.SessionCostUsd
		entry.FixApplied = f.Success
	}

	_ = s.interventions.Create(ctx, record)
	s.log.Append(entry)
}

func interventionDetails(report *primary.InterventionReport) string {
	if report.Escalated {
		return "escalated: " + report.EscalationReason
	}
	if report.Fix != nil {
		return report.Fix.Details
	}
	return ""
}

// diagnosticEnvelope is the JSON contract diagnosis sessions reply with.
type diagnosticEnvelope struct {
	BugLocation   string `json:"bugLocation"`
	Confidence    string `json:"confidence"`
	RootCause     string `json:"rootCause"`
	FilePath      string `json:"filePath"`
	ErrorCategory string `json:"errorCategory"`
}

// fixEnvelope is the JSON contract fix sessions reply with.
type fixEnvelope struct {
	FilePath     string `json:"filePath"`
	LinesChanged int    `json:"linesChanged"`
	Summary      string `json:"summary"`
}

func parseDiagnostic(output string) (*primary.DiagnosticResult, error) {
	raw, err := extractJSON(output)
	if err != nil {
		return nil, err
	}
	var envelope diagnosticEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed diagnostic JSON: %w", err)
	}

	switch envelope.BugLocation {
	case primary.BugLocationFramework, primary.BugLocationProject, primary.BugLocationHumanRequired:
	default:
		return nil, fmt.Errorf("unknown bug location %q", envelope.BugLocation)
	}
	switch envelope.Confidence {
	case stall.ConfidenceHigh, stall.ConfidenceMedium, stall.ConfidenceLow:
	default:
		envelope.Confidence = stall.ConfidenceLow
	}

	return &primary.DiagnosticResult{
		BugLocation:   envelope.BugLocation,
		Confidence:    envelope.Confidence,
		RootCause:     envelope.RootCause,
		FilePath:      envelope.FilePath,
		ErrorCategory: envelope.ErrorCategory,
	}, nil
}

func parseFixSummary(output string) *fixEnvelope {
	raw, err := extractJSON(output)
	if err != nil {
		return nil
	}
	var envelope fixEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return &envelope
}

// extractJSON pulls the outermost JSON object out of session output,
// tolerating prose or code fences around it.
func extractJSON(output string) ([]byte, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in session output")
	}
	return []byte(output[start : end+1]), nil
}

func degradedDiagnostic(reason string, result *secondary.SessionResult) *primary.DiagnosticResult {
	diagnostic := &primary.DiagnosticResult{
		BugLocation: primary.BugLocationHumanRequired,
		Confidence:  stall.ConfidenceLow,
		RootCause:   reason,
	}
	if result != nil {
		diagnostic.SessionCostUsd = result.CostUsd
	}
	return diagnostic
}

func diagnosePrompt(req primary.DiagnoseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The autonomous pipeline orchestrator for project %q has stalled.\n\n", req.Project)
	fmt.Fprintf(&b, "Stall type: %s\n", req.StallType)
	if req.Phase != nil {
		fmt.Fprintf(&b, "Phase when it stalled: %d\n", *req.Phase)
	}
	if req.Details != "" {
		fmt.Fprintf(&b, "Observed: %s\n", req.Details)
	}
	if req.MemoryContext != "" {
		b.WriteString("\n")
		b.WriteString(req.MemoryContext)
	}
	b.WriteString("\nInvestigate the repository and find the root cause. Do not modify anything.\n")
	b.WriteString("Reply with a single JSON object and nothing else:\n")
	b.WriteString(`{"bugLocation": "framework_bug"|"project_bug"|"human_required", "confidence": "high"|"medium"|"low", "rootCause": "<one sentence>", "filePath": "<path or empty>", "errorCategory": "<short category or empty>"}`)
	b.WriteString("\n")
	return b.String()
}

func fixPrompt(diagnostic *primary.DiagnosticResult) string {
	var b strings.Builder
	b.WriteString("Apply a minimal fix for the following diagnosed failure.\n\n")
	fmt.Fprintf(&b, "Root cause: %s\n", diagnostic.RootCause)
	if diagnostic.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", diagnostic.FilePath)
	}
	if diagnostic.MultiProjectPattern {
		fmt.Fprintf(&b, "The same failure hit these projects at once: %s\n", strings.Join(diagnostic.AffectedProjects, ", "))
	}
	b.WriteString("\nChange as little as possible and do not refactor surrounding code.\n")
	b.WriteString("Reply with a single JSON object and nothing else:\n")
	b.WriteString(`{"filePath": "<path you changed>", "linesChanged": <count>, "summary": "<one sentence>"}`)
	b.WriteString("\n")
	return b.String()
}

// Verify interface compliance at compile time.
var _ primary.InterventorService = (*InterventorServiceImpl)(nil)
