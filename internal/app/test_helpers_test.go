package app

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/siphio/piv-warden/internal/models"
	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// Shared mock implementations of the secondary ports. Per-test behavior
// is injected through fn fields and recorded through the slices.

// Ensure the mocks implement their interfaces
var (
	_ secondary.RegistryStore          = (*mockRegistryStore)(nil)
	_ secondary.ProjectStateRepository = (*mockProjectStateRepo)(nil)
	_ secondary.SessionHost            = (*mockSessionHost)(nil)
	_ secondary.ProcessController      = (*mockProcessController)(nil)
	_ secondary.FrameworkStore         = (*mockFrameworkStore)(nil)
	_ secondary.ImprovementLog         = (*mockImprovementLog)(nil)
	_ secondary.Notifier               = (*mockNotifier)(nil)
	_ secondary.SessionRunner          = (*mockSessionRunner)(nil)
	_ secondary.InterventionRepository = (*mockInterventionRepo)(nil)
	_ secondary.FixAttemptRepository   = (*mockFixAttemptRepo)(nil)
	_ secondary.PropagationRepository  = (*mockPropagationRepo)(nil)
	_ secondary.ManifestReader         = (*mockManifestReader)(nil)
)

// ----------------------------------------------------------------------------
// Registry store
// ----------------------------------------------------------------------------

type mockRegistryStore struct {
	registry *models.CentralRegistry
	loadErr  error
	saveErr  error
	saves    int
}

func newMockRegistryStore() *mockRegistryStore {
	return &mockRegistryStore{registry: models.NewRegistry()}
}

func (m *mockRegistryStore) Load(ctx context.Context) (*models.CentralRegistry, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.registry, nil
}

func (m *mockRegistryStore) Save(ctx context.Context, registry *models.CentralRegistry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.registry = registry
	return nil
}

func (m *mockRegistryStore) Path() string {
	return "/tmp/registry.json"
}

// seedProject registers a project directly in the mock registry.
func (m *mockRegistryStore) seedProject(p *models.RegistryProject) {
	m.registry.Upsert(p)
}

// ----------------------------------------------------------------------------
// Project state repository
// ----------------------------------------------------------------------------

type mockProjectStateRepo struct {
	states     map[string]*secondary.ProjectStateRecord
	increments []string
	resets     []string
	deletes    []string
}

func newMockProjectStateRepo() *mockProjectStateRepo {
	return &mockProjectStateRepo{states: make(map[string]*secondary.ProjectStateRecord)}
}

func (m *mockProjectStateRepo) Get(ctx context.Context, project string) (*secondary.ProjectStateRecord, error) {
	return m.states[project], nil
}

func (m *mockProjectStateRepo) Upsert(ctx context.Context, state *secondary.ProjectStateRecord) error {
	m.states[state.Project] = state
	return nil
}

func (m *mockProjectStateRepo) IncrementRestartCount(ctx context.Context, project string) (int, error) {
	m.increments = append(m.increments, project)
	state, ok := m.states[project]
	if !ok {
		state = &secondary.ProjectStateRecord{Project: project}
		m.states[project] = state
	}
	state.RestartCount++
	return state.RestartCount, nil
}

func (m *mockProjectStateRepo) ResetRestartCount(ctx context.Context, project string) error {
	m.resets = append(m.resets, project)
	if state, ok := m.states[project]; ok {
		state.RestartCount = 0
	}
	return nil
}

func (m *mockProjectStateRepo) Delete(ctx context.Context, project string) error {
	m.deletes = append(m.deletes, project)
	delete(m.states, project)
	return nil
}

func (m *mockProjectStateRepo) List(ctx context.Context) ([]*secondary.ProjectStateRecord, error) {
	var out []*secondary.ProjectStateRecord
	for _, state := range m.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}

// ----------------------------------------------------------------------------
// Session host (tmux)
// ----------------------------------------------------------------------------

type mockSessionHost struct {
	started  map[string]string // project -> command
	stopped  []string
	sessions map[string]bool
	startPid int
	startErr error
}

func newMockSessionHost() *mockSessionHost {
	return &mockSessionHost{
		started:  make(map[string]string),
		sessions: make(map[string]bool),
		startPid: 4242,
	}
}

func (m *mockSessionHost) StartOrchestrator(ctx context.Context, project, projectPath, command string) (int, error) {
	if m.startErr != nil {
		return 0, m.startErr
	}
	m.started[project] = command
	m.sessions[project] = true
	return m.startPid, nil
}

func (m *mockSessionHost) StopOrchestrator(ctx context.Context, project string) error {
	m.stopped = append(m.stopped, project)
	delete(m.sessions, project)
	return nil
}

func (m *mockSessionHost) HasSession(ctx context.Context, project string) bool {
	return m.sessions[project]
}

func (m *mockSessionHost) SessionName(project string) string {
	return "piv-" + project
}

// ----------------------------------------------------------------------------
// Process controller
// ----------------------------------------------------------------------------

type mockProcessController struct {
	alive        map[int]bool
	terminated   []int
	terminateErr error
}

func newMockProcessController() *mockProcessController {
	return &mockProcessController{alive: make(map[int]bool)}
}

func (m *mockProcessController) Alive(pid int) bool {
	return m.alive[pid]
}

func (m *mockProcessController) Terminate(pid int) error {
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminated = append(m.terminated, pid)
	return nil
}

// ----------------------------------------------------------------------------
// Framework store
// ----------------------------------------------------------------------------

type mockFrameworkStore struct {
	version        string
	versionErr     error
	sources        map[string]bool
	listFiles      []string
	copies         []string // "relPath->projectPath"
	copyErrFor     map[string]error
	copyAllErr     error
	reverted       []string // "treeRoot:relPath"
	revertErr      error
	validateReport *secondary.ValidationReport
	validateErr    error
	root           string
}

func newMockFrameworkStore() *mockFrameworkStore {
	return &mockFrameworkStore{
		version:        "ab12cd34",
		sources:        make(map[string]bool),
		copyErrFor:     make(map[string]error),
		validateReport: &secondary.ValidationReport{Passed: true},
		root:           "/tmp/framework",
	}
}

func (m *mockFrameworkStore) Version(ctx context.Context) (string, error) {
	if m.versionErr != nil {
		return "", m.versionErr
	}
	return m.version, nil
}

func (m *mockFrameworkStore) SourceExists(relPath string) bool {
	return m.sources[relPath]
}

func (m *mockFrameworkStore) CopyToProject(ctx context.Context, relPath, projectPath string) (int, error) {
	if err := m.copyErrFor[projectPath]; err != nil {
		return 0, err
	}
	m.copies = append(m.copies, relPath+"->"+projectPath)
	return 1, nil
}

func (m *mockFrameworkStore) CopyAllToProject(ctx context.Context, projectPath string) (int, error) {
	if m.copyAllErr != nil {
		return 0, m.copyAllErr
	}
	m.copies = append(m.copies, "*->"+projectPath)
	return len(m.listFiles), nil
}

func (m *mockFrameworkStore) ListCommandFiles(ctx context.Context) ([]string, error) {
	return m.listFiles, nil
}

func (m *mockFrameworkStore) RevertFile(ctx context.Context, treeRoot, relPath string) error {
	if m.revertErr != nil {
		return m.revertErr
	}
	m.reverted = append(m.reverted, treeRoot+":"+relPath)
	return nil
}

func (m *mockFrameworkStore) Validate(ctx context.Context, dir string) (*secondary.ValidationReport, error) {
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	return m.validateReport, nil
}

func (m *mockFrameworkStore) Root() string {
	return m.root
}

// ----------------------------------------------------------------------------
// Improvement log
// ----------------------------------------------------------------------------

type mockImprovementLog struct {
	entries []*models.ImprovementLogEntry
}

func (m *mockImprovementLog) Append(entry *models.ImprovementLogEntry) {
	m.entries = append(m.entries, entry)
}

func (m *mockImprovementLog) Tail(n int) ([]string, error) {
	var lines []string
	for _, e := range m.entries {
		lines = append(lines, fmt.Sprintf("## [%s] %s", e.Timestamp, e.Project))
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (m *mockImprovementLog) Follow(ctx context.Context, out io.Writer) error {
	return nil
}

func (m *mockImprovementLog) Path() string {
	return "/tmp/improvement-log.md"
}

// ----------------------------------------------------------------------------
// Notifier
// ----------------------------------------------------------------------------

type mockNotifier struct {
	sent    []string
	sendErr error
}

func (m *mockNotifier) Send(ctx context.Context, destination, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, text)
	return nil
}

// ----------------------------------------------------------------------------
// Session runner
// ----------------------------------------------------------------------------

type mockSessionRunner struct {
	runFn    func(ctx context.Context, req secondary.SessionRequest) (*secondary.SessionResult, error)
	requests []secondary.SessionRequest
}

func (m *mockSessionRunner) Run(ctx context.Context, req secondary.SessionRequest) (*secondary.SessionResult, error) {
	m.requests = append(m.requests, req)
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &secondary.SessionResult{Output: "{}"}, nil
}

// ----------------------------------------------------------------------------
// Intervention repository
// ----------------------------------------------------------------------------

type mockInterventionRepo struct {
	created   []*secondary.InterventionRecord
	createErr error
}

func (m *mockInterventionRepo) Create(ctx context.Context, intervention *secondary.InterventionRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, intervention)
	return nil
}

func (m *mockInterventionRepo) GetByID(ctx context.Context, id string) (*secondary.InterventionRecord, error) {
	for _, i := range m.created {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, fmt.Errorf("intervention not found: %s", id)
}

func (m *mockInterventionRepo) List(ctx context.Context, filters secondary.InterventionFilters) ([]*secondary.InterventionRecord, error) {
	var out []*secondary.InterventionRecord
	for _, i := range m.created {
		if filters.Project != "" && i.Project != filters.Project {
			continue
		}
		if filters.Action != "" && i.Action != filters.Action {
			continue
		}
		out = append(out, i)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *mockInterventionRepo) CountByProject(ctx context.Context, project string) (int, error) {
	count := 0
	for _, i := range m.created {
		if i.Project == project {
			count++
		}
	}
	return count, nil
}

// ----------------------------------------------------------------------------
// Fix attempt repository
// ----------------------------------------------------------------------------

type mockFixAttemptRepo struct {
	attempts         []*secondary.FixAttemptRecord
	failedSignatures map[string]bool
}

func newMockFixAttemptRepo() *mockFixAttemptRepo {
	return &mockFixAttemptRepo{failedSignatures: make(map[string]bool)}
}

func (m *mockFixAttemptRepo) Create(ctx context.Context, attempt *secondary.FixAttemptRecord) error {
	m.attempts = append(m.attempts, attempt)
	if !attempt.Succeeded {
		m.failedSignatures[attempt.Signature] = true
	}
	return nil
}

func (m *mockFixAttemptRepo) HasFailed(ctx context.Context, signature string) (bool, error) {
	return m.failedSignatures[signature], nil
}

func (m *mockFixAttemptRepo) ListByProject(ctx context.Context, project string) ([]*secondary.FixAttemptRecord, error) {
	var out []*secondary.FixAttemptRecord
	for _, a := range m.attempts {
		if a.Project == project {
			out = append(out, a)
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Propagation repository
// ----------------------------------------------------------------------------

type mockPropagationRepo struct {
	receipts []*secondary.PropagationRecord
}

func (m *mockPropagationRepo) Create(ctx context.Context, receipt *secondary.PropagationRecord) error {
	m.receipts = append(m.receipts, receipt)
	return nil
}

func (m *mockPropagationRepo) List(ctx context.Context, filters secondary.PropagationFilters) ([]*secondary.PropagationRecord, error) {
	var out []*secondary.PropagationRecord
	for _, r := range m.receipts {
		if filters.Project != "" && r.Project != filters.Project {
			continue
		}
		out = append(out, r)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Manifest reader
// ----------------------------------------------------------------------------

type mockManifestReader struct {
	manifests map[string]*models.Manifest // keyed by project path
	pending   map[string]int
	readErr   error
}

func newMockManifestReader() *mockManifestReader {
	return &mockManifestReader{
		manifests: make(map[string]*models.Manifest),
		pending:   make(map[string]int),
	}
}

func (m *mockManifestReader) Read(projectPath string) (*models.Manifest, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.manifests[projectPath], nil
}

func (m *mockManifestReader) PendingFailureCount(projectPath string) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.pending[projectPath], nil
}
