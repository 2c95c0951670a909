package stall

import (
	"errors"
	"testing"
	"time"

	"github.com/siphio/piv-warden/internal/models"
)

type fakeProber struct {
	alive map[int]bool
}

func (f *fakeProber) Alive(pid int) bool {
	return f.alive[pid]
}

type fakeManifests struct {
	pending map[string]int
	err     error
}

func (f *fakeManifests) PendingFailureCount(projectPath string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pending[projectPath], nil
}

func intPtr(v int) *int {
	return &v
}

func testProject(heartbeat string, pid *int) *models.RegistryProject {
	return &models.RegistryProject{
		Name:            "alpha",
		Path:            "/projects/alpha",
		Status:          models.StatusRunning,
		Heartbeat:       heartbeat,
		OrchestratorPid: pid,
	}
}

func TestClassify_FreshHeartbeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 15 * time.Minute

	tests := []struct {
		name      string
		heartbeat time.Time
	}{
		{name: "one minute old", heartbeat: now.Add(-time.Minute)},
		{name: "just under threshold", heartbeat: now.Add(-staleAfter + time.Second)},
		{name: "future dated", heartbeat: now.Add(5 * time.Minute)},
	}

	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{}},
		Manifests: &fakeManifests{},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject(tt.heartbeat.Format(time.RFC3339), intPtr(999999999))
			got := c.Classify(p, now, staleAfter)
			if got != nil {
				t.Errorf("Classify() = %+v, want nil", got)
			}
		})
	}
}

func TestClassify_ThresholdIsInclusive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 15 * time.Minute

	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{1234: true}},
		Manifests: &fakeManifests{},
	}

	// Exactly at the threshold counts as stale.
	p := testProject(now.Add(-staleAfter).Format(time.RFC3339), intPtr(1234))
	got := c.Classify(p, now, staleAfter)
	if got == nil {
		t.Fatal("expected classification at exact threshold, got nil")
	}
	if got.HeartbeatAgeMs != staleAfter.Milliseconds() {
		t.Errorf("expected age %d ms, got %d", staleAfter.Milliseconds(), got.HeartbeatAgeMs)
	}
	if !got.HeartbeatKnown {
		t.Error("expected HeartbeatKnown for a parseable heartbeat")
	}
}

func TestClassify_DeadProcess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{}},
		Manifests: &fakeManifests{},
	}

	p := testProject(now.Add(-20*time.Minute).Format(time.RFC3339), intPtr(999999999))
	got := c.Classify(p, now, 15*time.Minute)
	if got == nil {
		t.Fatal("expected classification, got nil")
	}
	if got.StallType != TypeOrchestratorCrashed {
		t.Errorf("expected %q, got %q", TypeOrchestratorCrashed, got.StallType)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %q", got.Confidence)
	}
	if got.Details == "" {
		t.Error("expected details naming the examined PID")
	}
}

func TestClassify_MissingPid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{}},
		Manifests: &fakeManifests{},
	}

	p := testProject(now.Add(-20*time.Minute).Format(time.RFC3339), nil)
	got := c.Classify(p, now, 15*time.Minute)
	if got == nil {
		t.Fatal("expected classification, got nil")
	}
	if got.StallType != TypeOrchestratorCrashed {
		t.Errorf("expected %q, got %q", TypeOrchestratorCrashed, got.StallType)
	}
}

func TestClassify_AliveWithPendingFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{1234: true}},
		Manifests: &fakeManifests{pending: map[string]int{"/projects/alpha": 2}},
	}

	p := testProject(now.Add(-20*time.Minute).Format(time.RFC3339), intPtr(1234))
	got := c.Classify(p, now, 15*time.Minute)
	if got == nil {
		t.Fatal("expected classification, got nil")
	}
	if got.StallType != TypeExecutionError {
		t.Errorf("expected %q, got %q", TypeExecutionError, got.StallType)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %q", got.Confidence)
	}
}

func TestClassify_AliveWithoutClues(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		manifests *fakeManifests
	}{
		{name: "no manifest entries", manifests: &fakeManifests{}},
		{name: "manifest unreadable", manifests: &fakeManifests{err: errors.New("permission denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Classifier{
				Prober:    &fakeProber{alive: map[int]bool{1234: true}},
				Manifests: tt.manifests,
			}
			p := testProject(now.Add(-20*time.Minute).Format(time.RFC3339), intPtr(1234))
			got := c.Classify(p, now, 15*time.Minute)
			if got == nil {
				t.Fatal("expected classification, got nil")
			}
			if got.StallType != TypeSessionHung {
				t.Errorf("expected %q, got %q", TypeSessionHung, got.StallType)
			}
			if got.Confidence != ConfidenceLow {
				t.Errorf("expected low confidence, got %q", got.Confidence)
			}
		})
	}
}

func TestClassify_UnknownHeartbeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Classifier{
		Prober:    &fakeProber{alive: map[int]bool{}},
		Manifests: &fakeManifests{},
	}

	tests := []struct {
		name      string
		heartbeat string
	}{
		{name: "never recorded", heartbeat: ""},
		{name: "unparseable", heartbeat: "not-a-timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject(tt.heartbeat, intPtr(999999999))
			got := c.Classify(p, now, 15*time.Minute)
			if got == nil {
				t.Fatal("expected classification for unknown heartbeat, got nil")
			}
			if got.HeartbeatAgeMs != -1 {
				t.Errorf("expected age -1 for unknown heartbeat, got %d", got.HeartbeatAgeMs)
			}
			if got.HeartbeatKnown {
				t.Error("unknown heartbeat must not report HeartbeatKnown")
			}
		})
	}
}

func TestHealthy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 15 * time.Minute

	tests := []struct {
		name      string
		heartbeat string
		want      bool
	}{
		{name: "fresh", heartbeat: now.Add(-time.Minute).Format(time.RFC3339), want: true},
		{name: "future", heartbeat: now.Add(time.Hour).Format(time.RFC3339), want: true},
		{name: "stale", heartbeat: now.Add(-time.Hour).Format(time.RFC3339), want: false},
		{name: "empty", heartbeat: "", want: false},
		{name: "garbage", heartbeat: "yesterday", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Healthy(tt.heartbeat, now, staleAfter); got != tt.want {
				t.Errorf("Healthy(%q) = %v, want %v", tt.heartbeat, got, tt.want)
			}
		})
	}
}
