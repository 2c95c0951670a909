package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// MemoryContext wraps the optional fix memory behind nil-safe helpers.
// A nil backend means memory is not configured; every method then
// returns an empty result so callers never branch on availability.
type MemoryContext struct {
	memory secondary.FixMemory
}

// NewMemoryContext creates memory helpers over an optional backend.
// Pass nil when memory is disabled.
func NewMemoryContext(memory secondary.FixMemory) *MemoryContext {
	return &MemoryContext{memory: memory}
}

// Enabled reports whether a memory backend is wired.
func (m *MemoryContext) Enabled() bool {
	return m.memory != nil
}

// RecallForStall combines a project-scoped recall with a cross-project
// recall, deduplicated by hit ID with the highest-similarity instance
// winning. Results come back ordered most similar first.
func (m *MemoryContext) RecallForStall(ctx context.Context, query, project string, limit int) []secondary.MemoryHit {
	if m.memory == nil {
		return nil
	}

	scoped := m.memory.Recall(ctx, query, project, limit)
	global := m.memory.Recall(ctx, query, "", limit)

	merged := make([]secondary.MemoryHit, 0, len(scoped)+len(global))
	merged = append(merged, scoped...)
	merged = append(merged, global...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, hit := range merged {
		if seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true
		out = append(out, hit)
	}
	return out
}

// StoreFix persists a fix record, best effort. Returns the stored ID or
// "" when memory is disabled or the backend failed.
func (m *MemoryContext) StoreFix(ctx context.Context, record *secondary.FixRecord) string {
	if m.memory == nil {
		return ""
	}
	return m.memory.Store(ctx, record)
}

// FormatMemoryHits renders recalled fixes as a prompt block. An empty
// hit list renders as "" so prompts carry no vestigial section.
func FormatMemoryHits(hits []secondary.MemoryHit) string {
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Past fixes for similar failures, most similar first:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "%d. [similarity %.2f] %s\n", i+1, hit.Similarity, strings.TrimSpace(hit.Text))
		if category := hit.Metadata["error_category"]; category != "" {
			fmt.Fprintf(&b, "   category: %s\n", category)
		}
	}
	return b.String()
}
