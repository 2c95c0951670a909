// Package memory stores and recalls past fixes through Weaviate.
//
// Every operation here degrades instead of failing: the diagnosis
// pipeline must behave identically whether memory is absent,
// unreachable, or healthy, so errors collapse to empty results and are
// at most logged.
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

// FixClassName is the Weaviate class holding fix records.
const FixClassName = "PivFixMemory"

// metadataKeys are the flat properties mirrored from FixRecord.Metadata.
var metadataKeys = []string{
	"error_category", "phase", "project", "fix_type", "severity", "command", "resolved",
}

// WeaviateMemory implements secondary.FixMemory against a Weaviate
// instance.
type WeaviateMemory struct {
	client *weaviate.Client
}

// NewWeaviateMemory creates a memory adapter for the given endpoint URL
// (e.g. "http://localhost:8080"). Only the client is constructed here;
// connectivity is probed lazily so a down backend never blocks startup.
func NewWeaviateMemory(endpoint string) (*WeaviateMemory, error) {
	cfg := weaviate.Config{
		Host:   endpoint,
		Scheme: "http",
	}
	if strings.HasPrefix(endpoint, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(endpoint, "https://")
	} else if strings.HasPrefix(endpoint, "http://") {
		cfg.Host = strings.TrimPrefix(endpoint, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateMemory{client: client}, nil
}

// CheckHealth probes backend readiness.
func (m *WeaviateMemory) CheckHealth(ctx context.Context) bool {
	ready, err := m.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ready
}

// EnsureSchema creates the fix class if it does not exist yet. Called
// once at startup; failures are reported so the caller can disable
// memory for the run.
func (m *WeaviateMemory) EnsureSchema(ctx context.Context) error {
	_, err := m.client.Schema().ClassGetter().WithClassName(FixClassName).Do(ctx)
	if err == nil {
		return nil
	}

	// ClassGetter errors for a missing class; create it.
	if err := m.client.Schema().ClassCreator().WithClass(fixClass()).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", FixClassName, err)
	}
	return nil
}

func fixClass() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	props := []*models.Property{
		{
			Name:        "content",
			DataType:    []string{"text"},
			Description: "Natural-language description of the stall and the fix that resolved it.",
		},
		{
			Name:            "customId",
			DataType:        []string{"text"},
			Description:     "Deterministic fix signature, used for cross-run identity.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "containerTag",
			DataType:        []string{"text"},
			Description:     "Scope tag, either a project name or the shared framework tag.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:        "entityContext",
			DataType:    []string{"text"},
			Description: "Files and commands the fix touched.",
		},
	}
	for _, key := range metadataKeys {
		props = append(props, &models.Property{
			Name:            key,
			DataType:        []string{"text"},
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		})
	}

	return &models.Class{
		Class:       FixClassName,
		Description: "Past orchestrator-fleet fixes, recalled semantically during diagnosis.",
		Properties:  props,
	}
}

// Recall performs a ranked semantic search over stored fixes. An empty
// containerTag searches across all scopes. Any backend failure yields
// an empty slice.
func (m *WeaviateMemory) Recall(ctx context.Context, query, containerTag string, limit int) []secondary.MemoryHit {
	if limit <= 0 {
		limit = 5
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "customId"},
		{Name: "entityContext"},
		{Name: "_additional { id certainty }"},
	}
	for _, key := range metadataKeys {
		fields = append(fields, graphql.Field{Name: key})
	}

	nearText := m.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	builder := m.client.GraphQL().Get().
		WithClassName(FixClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit)

	if containerTag != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"containerTag"}).
			WithOperator(filters.Equal).
			WithValueString(containerTag))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		log.Printf("[MEMORY] recall failed: %v", err)
		return nil
	}
	if len(result.Errors) > 0 {
		log.Printf("[MEMORY] recall failed: %s", result.Errors[0].Message)
		return nil
	}
	return parseHits(result)
}

// parseHits flattens a GraphQL response into ranked hits. Malformed
// objects are skipped rather than failing the whole recall.
func parseHits(result *models.GraphQLResponse) []secondary.MemoryHit {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[FixClassName].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]secondary.MemoryHit, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		hit := secondary.MemoryHit{Metadata: make(map[string]string)}
		if content, ok := props["content"].(string); ok {
			hit.Text = content
		}
		for _, key := range metadataKeys {
			if v, ok := props[key].(string); ok && v != "" {
				hit.Metadata[key] = v
			}
		}
		if ec, ok := props["entityContext"].(string); ok && ec != "" {
			hit.Metadata["entity_context"] = ec
		}

		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				hit.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Similarity = certainty
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// Store persists one fix record and returns its Weaviate ID, or "" on
// any failure.
func (m *WeaviateMemory) Store(ctx context.Context, record *secondary.FixRecord) string {
	props := map[string]interface{}{
		"content":       record.Content,
		"customId":      record.CustomID,
		"containerTag":  record.ContainerTag,
		"entityContext": record.EntityContext,
	}
	for _, key := range metadataKeys {
		if v, ok := record.Metadata[key]; ok {
			props[key] = v
		}
	}

	result, err := m.client.Data().Creator().
		WithClassName(FixClassName).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		log.Printf("[MEMORY] store failed: %v", err)
		return ""
	}
	if result == nil || result.Object == nil {
		log.Printf("[MEMORY] store returned no object")
		return ""
	}
	return result.Object.ID.String()
}

// Ensure WeaviateMemory implements the interface
var _ secondary.FixMemory = (*WeaviateMemory)(nil)
