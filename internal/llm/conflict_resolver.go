package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thymos-run/thymos/internal/concepts"
	"github.com/thymos-run/thymos/internal/versioning"
)

// ConflictResolver resolves merge conflicts by asking an agent CLI to pick
// a winning version, grounding its decision in both branches' content.
type ConflictResolver struct {
	provider *CLIProvider
}

// NewConflictResolver wires a CLIProvider into a versioning.ConflictResolver.
func NewConflictResolver(provider *CLIProvider) *ConflictResolver {
	return &ConflictResolver{provider: provider}
}

type conflictResolutionPayload struct {
	ResolvedContent    string         `json:"resolved_content"`
	ResolvedProperties map[string]any `json:"resolved_properties"`
}

// ResolveConflict asks the wrapped provider to merge conflict's two
// versions into one, returning the JSON payload's content verbatim.
func (r *ConflictResolver) ResolveConflict(conflict versioning.MemoryConflict) (versioning.ConflictResolution, error) {
	req := concepts.LLMRequest{
		Messages: []concepts.LLMMessage{
			{
				Role: concepts.LLMRoleSystem,
				Content: "You resolve conflicting edits to the same memory across two branches. " +
					"Reply with JSON {\"resolved_content\": string, \"resolved_properties\": object}.",
			},
			{
				Role: concepts.LLMRoleUser,
				Content: fmt.Sprintf(
					"Memory %s diverged.\nTarget branch version:\n%s\n\nSource branch version:\n%s\n",
					conflict.MemoryID, conflict.TargetVersion.Content, conflict.SourceVersion.Content,
				),
			},
		},
	}

	raw, err := r.provider.GenerateJSON(context.Background(), req)
	if err != nil {
		return versioning.ConflictResolution{}, fmt.Errorf("resolve conflict %q: %w", conflict.MemoryID, err)
	}

	var payload conflictResolutionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return versioning.ConflictResolution{}, fmt.Errorf("parse conflict resolution for %q: %w", conflict.MemoryID, err)
	}

	return versioning.ConflictResolution{
		ResolvedContent:    payload.ResolvedContent,
		ResolvedProperties: payload.ResolvedProperties,
	}, nil
}
