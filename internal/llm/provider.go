package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thymos-run/thymos/internal/concepts"
)

// CLIProvider adapts a Runner to concepts.LLMProvider so concept validation
// and merge conflict resolution can delegate to whatever agent CLI is
// already authenticated on the host, instead of holding API keys.
type CLIProvider struct {
	runner *Runner
}

// NewCLIProvider wires a Runner for agentName into a concepts.LLMProvider.
func NewCLIProvider(agentName string) (*CLIProvider, error) {
	r, err := NewRunner(agentName)
	if err != nil {
		return nil, err
	}
	return &CLIProvider{runner: r}, nil
}

// GenerateJSON flattens req's messages into a single prompt instructing the
// CLI to answer with JSON only, then validates the response actually
// parses before handing it back.
func (p *CLIProvider) GenerateJSON(ctx context.Context, req concepts.LLMRequest) (json.RawMessage, error) {
	prompt := buildJSONPrompt(req)

	out, err := p.runner.Extract(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm cli generate: %w", err)
	}

	raw := json.RawMessage(extractJSONObject(out))
	if !json.Valid(raw) {
		return nil, fmt.Errorf("llm cli %s returned non-JSON response", p.runner.Command())
	}
	return raw, nil
}

func buildJSONPrompt(req concepts.LLMRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		switch m.Role {
		case concepts.LLMRoleSystem:
			b.WriteString("System: ")
		case concepts.LLMRoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with a single JSON value (object or array) and nothing else.")
	return b.String()
}

// extractJSONObject trims any prose an agent CLI wraps its JSON answer in,
// keeping only the outermost {...} or [...] span, whichever opens first.
func extractJSONObject(s string) string {
	open, closing := byte('{'), byte('}')
	if a := strings.IndexByte(s, '['); a >= 0 {
		if o := strings.IndexByte(s, '{'); o < 0 || a < o {
			open, closing = '[', ']'
		}
	}
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
