package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ToolMetadata is LLM-facing discovery information for a tool.
type ToolMetadata struct {
	Name          string
	Description   string
	UsageHints    []string
	Returns       string
	ErrorGuidance string
	Version       string
	Tags          []string
}

// NewToolMetadata builds metadata with the two required fields set.
func NewToolMetadata(name, description string) ToolMetadata {
	return ToolMetadata{Name: name, Description: description, Returns: "Tool-specific result"}
}

// WithHint appends a usage hint.
func (m ToolMetadata) WithHint(hint string) ToolMetadata {
	m.UsageHints = append(m.UsageHints, hint)
	return m
}

// WithReturns sets the return-value description.
func (m ToolMetadata) WithReturns(returns string) ToolMetadata {
	m.Returns = returns
	return m
}

// WithErrorGuidance sets the remediation hint shown on failure.
func (m ToolMetadata) WithErrorGuidance(guidance string) ToolMetadata {
	m.ErrorGuidance = guidance
	return m
}

// WithVersion sets the tool's version string.
func (m ToolMetadata) WithVersion(version string) ToolMetadata {
	m.Version = version
	return m
}

// WithTag appends a categorization tag.
func (m ToolMetadata) WithTag(tag string) ToolMetadata {
	m.Tags = append(m.Tags, tag)
	return m
}

// ToolSchema is the JSON Schema describing a tool's input parameters.
type ToolSchema struct {
	Parameters json.RawMessage
	Strict     bool
}

// NewToolSchema wraps a JSON Schema value in strict mode.
func NewToolSchema(parameters json.RawMessage) ToolSchema {
	return ToolSchema{Parameters: parameters, Strict: true}
}

// EmptySchema describes a tool that takes no parameters.
func EmptySchema() ToolSchema {
	return ToolSchema{
		Parameters: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
		Strict:     true,
	}
}

// WithStrict toggles strict schema validation.
func (s ToolSchema) WithStrict(strict bool) ToolSchema {
	s.Strict = strict
	return s
}

// ToolExample is one input/output pair used for few-shot tool discovery.
type ToolExample struct {
	Name   string
	Input  json.RawMessage
	Output json.RawMessage
}

// NewToolExample builds a ToolExample.
func NewToolExample(name string, input, output json.RawMessage) ToolExample {
	return ToolExample{Name: name, Input: input, Output: output}
}

// ToolExecutionContext is passed to every tool invocation.
type ToolExecutionContext struct {
	AgentID       string
	TraceID       string
	RedactSecrets bool
	Extra         json.RawMessage
}

// NewToolExecutionContext builds a context with secret redaction enabled
// by default, matching the teacher's safe-by-default convention.
func NewToolExecutionContext() ToolExecutionContext {
	return ToolExecutionContext{RedactSecrets: true}
}

// WithAgentID sets the calling agent's id.
func (c ToolExecutionContext) WithAgentID(agentID string) ToolExecutionContext {
	c.AgentID = agentID
	return c
}

// WithTraceID sets the correlation trace id.
func (c ToolExecutionContext) WithTraceID(traceID string) ToolExecutionContext {
	c.TraceID = traceID
	return c
}

// WithRedactSecrets toggles secret redaction.
func (c ToolExecutionContext) WithRedactSecrets(redact bool) ToolExecutionContext {
	c.RedactSecrets = redact
	return c
}

// Tool is the interface implemented by anything agents can invoke through
// the runtime. The runtime enforces capability policy and validation
// before Execute is ever called.
type Tool interface {
	Metadata() ToolMetadata
	Schema() ToolSchema
	Examples() []ToolExample
	RequiredCapabilities() CapabilitySet
	Validate(args json.RawMessage) []ValidationError
	Execute(ctx context.Context, args json.RawMessage, execCtx ToolExecutionContext) (ToolResultEnvelope, *ToolError)
}

// BaseTool provides the no-op defaults (empty examples, no required
// capabilities, no validation) that most Tool implementations embed and
// override selectively, matching the Rust trait's default-method pattern.
type BaseTool struct{}

func (BaseTool) Examples() []ToolExample                      { return nil }
func (BaseTool) RequiredCapabilities() CapabilitySet           { return NewCapabilitySet() }
func (BaseTool) Validate(json.RawMessage) []ValidationError    { return nil }

// ToolHandler is a narrower interface for tools that just compute a
// result; HandlerTool adapts it into a full Tool.
type ToolHandler interface {
	Handle(ctx context.Context, args json.RawMessage, execCtx ToolExecutionContext) (any, *ToolError)
}

// HandlerTool wraps a ToolHandler, auto-generating provenance (args hash,
// duration) and the result envelope around its return value.
type HandlerTool struct {
	BaseTool
	metadata     ToolMetadata
	schema       ToolSchema
	capabilities CapabilitySet
	examples     []ToolExample
	handler      ToolHandler
}

// NewHandlerTool wraps handler with metadata and a schema.
func NewHandlerTool(metadata ToolMetadata, schema ToolSchema, handler ToolHandler) *HandlerTool {
	return &HandlerTool{
		metadata:     metadata,
		schema:       schema,
		capabilities: NewCapabilitySet(),
		handler:      handler,
	}
}

// WithCapabilities sets the capabilities this tool requires.
func (h *HandlerTool) WithCapabilities(caps CapabilitySet) *HandlerTool {
	h.capabilities = caps
	return h
}

// WithExamples sets the few-shot examples returned by Examples.
func (h *HandlerTool) WithExamples(examples []ToolExample) *HandlerTool {
	h.examples = examples
	return h
}

func (h *HandlerTool) Metadata() ToolMetadata            { return h.metadata }
func (h *HandlerTool) Schema() ToolSchema                { return h.schema }
func (h *HandlerTool) Examples() []ToolExample           { return h.examples }
func (h *HandlerTool) RequiredCapabilities() CapabilitySet { return h.capabilities }

func (h *HandlerTool) Execute(ctx context.Context, args json.RawMessage, execCtx ToolExecutionContext) (ToolResultEnvelope, *ToolError) {
	startedAt := time.Now()

	sum := sha256.Sum256(args)
	argsHash := hex.EncodeToString(sum[:])

	value, toolErr := h.handler.Handle(ctx, args, execCtx)

	provenance := NewToolProvenance(h.metadata.Name, argsHash[:16]).WithDuration(time.Since(startedAt))
	if execCtx.AgentID != "" {
		provenance = provenance.WithAgentID(execCtx.AgentID)
	}
	if execCtx.TraceID != "" {
		provenance = provenance.WithTraceID(execCtx.TraceID)
	}

	if toolErr != nil {
		return ErrorResult(toolErr, provenance), nil
	}
	return SuccessResult(value, provenance), nil
}
