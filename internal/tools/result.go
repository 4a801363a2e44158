package tools

import (
	"encoding/json"
	"time"
)

// ToolErrorKind classifies why a tool invocation failed, mirroring the
// retryability split used throughout Thymos's error taxonomy.
type ToolErrorKind string

const (
	ToolErrorValidation       ToolErrorKind = "validation"
	ToolErrorCapabilityDenied ToolErrorKind = "capability_denied"
	ToolErrorNotFound         ToolErrorKind = "not_found"
	ToolErrorInternal         ToolErrorKind = "internal"
	ToolErrorTimeout          ToolErrorKind = "timeout"
	ToolErrorRateLimited      ToolErrorKind = "rate_limited"
	ToolErrorTransient        ToolErrorKind = "transient"
)

var retryableToolErrors = map[ToolErrorKind]bool{
	ToolErrorTimeout:     true,
	ToolErrorRateLimited: true,
	ToolErrorTransient:   true,
}

// IsRetryable reports whether a tool caller may retry after this kind of
// failure.
func (k ToolErrorKind) IsRetryable() bool {
	return retryableToolErrors[k]
}

// IsFatal reports whether retrying is pointless for this kind of failure.
func (k ToolErrorKind) IsFatal() bool {
	return !k.IsRetryable()
}

// ToolError is the error type returned by Tool.Execute and ToolHandler.Handle.
type ToolError struct {
	Kind    ToolErrorKind `json:"kind"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewToolError builds a ToolError of the given kind.
func NewToolError(kind ToolErrorKind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// ValidationError describes one failed input-argument check.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// PolicyDecision records one capability check made during execution, for
// audit and debugging.
type PolicyDecision struct {
	Check   string `json:"check"`
	Allowed bool   `json:"allowed"`
}

// NewPolicyDecision builds a PolicyDecision.
func NewPolicyDecision(check string, allowed bool) PolicyDecision {
	return PolicyDecision{Check: check, Allowed: allowed}
}

// ToolProvenance records how and when a tool call executed, independent
// of whether it succeeded.
type ToolProvenance struct {
	ToolName        string           `json:"tool_name"`
	ArgsHash        string           `json:"args_hash"`
	Duration        time.Duration    `json:"duration"`
	AgentID         string           `json:"agent_id,omitempty"`
	TraceID         string           `json:"trace_id,omitempty"`
	PolicyDecisions []PolicyDecision `json:"policy_decisions,omitempty"`
	CacheHit        bool             `json:"cache_hit,omitempty"`
}

// NewToolProvenance starts a provenance record for toolName, storing
// argsHash as given; ToolRuntime.Execute passes the first 16 hex characters
// of the args hash, matching the teacher's truncated-hash convention for
// compact audit logs.
func NewToolProvenance(toolName, argsHash string) ToolProvenance {
	return ToolProvenance{ToolName: toolName, ArgsHash: argsHash}
}

// WithDuration sets the elapsed execution time.
func (p ToolProvenance) WithDuration(d time.Duration) ToolProvenance {
	p.Duration = d
	return p
}

// WithAgentID sets the calling agent's id.
func (p ToolProvenance) WithAgentID(agentID string) ToolProvenance {
	p.AgentID = agentID
	return p
}

// WithTraceID sets the correlation trace id.
func (p ToolProvenance) WithTraceID(traceID string) ToolProvenance {
	p.TraceID = traceID
	return p
}

// WithPolicyDecision appends one capability-check record.
func (p ToolProvenance) WithPolicyDecision(d PolicyDecision) ToolProvenance {
	p.PolicyDecisions = append(p.PolicyDecisions, d)
	return p
}

// WithCacheHit marks the result as served from the runtime's result cache.
func (p ToolProvenance) WithCacheHit(hit bool) ToolProvenance {
	p.CacheHit = hit
	return p
}

// ToolWarning is a non-fatal note attached to an otherwise successful
// result (e.g. a deprecation notice).
type ToolWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewToolWarning builds a ToolWarning.
func NewToolWarning(code, message string) ToolWarning {
	return ToolWarning{Code: code, Message: message}
}

// ResultStatus is the outcome discriminant of a ToolResultEnvelope.
type ResultStatus string

const (
	ResultSuccess   ResultStatus = "success"
	ResultError     ResultStatus = "error"
	ResultCancelled ResultStatus = "cancelled"
)

// ToolResultEnvelope wraps a tool's output (or failure) with provenance
// and any warnings, independent of how the tool itself is implemented.
type ToolResultEnvelope struct {
	Status     ResultStatus    `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Err        *ToolError      `json:"error,omitempty"`
	Provenance ToolProvenance  `json:"provenance"`
	Warnings   []ToolWarning   `json:"warnings,omitempty"`
}

// SuccessResult builds a successful envelope from any JSON-marshalable
// value.
func SuccessResult(value any, provenance ToolProvenance) ToolResultEnvelope {
	encoded, err := json.Marshal(value)
	if err != nil {
		return ErrorResult(NewToolError(ToolErrorInternal, "marshal tool result: "+err.Error()), provenance)
	}
	return ToolResultEnvelope{Status: ResultSuccess, Result: encoded, Provenance: provenance}
}

// ErrorResult builds a failed envelope.
func ErrorResult(toolErr *ToolError, provenance ToolProvenance) ToolResultEnvelope {
	return ToolResultEnvelope{Status: ResultError, Err: toolErr, Provenance: provenance}
}

// CancelledResult builds an envelope for a cooperatively cancelled
// execution.
func CancelledResult(provenance ToolProvenance) ToolResultEnvelope {
	return ToolResultEnvelope{Status: ResultCancelled, Provenance: provenance}
}

// WithWarning appends a warning and returns the envelope for chaining.
func (e ToolResultEnvelope) WithWarning(w ToolWarning) ToolResultEnvelope {
	e.Warnings = append(e.Warnings, w)
	return e
}

// IsSuccess reports whether the envelope holds a success result.
func (e ToolResultEnvelope) IsSuccess() bool { return e.Status == ResultSuccess }

// IsError reports whether the envelope holds an error result.
func (e ToolResultEnvelope) IsError() bool { return e.Status == ResultError }

// Value unmarshals the success result into a generic value.
func (e ToolResultEnvelope) Value() (any, bool) {
	if e.Status != ResultSuccess || e.Result == nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(e.Result, &v); err != nil {
		return nil, false
	}
	return v, true
}

// GetError returns the envelope's error, if any.
func (e ToolResultEnvelope) GetError() (*ToolError, bool) {
	if e.Status != ResultError {
		return nil, false
	}
	return e.Err, true
}
