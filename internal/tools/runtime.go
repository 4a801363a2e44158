package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/thymos-run/thymos/pkg/memory"
)

// ToolRuntime executes tools after enforcing capability policy and input
// validation; it holds no tool registrations itself (see Registry for
// that), so the same runtime can be reused across registries.
//
// An optional result cache, keyed by tool name, calling agent and args hash, lets a
// read-only tool's result be replayed instead of re-executed: useful for
// tools an agent calls repeatedly with the same arguments within a single
// session (e.g. a lookup tool hit once per planning step).
type ToolRuntime struct {
	policy   *CapabilityPolicy
	cache    memory.Store
	cacheTTL time.Duration
}

// NewToolRuntime builds a runtime enforcing policy.
func NewToolRuntime(policy *CapabilityPolicy) *ToolRuntime {
	if policy == nil {
		policy = DenyAllPolicy()
	}
	return &ToolRuntime{policy: policy}
}

// WithResultCache enables caching of cacheable tool results in store,
// each entry expiring after ttl. A tool is cacheable only if none of its
// required capabilities can produce a side effect (memory_write and every
// privileged capability are excluded); anything else always executes.
func (r *ToolRuntime) WithResultCache(store memory.Store, ttl time.Duration) *ToolRuntime {
	r.cache = store
	r.cacheTTL = ttl
	return r
}

// Execute validates args against tool, checks tool's required capabilities
// against the runtime's policy, and only then calls tool.Execute. Every
// failure path returns a non-nil envelope (never a Go error) so callers
// get a uniform success/error/cancelled result.
func (r *ToolRuntime) Execute(ctx context.Context, tool Tool, args json.RawMessage, execCtx ToolExecutionContext) ToolResultEnvelope {
	sum := sha256.Sum256(args)
	argsHash := hex.EncodeToString(sum[:])

	provenance := NewToolProvenance(tool.Metadata().Name, argsHash[:16])
	if execCtx.AgentID != "" {
		provenance = provenance.WithAgentID(execCtx.AgentID)
	}
	if execCtx.TraceID != "" {
		provenance = provenance.WithTraceID(execCtx.TraceID)
	}

	required := tool.RequiredCapabilities()
	if denied := r.policy.CheckAll(required); denied != nil {
		return ErrorResult(NewToolError(ToolErrorCapabilityDenied, "missing capabilities: "+joinCapabilities(denied)), provenance)
	}

	if errs := tool.Validate(args); len(errs) > 0 {
		return ErrorResult(NewToolError(ToolErrorValidation, errs[0].Error()), provenance)
	}

	select {
	case <-ctx.Done():
		return CancelledResult(provenance)
	default:
	}

	cacheable := r.cache != nil && isCacheable(required)
	if cacheable {
		if entry, ok := r.cache.Get(tool.Metadata().Name, execCtx.AgentID, argsHash); ok {
			var cached ToolResultEnvelope
			if err := json.Unmarshal([]byte(entry.Value), &cached); err == nil {
				cached.Provenance = provenance.WithCacheHit(true)
				return cached
			}
		}
	}

	envelope, toolErr := tool.Execute(ctx, args, execCtx)
	if toolErr != nil {
		return ErrorResult(toolErr, provenance)
	}

	if cacheable && envelope.IsSuccess() {
		if encoded, err := json.Marshal(envelope); err == nil {
			_ = r.cache.Set(tool.Metadata().Name, execCtx.AgentID, argsHash, string(encoded), memory.WithTTL(r.cacheTTL))
		}
	}
	return envelope
}

// isCacheable reports whether a tool requiring these capabilities may have
// its result safely replayed: nothing that writes memory or the filesystem,
// spawns subagents, reaches the network, or touches secrets.
func isCacheable(required CapabilitySet) bool {
	for c := range required {
		if c.IsPrivileged() || c == CapabilityMemoryWrite {
			return false
		}
	}
	return true
}

func joinCapabilities(caps CapabilitySet) string {
	names := caps.Slice()
	out := ""
	for i, c := range names {
		if i > 0 {
			out += ", "
		}
		out += string(c)
	}
	return out
}
