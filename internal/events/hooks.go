// Package events dispatches memory lifecycle notifications to a chain of
// hooks: logging, concept extraction, pub/sub forwarding, or whatever else
// a caller registers.
package events

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/thymos-run/thymos/internal/concepts"
	"github.com/thymos-run/thymos/internal/pubsub"
	"github.com/thymos-run/thymos/pkg/backend"
)

// MemoryHook reacts to memory lifecycle operations. Every method has a
// no-op default via BaseHook so implementers only override what they need.
type MemoryHook interface {
	OnMemoryCreated(ctx context.Context, memory backend.Memory) error
	OnMemoryUpdated(ctx context.Context, memory backend.Memory) error
	OnMemoryAccessed(ctx context.Context, memory backend.Memory) error
	OnMemoryDeleted(ctx context.Context, memoryID string) error
}

// BaseHook gives every MemoryHook method a no-op default so a concrete hook
// only needs to embed this and override the methods it cares about.
type BaseHook struct{}

func (BaseHook) OnMemoryCreated(context.Context, backend.Memory) error  { return nil }
func (BaseHook) OnMemoryUpdated(context.Context, backend.Memory) error  { return nil }
func (BaseHook) OnMemoryAccessed(context.Context, backend.Memory) error { return nil }
func (BaseHook) OnMemoryDeleted(context.Context, string) error          { return nil }

// HookRegistry fans memory lifecycle events out to every registered hook.
type HookRegistry struct {
	hooks []MemoryHook
}

// NewHookRegistry builds an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register appends hook to the dispatch chain.
func (r *HookRegistry) Register(hook MemoryHook) {
	r.hooks = append(r.hooks, hook)
}

// TriggerCreated calls OnMemoryCreated on every registered hook in order,
// stopping at the first error.
func (r *HookRegistry) TriggerCreated(ctx context.Context, memory backend.Memory) error {
	for _, h := range r.hooks {
		if err := h.OnMemoryCreated(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

// TriggerUpdated calls OnMemoryUpdated on every registered hook in order,
// stopping at the first error.
func (r *HookRegistry) TriggerUpdated(ctx context.Context, memory backend.Memory) error {
	for _, h := range r.hooks {
		if err := h.OnMemoryUpdated(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAccessed calls OnMemoryAccessed on every registered hook in order,
// stopping at the first error.
func (r *HookRegistry) TriggerAccessed(ctx context.Context, memory backend.Memory) error {
	for _, h := range r.hooks {
		if err := h.OnMemoryAccessed(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

// TriggerDeleted calls OnMemoryDeleted on every registered hook in order,
// stopping at the first error.
func (r *HookRegistry) TriggerDeleted(ctx context.Context, memoryID string) error {
	for _, h := range r.hooks {
		if err := h.OnMemoryDeleted(ctx, memoryID); err != nil {
			return err
		}
	}
	return nil
}

// LoggingHook logs every memory lifecycle event at an appropriate level.
type LoggingHook struct{ BaseHook }

func (LoggingHook) OnMemoryCreated(_ context.Context, memory backend.Memory) error {
	slog.Info("memory created", "memory_id", memory.ID, "content_length", len(memory.Content))
	return nil
}

func (LoggingHook) OnMemoryUpdated(_ context.Context, memory backend.Memory) error {
	slog.Info("memory updated", "memory_id", memory.ID)
	return nil
}

func (LoggingHook) OnMemoryAccessed(_ context.Context, memory backend.Memory) error {
	slog.Debug("memory accessed", "memory_id", memory.ID)
	return nil
}

func (LoggingHook) OnMemoryDeleted(_ context.Context, memoryID string) error {
	slog.Info("memory deleted", "memory_id", memoryID)
	return nil
}

// ConceptExtractionHook runs an extractor over newly created memory
// content and logs what it finds; extraction failures are logged, not
// propagated, so a bad extraction never blocks the memory write it
// reacted to.
//
// Bursts of memories sharing identical content (retried ingestion,
// duplicate agent submissions) are common; a singleflight.Group
// collapses concurrent Extract calls for the same content into one,
// since extraction is a pure read over the text and every waiter can
// safely share the result.
type ConceptExtractionHook struct {
	BaseHook
	extractor concepts.Extractor
	inflight  singleflight.Group
}

// NewConceptExtractionHook wraps extractor as a MemoryHook.
func NewConceptExtractionHook(extractor concepts.Extractor) *ConceptExtractionHook {
	return &ConceptExtractionHook{extractor: extractor}
}

func (h *ConceptExtractionHook) OnMemoryCreated(_ context.Context, memory backend.Memory) error {
	result, err, shared := h.inflight.Do(memory.Content, func() (interface{}, error) {
		return h.extractor.Extract(memory.Content)
	})
	if err != nil {
		slog.Warn("failed to extract concepts", "memory_id", memory.ID, "error", err)
		return nil
	}
	found, _ := result.([]concepts.Concept)
	if len(found) > 0 {
		slog.Debug("extracted concepts from memory",
			"memory_id", memory.ID, "concept_count", len(found), "shared_extraction", shared)
	}
	return nil
}

// PubSubForwardingHook republishes memory lifecycle events onto a pub/sub
// topic so other agents in the process can react to them.
type PubSubForwardingHook struct {
	BaseHook
	ps    pubsub.PubSub
	topic string
}

// NewPubSubForwardingHook builds a hook that publishes to topic on ps.
func NewPubSubForwardingHook(ps pubsub.PubSub, topic string) *PubSubForwardingHook {
	return &PubSubForwardingHook{ps: ps, topic: topic}
}

func (h *PubSubForwardingHook) OnMemoryCreated(_ context.Context, memory backend.Memory) error {
	if err := h.ps.Publish(h.topic, forwardedEvent{
		EventType: "memory_created",
		MemoryID:  memory.ID,
		Preview:   preview(memory.Content, 100),
	}, "events"); err != nil {
		slog.Warn("failed to forward memory event", "topic", h.topic, "error", err)
	}
	return nil
}

func (h *PubSubForwardingHook) OnMemoryDeleted(_ context.Context, memoryID string) error {
	if err := h.ps.Publish(h.topic, forwardedEvent{
		EventType: "memory_deleted",
		MemoryID:  memoryID,
	}, "events"); err != nil {
		slog.Warn("failed to forward memory deletion event", "topic", h.topic, "error", err)
	}
	return nil
}

type forwardedEvent struct {
	EventType string `json:"event_type"`
	MemoryID  string `json:"memory_id"`
	Preview   string `json:"content_preview,omitempty"`
}

func preview(content string, n int) string {
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n])
}

// CompositeHook chains several hooks together behind a single MemoryHook,
// useful when a caller wants to register one hook where the registry
// expects exactly one.
type CompositeHook struct {
	hooks []MemoryHook
}

// NewCompositeHook builds an empty composite.
func NewCompositeHook() *CompositeHook {
	return &CompositeHook{}
}

// Add appends hook to the composite and returns the receiver for chaining.
func (c *CompositeHook) Add(hook MemoryHook) *CompositeHook {
	c.hooks = append(c.hooks, hook)
	return c
}

func (c *CompositeHook) OnMemoryCreated(ctx context.Context, memory backend.Memory) error {
	for _, h := range c.hooks {
		if err := h.OnMemoryCreated(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeHook) OnMemoryUpdated(ctx context.Context, memory backend.Memory) error {
	for _, h := range c.hooks {
		if err := h.OnMemoryUpdated(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeHook) OnMemoryAccessed(ctx context.Context, memory backend.Memory) error {
	for _, h := range c.hooks {
		if err := h.OnMemoryAccessed(ctx, memory); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeHook) OnMemoryDeleted(ctx context.Context, memoryID string) error {
	for _, h := range c.hooks {
		if err := h.OnMemoryDeleted(ctx, memoryID); err != nil {
			return err
		}
	}
	return nil
}
