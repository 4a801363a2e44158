package tools

import (
	"sync"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// Registry is a concurrency-safe collection of named tools, mirroring the
// teacher's mutex-guarded map registration pattern.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool under its metadata name; it fails if that name is
// already registered.
func (r *Registry) Register(tool Tool) error {
	name := tool.Metadata().Name
	if name == "" {
		return thyerrors.New(thyerrors.KindInvalidArgument, "tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return thyerrors.AlreadyExists("tool", name)
	}
	r.tools[name] = tool
	return nil
}

// Unregister removes a tool by name; it is a no-op if the name is unknown.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, thyerrors.NotFound("tool", name)
	}
	return tool, nil
}

// List returns every registered tool's metadata, for LLM-facing discovery.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool.Metadata())
	}
	return out
}

// Names returns every registered tool's name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}
