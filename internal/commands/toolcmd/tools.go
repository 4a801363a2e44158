package toolcmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thymos-run/thymos/internal/app"
	"github.com/thymos-run/thymos/internal/tools"
	"github.com/thymos-run/thymos/pkg/backend"
	"github.com/thymos-run/thymos/pkg/backend/embedded"
)

// openBackend opens the embedded backend at the configured DB path; tool
// handlers open and close their own connection per call, since each CLI
// invocation is a separate process.
func openBackend() (backend.Backend, func(), error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	be, err := embedded.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return be, func() { _ = be.Close() }, nil
}

// builtinRegistry registers the tools agents can reach through the tool
// runtime: read/search/write access to the checked-out memory backend,
// each gated behind the capability its side effects warrant.
func builtinRegistry() (*tools.Registry, error) {
	reg := tools.NewRegistry()

	if err := reg.Register(newMemoryGetTool()); err != nil {
		return nil, err
	}
	if err := reg.Register(newMemorySearchTool()); err != nil {
		return nil, err
	}
	if err := reg.Register(newMemoryStoreTool()); err != nil {
		return nil, err
	}
	return reg, nil
}

type memoryGetArgs struct {
	ID string `json:"id"`
}

type memoryGetHandler struct{}

func (memoryGetHandler) Handle(_ context.Context, args json.RawMessage, _ tools.ToolExecutionContext) (any, *tools.ToolError) {
	var a memoryGetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, tools.NewToolError(tools.ToolErrorValidation, "invalid arguments: "+err.Error())
	}

	be, closeBackend, err := openBackend()
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	defer closeBackend()

	mem, ok, err := be.Get(a.ID)
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	if !ok {
		return nil, tools.NewToolError(tools.ToolErrorNotFound, fmt.Sprintf("memory %q not found", a.ID))
	}
	return mem, nil
}

func newMemoryGetTool() *tools.HandlerTool {
	schema := tools.NewToolSchema(json.RawMessage(`{
		"type": "object",
		"properties": {"id": {"type": "string"}},
		"required": ["id"]
	}`))
	meta := tools.NewToolMetadata("memory_get", "Fetch a single memory by id from the checked-out state")
	return tools.NewHandlerTool(meta, schema, memoryGetHandler{}).
		WithCapabilities(tools.NewCapabilitySet(tools.CapabilityMemoryRead))
}

type memorySearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type memorySearchHandler struct{}

func (memorySearchHandler) Handle(_ context.Context, args json.RawMessage, _ tools.ToolExecutionContext) (any, *tools.ToolError) {
	var a memorySearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, tools.NewToolError(tools.ToolErrorValidation, "invalid arguments: "+err.Error())
	}
	if a.Limit <= 0 {
		a.Limit = 20
	}

	be, closeBackend, err := openBackend()
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	defer closeBackend()

	results, err := be.Search(a.Query, backend.SearchOptions{Limit: a.Limit})
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	return results, nil
}

func newMemorySearchTool() *tools.HandlerTool {
	schema := tools.NewToolSchema(json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer"}
		},
		"required": ["query"]
	}`))
	meta := tools.NewToolMetadata("memory_search", "Search memories in the checked-out state")
	return tools.NewHandlerTool(meta, schema, memorySearchHandler{}).
		WithCapabilities(tools.NewCapabilitySet(tools.CapabilityMemoryRead))
}

type memoryStoreArgs struct {
	Content string `json:"content"`
}

type memoryStoreHandler struct{}

func (memoryStoreHandler) Handle(_ context.Context, args json.RawMessage, _ tools.ToolExecutionContext) (any, *tools.ToolError) {
	var a memoryStoreArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, tools.NewToolError(tools.ToolErrorValidation, "invalid arguments: "+err.Error())
	}

	be, closeBackend, err := openBackend()
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	defer closeBackend()

	id, err := be.Store(a.Content, backend.StoreOptions{})
	if err != nil {
		return nil, tools.NewToolError(tools.ToolErrorInternal, err.Error())
	}
	return map[string]string{"id": id}, nil
}

func newMemoryStoreTool() *tools.HandlerTool {
	schema := tools.NewToolSchema(json.RawMessage(`{
		"type": "object",
		"properties": {"content": {"type": "string"}},
		"required": ["content"]
	}`))
	meta := tools.NewToolMetadata("memory_store", "Store a new memory directly into the checked-out backend, bypassing staging")
	return tools.NewHandlerTool(meta, schema, memoryStoreHandler{}).
		WithCapabilities(tools.NewCapabilitySet(tools.CapabilityMemoryWrite))
}
