package registry

import (
	"context"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Peer is the narrow set of session operations a tool handler may use to
// call back into its peer (elicit, sample, list roots) or emit progress and
// log notifications, without the registry package importing the session
// engine.
type Peer interface {
	SendRequest(ctx context.Context, method string, params *mcp.Value) (*mcp.Value, error)
	SendNotification(ctx context.Context, method string, params *mcp.Value) error
}

// HandlerContext is passed to every tool/prompt/resource handler, per
// spec.md §4.6 step 4.
type HandlerContext struct {
	Context             context.Context
	RequestID            mcp.ID
	SessionID             string
	ServerCapabilities    *mcp.ServerCapabilities
	ClientCapabilities    *mcp.ClientCapabilities
	AuthInfo              *mcp.Value
	RelatedTaskID         string
	Peer                  Peer

	// OnProgress is wired by the session engine from the inbound request's
	// _meta.progressToken, if present. Progress is a no-op when nil.
	OnProgress func(progress, total float64, message string)
}

// Progress emits a notifications/progress message citing this handler's
// request's progress token, if the caller supplied one.
func (c *HandlerContext) Progress(progress, total float64, message string) {
	if c.OnProgress != nil {
		c.OnProgress(progress, total, message)
	}
}

// Elicit sends an elicitation/create request to the client peer.
func (c *HandlerContext) Elicit(params *mcp.Value) (*mcp.Value, error) {
	return c.Peer.SendRequest(c.Context, mcp.MethodElicitationCreate, params)
}

// CreateSamplingMessage sends a sampling/createMessage request to the client peer.
func (c *HandlerContext) CreateSamplingMessage(params *mcp.Value) (*mcp.Value, error) {
	return c.Peer.SendRequest(c.Context, mcp.MethodSamplingCreateMessage, params)
}

// ListRoots sends a roots/list request to the client peer.
func (c *HandlerContext) ListRoots() (*mcp.Value, error) {
	return c.Peer.SendRequest(c.Context, mcp.MethodRootsList, nil)
}

// ToolResult is a tool invocation's output, converted into CallTool.Result
// wire shape by Tools.Execute. It is an alias of mcp.CallToolResult so every
// handler's return value is the same typed shape the session engine and a
// Client's CallTool exchange on the wire.
type ToolResult = mcp.CallToolResult

// ToolHandler executes a tool call. arguments is the already-decoded,
// already-schema-validated input.
type ToolHandler func(hc *HandlerContext, arguments *mcp.Value) (*ToolResult, error)

// Tools is the tool registry: name -> {definition, inputSchema,
// outputSchema, handler}.
type Tools struct {
	*Registry[ToolHandler]
}

// NewTools creates a tool registry. validator defaults to
// JSONSchemaValidator{} if nil.
func NewTools(validator Validator, onListChanged func()) *Tools {
	if validator == nil {
		validator = JSONSchemaValidator{}
	}
	return &Tools{Registry: New[ToolHandler](validator, onListChanged)}
}

// RegisterTool adds a tool. def must carry "name", "description",
// "inputSchema", and optionally "outputSchema" members, matching the
// tools/list wire shape.
func (t *Tools) RegisterTool(name string, def *mcp.Value, handler ToolHandler) error {
	return t.Register(name, def, handler)
}

// Execute runs the tool-invocation pipeline of spec.md §4.6:
// lookup -> validate arguments -> invoke -> validate structuredContent.
func (t *Tools) Execute(hc *HandlerContext, name string, arguments *mcp.Value) (*ToolResult, error) {
	handler, def, enabled, ok := t.Lookup(name)
	if !ok {
		return nil, mcp.ErrMethodNotFound.Withf("tool not found: %q", name)
	}
	if !enabled {
		return nil, mcp.ErrInvalidParams.Withf("tool disabled: %q", name)
	}

	if inputSchema := def.Get("inputSchema"); inputSchema != nil {
		if err := t.Validator().Validate(inputSchema, arguments); err != nil {
			return nil, err
		}
	}

	result, err := handler(hc, arguments)
	if err != nil {
		return nil, err
	}

	if outputSchema := def.Get("outputSchema"); outputSchema != nil {
		if result.StructuredContent == nil && !result.IsError {
			return nil, mcp.ErrInternal.Withf("tool %q declares outputSchema but returned no structuredContent", name)
		}
		if result.StructuredContent != nil {
			if err := t.Validator().Validate(outputSchema, result.StructuredContent); err != nil {
				return nil, mcp.ErrInternal.Withf("tool %q structuredContent failed its own outputSchema: %v", name, err)
			}
		}
	}
	return result, nil
}
