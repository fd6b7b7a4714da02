package session

import (
	"context"
	"sync"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client wraps a RoleClient Engine with the method-specific convenience
// calls of spec.md §4.2, grounded on the teacher's pkg/mcp/client/call.go
// and list.go.
type Client struct {
	*Engine

	schemaMu      sync.Mutex
	outputSchemas map[string]*mcp.Value // tool name -> declared outputSchema, from the last tools/list
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewClient creates a client-role Engine over t and performs the initialize
// handshake before returning, so a caller never holds a Client that hasn't
// completed spec.md §4.1's required first exchange.
func NewClient(ctx context.Context, t transport.Transport, info mcp.Implementation, caps *mcp.ClientCapabilities, opts ...Opt) (*Client, *InitializeResult, error) {
	e, err := New(ctx, RoleClient, t, opts...)
	if err != nil {
		return nil, nil, err
	}
	e.RegisterPingHandler()
	result, err := e.InitializeClient(ctx, info, caps)
	if err != nil {
		_ = e.Close()
		return nil, nil, err
	}
	return &Client{Engine: e}, result, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — tools

func (c *Client) ListTools(ctx context.Context, cursor string) (tools []mcp.ToolDefinition, nextCursor string, err error) {
	params := mcp.Object()
	if cursor != "" {
		params.Set("cursor", mcp.String(cursor))
	}
	result, err := c.Request(ctx, mcp.MethodToolsList, params)
	if err != nil {
		return nil, "", err
	}
	arr, _ := result.Get("tools").Array()
	nextCursor, _ = result.Get("nextCursor").String()
	tools = make([]mcp.ToolDefinition, len(arr))
	for i, v := range arr {
		tools[i] = mcp.DecodeToolDefinition(v)
	}
	c.cacheOutputSchemas(tools)
	return tools, nextCursor, nil
}

// CallTool invokes name and, if a prior tools/list declared an outputSchema
// for it, mirrors the server's own validation of spec.md §4.6 step 6: a
// non-error response from a schema-bearing tool must carry
// structuredContent, since the server is required to have validated its
// reply against that schema before sending it.
func (c *Client) CallTool(ctx context.Context, name string, arguments *mcp.Value, opts ...RequestOpt) (*mcp.CallToolResult, error) {
	params := mcp.Object().Set("name", mcp.String(name))
	if arguments != nil {
		params.Set("arguments", arguments)
	}
	raw, err := c.Request(ctx, mcp.MethodToolsCall, params, opts...)
	if err != nil {
		return nil, err
	}
	result := mcp.DecodeCallToolResult(raw)
	if err := c.validateStructuredContent(name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// cacheOutputSchemas records each listed tool's outputSchema (if any),
// keyed by name, and forgets a previously schema-bearing tool that no
// longer declares one.
func (c *Client) cacheOutputSchemas(tools []mcp.ToolDefinition) {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.outputSchemas == nil {
		c.outputSchemas = make(map[string]*mcp.Value)
	}
	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}
		if tool.OutputSchema != nil {
			c.outputSchemas[tool.Name] = tool.OutputSchema
		} else {
			delete(c.outputSchemas, tool.Name)
		}
	}
}

func (c *Client) validateStructuredContent(name string, result *mcp.CallToolResult) error {
	c.schemaMu.Lock()
	_, declared := c.outputSchemas[name]
	c.schemaMu.Unlock()
	if !declared || result.IsError {
		return nil
	}
	if result.StructuredContent == nil {
		return mcp.ErrInternal.Withf("tool %q declares an outputSchema but the response has no structuredContent", name)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — resources

func (c *Client) ListResources(ctx context.Context, cursor string) (resources []mcp.ResourceDefinition, nextCursor string, err error) {
	params := mcp.Object()
	if cursor != "" {
		params.Set("cursor", mcp.String(cursor))
	}
	result, err := c.Request(ctx, mcp.MethodResourcesList, params)
	if err != nil {
		return nil, "", err
	}
	arr, _ := result.Get("resources").Array()
	nextCursor, _ = result.Get("nextCursor").String()
	resources = make([]mcp.ResourceDefinition, len(arr))
	for i, v := range arr {
		resources[i] = mcp.DecodeResourceDefinition(v)
	}
	return resources, nextCursor, nil
}

func (c *Client) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	params := mcp.Object().Set("uri", mcp.String(uri))
	result, err := c.Request(ctx, mcp.MethodResourcesRead, params)
	if err != nil {
		return nil, err
	}
	arr, _ := result.Get("contents").Array()
	contents := make([]mcp.ResourceContents, len(arr))
	for i, v := range arr {
		contents[i] = mcp.DecodeResourceContents(v)
	}
	return contents, nil
}

func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	params := mcp.Object().Set("uri", mcp.String(uri))
	_, err := c.Request(ctx, mcp.MethodResourcesSubscribe, params)
	return err
}

func (c *Client) UnsubscribeResource(ctx context.Context, uri string) error {
	params := mcp.Object().Set("uri", mcp.String(uri))
	_, err := c.Request(ctx, mcp.MethodResourcesUnsubscribe, params)
	return err
}

func (c *Client) ListResourceTemplates(ctx context.Context, cursor string) ([]*mcp.Value, string, error) {
	params := mcp.Object()
	if cursor != "" {
		params.Set("cursor", mcp.String(cursor))
	}
	result, err := c.Request(ctx, mcp.MethodResourcesTemplatesList, params)
	if err != nil {
		return nil, "", err
	}
	arr, _ := result.Get("resourceTemplates").Array()
	nextCursor, _ := result.Get("nextCursor").String()
	return arr, nextCursor, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — prompts

func (c *Client) ListPrompts(ctx context.Context, cursor string) ([]mcp.PromptDefinition, string, error) {
	params := mcp.Object()
	if cursor != "" {
		params.Set("cursor", mcp.String(cursor))
	}
	result, err := c.Request(ctx, mcp.MethodPromptsList, params)
	if err != nil {
		return nil, "", err
	}
	arr, _ := result.Get("prompts").Array()
	nextCursor, _ := result.Get("nextCursor").String()
	prompts := make([]mcp.PromptDefinition, len(arr))
	for i, v := range arr {
		prompts[i] = mcp.DecodePromptDefinition(v)
	}
	return prompts, nextCursor, nil
}

func (c *Client) GetPrompt(ctx context.Context, name string, arguments *mcp.Value) (*mcp.GetPromptResult, error) {
	params := mcp.Object().Set("name", mcp.String(name))
	if arguments != nil {
		params.Set("arguments", arguments)
	}
	result, err := c.Request(ctx, mcp.MethodPromptsGet, params)
	if err != nil {
		return nil, err
	}
	return mcp.DecodeGetPromptResult(result), nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — misc

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, mcp.MethodPing, nil, WithTimeout(10*time.Second))
	return err
}

func (c *Client) SetLogLevel(ctx context.Context, level string) error {
	params := mcp.Object().Set("level", mcp.String(level))
	_, err := c.Request(ctx, mcp.MethodLoggingSetLevel, params)
	return err
}

func (c *Client) Complete(ctx context.Context, ref, argument *mcp.Value) (*mcp.Value, error) {
	params := mcp.Object().Set("ref", ref).Set("argument", argument)
	return c.Request(ctx, mcp.MethodCompletionComplete, params)
}

// OnToolsListChanged registers a callback for notifications/tools/list_changed.
func (c *Client) OnToolsListChanged(fn func()) {
	c.RegisterNotificationHandler(mcp.NotificationToolsListChanged, func(context.Context, *mcp.Value) { fn() })
}

func (c *Client) OnResourcesListChanged(fn func()) {
	c.RegisterNotificationHandler(mcp.NotificationResourcesListChanged, func(context.Context, *mcp.Value) { fn() })
}

func (c *Client) OnPromptsListChanged(fn func()) {
	c.RegisterNotificationHandler(mcp.NotificationPromptsListChanged, func(context.Context, *mcp.Value) { fn() })
}

func (c *Client) OnResourceUpdated(fn func(uri string)) {
	c.RegisterNotificationHandler(mcp.NotificationResourcesUpdated, func(_ context.Context, params *mcp.Value) {
		if params == nil {
			return
		}
		if uri, ok := params.Get("uri").String(); ok {
			fn(uri)
		}
	})
}
