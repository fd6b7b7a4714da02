package mcp

///////////////////////////////////////////////////////////////////////////////
// TOOLS

// ToolDefinition is the typed view of one tools/list entry, per spec.md §2's
// request for typed shapes where the original untyped *Value burdens every
// caller with manual Get chains.
type ToolDefinition struct {
	Name         string
	Description  string
	InputSchema  *Value
	OutputSchema *Value
}

// Value encodes t as the tools/list wire shape.
func (t ToolDefinition) Value() *Value { return NewToolDefinition(t.Name, t.Description, t.InputSchema, t.OutputSchema) }

// DecodeToolDefinition reads a tools/list entry back out of its wire shape.
func DecodeToolDefinition(v *Value) ToolDefinition {
	name, _ := v.Get("name").String()
	desc, _ := v.Get("description").String()
	return ToolDefinition{Name: name, Description: desc, InputSchema: v.Get("inputSchema"), OutputSchema: v.Get("outputSchema")}
}

// CallToolResult is the typed view of a tools/call response, per spec.md
// §4.6 step 5's "convert the handler's output ... into CallTool.Result".
type CallToolResult struct {
	Content           []*Value
	StructuredContent *Value
	IsError           bool
}

// Value encodes r as the tools/call wire shape.
func (r *CallToolResult) Value() *Value {
	result := Object().Set("content", Array(r.Content...)).Set("isError", Bool(r.IsError))
	if r.StructuredContent != nil {
		result.Set("structuredContent", r.StructuredContent)
	}
	return result
}

// DecodeCallToolResult reads a tools/call response back out of its wire
// shape.
func DecodeCallToolResult(v *Value) *CallToolResult {
	content, _ := v.Get("content").Array()
	isError, _ := v.Get("isError").Bool()
	return &CallToolResult{Content: content, StructuredContent: v.Get("structuredContent"), IsError: isError}
}

///////////////////////////////////////////////////////////////////////////////
// PROMPTS

// PromptDefinition is the typed view of one prompts/list entry.
type PromptDefinition struct {
	Name        string
	Description string
	Arguments   *Value
}

func (p PromptDefinition) Value() *Value { return NewPromptDefinition(p.Name, p.Description, p.Arguments) }

func DecodePromptDefinition(v *Value) PromptDefinition {
	name, _ := v.Get("name").String()
	desc, _ := v.Get("description").String()
	return PromptDefinition{Name: name, Description: desc, Arguments: v.Get("arguments")}
}

// GetPromptResult is the typed view of a prompts/get response.
type GetPromptResult struct {
	Description string
	Messages    []*Value
}

func (r *GetPromptResult) Value() *Value {
	result := Object().Set("messages", Array(r.Messages...))
	if r.Description != "" {
		result.Set("description", String(r.Description))
	}
	return result
}

func DecodeGetPromptResult(v *Value) *GetPromptResult {
	messages, _ := v.Get("messages").Array()
	desc, _ := v.Get("description").String()
	return &GetPromptResult{Description: desc, Messages: messages}
}

// PromptMessageRole returns the "role" member of a prompts/get message.
func PromptMessageRole(message *Value) string {
	role, _ := message.Get("role").String()
	return role
}

///////////////////////////////////////////////////////////////////////////////
// RESOURCES

// ResourceDefinition is the typed view of one resources/list entry.
type ResourceDefinition struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

func DecodeResourceDefinition(v *Value) ResourceDefinition {
	uri, _ := v.Get("uri").String()
	name, _ := v.Get("name").String()
	desc, _ := v.Get("description").String()
	mime, _ := v.Get("mimeType").String()
	return ResourceDefinition{URI: uri, Name: name, Description: desc, MimeType: mime}
}

// ResourceContents is the typed view of one resources/read contents entry.
type ResourceContents struct {
	URI      string
	MimeType string
	Text     string
	Blob     []byte
}

func DecodeResourceContents(v *Value) ResourceContents {
	uri, _ := v.Get("uri").String()
	mime, _ := v.Get("mimeType").String()
	text, _ := v.Get("text").String()
	_, blob, _ := v.Get("blob").Binary()
	return ResourceContents{URI: uri, MimeType: mime, Text: text, Blob: blob}
}

// Value encodes r as one resources/read "contents" entry.
func (r ResourceContents) Value() *Value {
	v := Object().Set("uri", String(r.URI))
	if r.MimeType != "" {
		v.Set("mimeType", String(r.MimeType))
	}
	if r.Blob != nil {
		v.Set("blob", Binary(r.MimeType, r.Blob))
	} else {
		v.Set("text", String(r.Text))
	}
	return v
}

///////////////////////////////////////////////////////////////////////////////
// ROOTS

// Root is the typed view of one roots/list entry.
type Root struct {
	URI  string
	Name string
}

// DecodeRoots reads a roots/list result's "roots" array into typed Root
// values.
func DecodeRoots(v *Value) []Root {
	arr, _ := v.Get("roots").Array()
	roots := make([]Root, 0, len(arr))
	for _, r := range arr {
		uri, _ := r.Get("uri").String()
		name, _ := r.Get("name").String()
		roots = append(roots, Root{URI: uri, Name: name})
	}
	return roots
}

///////////////////////////////////////////////////////////////////////////////
// SAMPLING / ELICITATION

// NewCreateMessageParams builds a sampling/createMessage request, the typed
// constructor for HandlerContext.CreateSamplingMessage's params.
func NewCreateMessageParams(messages []*Value, maxTokens int) *Value {
	return Object().Set("messages", Array(messages...)).Set("maxTokens", Int(int64(maxTokens)))
}

// NewElicitationParams builds an elicitation/create request, the typed
// constructor for HandlerContext.Elicit's params.
func NewElicitationParams(message string, schema *Value) *Value {
	v := Object().Set("message", String(message))
	if schema != nil {
		v.Set("requestedSchema", schema)
	}
	return v
}
