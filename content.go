package mcp

///////////////////////////////////////////////////////////////////////////////
// CONTENT BLOCKS

// TextContent wraps text as a tools/call, prompts/get, or sampling content
// block, per spec.md §4.6 step 5. It is the typed constructor a handler
// should call instead of hand-building the {"type":"text",...} wire object.
func TextContent(text string) *Value {
	return Object().Set("type", String("text")).Set("text", String(text))
}

// ImageContent wraps raw image bytes as a content block. data is the raw
// (not base64-encoded) image; it is encoded on the wire as part of Value's
// data-URL binary representation.
func ImageContent(data []byte, mimeType string) *Value {
	return Object().Set("type", String("image")).Set("data", Binary(mimeType, data)).Set("mimeType", String(mimeType))
}

// AudioContent wraps raw audio bytes as a content block, encoded on the wire
// as a data URL like ImageContent's.
func AudioContent(data []byte, mimeType string) *Value {
	return Object().Set("type", String("audio")).Set("data", Binary(mimeType, data)).Set("mimeType", String(mimeType))
}

// ResourceLinkContent wraps a reference to a resource the peer can fetch
// separately via resources/read, rather than inlining its contents.
func ResourceLinkContent(uri, name, mimeType string) *Value {
	v := Object().Set("type", String("resource_link")).Set("uri", String(uri))
	if name != "" {
		v.Set("name", String(name))
	}
	if mimeType != "" {
		v.Set("mimeType", String(mimeType))
	}
	return v
}

// EmbeddedResourceContent wraps a resource's contents inline, as opposed to
// ResourceLinkContent's by-reference form.
func EmbeddedResourceContent(uri, mimeType, text string) *Value {
	resource := Object().Set("uri", String(uri))
	if mimeType != "" {
		resource.Set("mimeType", String(mimeType))
	}
	if text != "" {
		resource.Set("text", String(text))
	}
	return Object().Set("type", String("resource")).Set("resource", resource)
}

///////////////////////////////////////////////////////////////////////////////
// TOOL / PROMPT DEFINITIONS

// NewToolDefinition builds the tools/list wire shape for one tool, the
// typed constructor a caller should use instead of hand-building the
// {"name":...,"inputSchema":...} object passed to Tools.RegisterTool.
// outputSchema may be nil for a tool with no structured result.
func NewToolDefinition(name, description string, inputSchema, outputSchema *Value) *Value {
	def := Object().Set("name", String(name))
	if description != "" {
		def.Set("description", String(description))
	}
	if inputSchema != nil {
		def.Set("inputSchema", inputSchema)
	}
	if outputSchema != nil {
		def.Set("outputSchema", outputSchema)
	}
	return def
}

// NewPromptDefinition builds the prompts/list wire shape for one prompt.
func NewPromptDefinition(name, description string, arguments *Value) *Value {
	def := Object().Set("name", String(name))
	if description != "" {
		def.Set("description", String(description))
	}
	if arguments != nil {
		def.Set("arguments", arguments)
	}
	return def
}

// ContentText returns the "text" member of a text content block, or "" if
// block is nil or not a text block.
func ContentText(block *Value) string {
	if block == nil {
		return ""
	}
	if typ, _ := block.Get("type").String(); typ != "text" {
		return ""
	}
	text, _ := block.Get("text").String()
	return text
}
