package session

import (
	"testing"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateStructuredContentRejectsMissingStructuredContent exercises the
// client-side half of spec.md §4.6 step 6: a tool that declared an
// outputSchema in the last tools/list must not be allowed to answer a
// non-error tools/call without structuredContent, even though the server is
// independently required to enforce the same rule before it replies.
func TestValidateStructuredContentRejectsMissingStructuredContent(t *testing.T) {
	c := &Client{}
	c.cacheOutputSchemas([]mcp.ToolDefinition{
		{Name: "add", OutputSchema: mcp.Object().Set("type", mcp.String("object"))},
	})

	err := c.validateStructuredContent("add", &mcp.CallToolResult{Content: []*mcp.Value{mcp.TextContent("3")}})
	require.Error(t, err)
	kind, ok := mcp.AsKind(err)
	require.True(t, ok)
	assert.Equal(t, mcp.ErrInternal, kind)
}

func TestValidateStructuredContentAcceptsPresentStructuredContent(t *testing.T) {
	c := &Client{}
	c.cacheOutputSchemas([]mcp.ToolDefinition{
		{Name: "add", OutputSchema: mcp.Object().Set("type", mcp.String("object"))},
	})

	result := &mcp.CallToolResult{
		Content:           []*mcp.Value{mcp.TextContent("3")},
		StructuredContent: mcp.Object().Set("sum", mcp.Int(3)),
	}
	assert.NoError(t, c.validateStructuredContent("add", result))
}

func TestValidateStructuredContentIgnoresErrorResponses(t *testing.T) {
	c := &Client{}
	c.cacheOutputSchemas([]mcp.ToolDefinition{
		{Name: "add", OutputSchema: mcp.Object().Set("type", mcp.String("object"))},
	})

	result := &mcp.CallToolResult{Content: []*mcp.Value{mcp.TextContent("boom")}, IsError: true}
	assert.NoError(t, c.validateStructuredContent("add", result))
}

func TestValidateStructuredContentIgnoresUndeclaredTools(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.validateStructuredContent("untracked", &mcp.CallToolResult{}))
}

// TestCacheOutputSchemasForgetsDroppedSchema covers a tool that declared an
// outputSchema in one tools/list and stops declaring one in the next: the
// cache must forget it rather than keep enforcing a stale requirement.
func TestCacheOutputSchemasForgetsDroppedSchema(t *testing.T) {
	c := &Client{}
	c.cacheOutputSchemas([]mcp.ToolDefinition{
		{Name: "add", OutputSchema: mcp.Object().Set("type", mcp.String("object"))},
	})
	c.cacheOutputSchemas([]mcp.ToolDefinition{
		{Name: "add"},
	})
	assert.NoError(t, c.validateStructuredContent("add", &mcp.CallToolResult{Content: []*mcp.Value{mcp.TextContent("3")}}))
}
