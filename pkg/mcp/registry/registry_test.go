package registry_test

import (
	"testing"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsRegisterAndExecute(t *testing.T) {
	var changed int
	tools := registry.NewTools(nil, func() { changed++ })

	def := mcp.Object().
		Set("name", mcp.String("add_numbers")).
		Set("inputSchema", mcp.Object().
			Set("type", mcp.String("object")).
			Set("properties", mcp.Object().
				Set("a", mcp.Object().Set("type", mcp.String("integer"))).
				Set("b", mcp.Object().Set("type", mcp.String("integer")))).
			Set("required", mcp.Array(mcp.String("a"), mcp.String("b"))))

	err := tools.RegisterTool("add_numbers", def, func(hc *registry.HandlerContext, args *mcp.Value) (*registry.ToolResult, error) {
		a, _ := args.Get("a").Int()
		b, _ := args.Get("b").Int()
		return &registry.ToolResult{
			Content:           []*mcp.Value{mcp.String("sum computed")},
			StructuredContent: mcp.Object().Set("sum", mcp.Int(a+b)),
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	args := mcp.Object().Set("a", mcp.Int(5)).Set("b", mcp.Int(3))
	res, err := tools.Execute(&registry.HandlerContext{}, "add_numbers", args)
	require.NoError(t, err)
	sum, _ := res.StructuredContent.Get("sum").Int()
	assert.Equal(t, int64(8), sum)
}

func TestToolsDuplicateRegistration(t *testing.T) {
	tools := registry.NewTools(nil, nil)
	def := mcp.Object().Set("name", mcp.String("x"))
	require.NoError(t, tools.RegisterTool("x", def, noopTool))
	err := tools.RegisterTool("x", def, noopTool)
	assert.ErrorIs(t, err, mcp.ErrInvalidParams)
}

func TestToolsDisabledExcludedFromList(t *testing.T) {
	tools := registry.NewTools(nil, nil)
	def := mcp.Object().Set("name", mcp.String("x"))
	require.NoError(t, tools.RegisterTool("x", def, noopTool))
	require.NoError(t, tools.Disable("x"))

	assert.Empty(t, tools.ListEnabled())
	_, err := tools.Execute(&registry.HandlerContext{}, "x", nil)
	assert.ErrorIs(t, err, mcp.ErrInvalidParams)
}

func TestToolsNotFound(t *testing.T) {
	tools := registry.NewTools(nil, nil)
	_, err := tools.Execute(&registry.HandlerContext{}, "missing", nil)
	assert.ErrorIs(t, err, mcp.ErrMethodNotFound)
}

func noopTool(hc *registry.HandlerContext, args *mcp.Value) (*registry.ToolResult, error) {
	return &registry.ToolResult{Content: []*mcp.Value{mcp.String("ok")}}, nil
}
