package managed_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	managed "github.com/mutablelogic/go-mcp/pkg/mcp/managed"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
	session "github.com/mutablelogic/go-mcp/pkg/mcp/session"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
	stdio "github.com/mutablelogic/go-mcp/pkg/mcp/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfo = mcp.Implementation{Name: "go-mcp-managed-test", Version: "0.0.0"}

func echoTool(hc *registry.HandlerContext, args *mcp.Value) (*registry.ToolResult, error) {
	text, _ := args.Get("text").String()
	return &registry.ToolResult{Content: []*mcp.Value{mcp.TextContent(text)}}, nil
}

// fixtureServer runs one stdio-linked MCP server per dial, so each
// reconnect attempt gets a fresh session.Server, mirroring a real listener
// accepting a new connection. It tracks the pipe feeding the most recent
// dial's client-side reader so a test can sever it from outside: closing
// that writer delivers EOF to the client transport's read loop, the same
// way a dropped TCP connection would, rather than a graceful client Close.
type fixtureServer struct {
	ctx   context.Context
	dials atomic.Int32

	mu           sync.Mutex
	lastClientWr *io.PipeWriter
}

func (f *fixtureServer) dial(ctx context.Context) (transport.Transport, error) {
	f.dials.Add(1)
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	clientTransport, err := stdio.New(ctx, sr, sw)
	if err != nil {
		return nil, err
	}
	serverTransport, err := stdio.New(ctx, cr, cw)
	if err != nil {
		return nil, err
	}

	caps := &mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}}
	srv, err := session.NewServer(ctx, serverTransport, mcp.Implementation{Name: "fixture-server", Version: "0.0.0"}, caps, nil)
	if err != nil {
		return nil, err
	}
	if err := srv.Tools.RegisterTool("echo", mcp.Object().
		Set("name", mcp.String("echo")).
		Set("description", mcp.String("echoes text back")), echoTool); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.lastClientWr = cw
	f.mu.Unlock()
	return clientTransport, nil
}

// sever closes the pipe writer feeding the most recently dialed client's
// reader, delivering it an EOF the way a dropped connection would.
func (f *fixtureServer) sever() {
	f.mu.Lock()
	w := f.lastClientWr
	f.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}

func TestEndpointConnectsAndListsTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &fixtureServer{ctx: ctx}
	ep := managed.NewEndpoint(ctx, fx.dial, testInfo, &mcp.ClientCapabilities{})
	defer ep.Close()

	require.NoError(t, ep.WaitConnected(ctx))
	assert.Equal(t, managed.StateConnected, ep.State())
	assert.Len(t, ep.Tools(), 1)
}

func TestEndpointReconnectsAfterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &fixtureServer{ctx: ctx}
	var toolsChanged atomic.Int32
	ep := managed.NewEndpoint(ctx, fx.dial, testInfo, &mcp.ClientCapabilities{},
		managed.WithBackoff(10*time.Millisecond, 20*time.Millisecond),
		managed.WithOnToolsChanged(func([]mcp.ToolDefinition) { toolsChanged.Add(1) }),
	)
	defer ep.Close()

	require.NoError(t, ep.WaitConnected(ctx))
	assert.Equal(t, int32(1), toolsChanged.Load())

	fx.sever()

	deadline := time.After(2 * time.Second)
	for ep.State() != managed.StateConnected || fx.dials.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("endpoint did not reconnect: state=%v dials=%d", ep.State(), fx.dials.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.GreaterOrEqual(t, toolsChanged.Load(), int32(2))
}

func TestEndpointStateString(t *testing.T) {
	assert.Equal(t, "disconnected", managed.StateDisconnected.String())
	assert.Equal(t, "connecting", managed.StateConnecting.String())
	assert.Equal(t, "connected", managed.StateConnected.String())
	assert.Equal(t, "reconnecting", managed.StateReconnecting.String())
}
