package streamablehttp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
	session "github.com/mutablelogic/go-mcp/pkg/mcp/session"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
	streamablehttp "github.com/mutablelogic/go-mcp/pkg/mcp/transport/streamablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverInfo = mcp.Implementation{Name: "go-mcp-test-server", Version: "0.0.0"}

func newTestHandler(t *testing.T) (*streamablehttp.Handler, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	caps := &mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}}

	h, err := streamablehttp.NewHandler(ctx, func(ctx context.Context, tr transport.Transport) (*session.Server, error) {
		srv, err := session.NewServer(ctx, tr, serverInfo, caps, nil)
		if err != nil {
			return nil, err
		}
		_ = srv.Tools.RegisterTool("echo", mcp.Object().
			Set("name", mcp.String("echo")).
			Set("description", mcp.String("echoes text back")),
			func(hc *registry.HandlerContext, args *mcp.Value) (*registry.ToolResult, error) {
				text, _ := args.Get("text").String()
				return &registry.ToolResult{Content: []*mcp.Value{mcp.TextContent(text)}}, nil
			})
		return srv, nil
	}, streamablehttp.WithOriginPolicy(streamablehttp.AllowAny()))
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = h.Close() })
	return h, ts
}

func initializeBody() string {
	return `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`
}

func TestPostInitializeIssuesSessionID(t *testing.T) {
	_, ts := newTestHandler(t)

	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(initializeBody()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get("Mcp-Session-Id")
	assert.NotEmpty(t, sessionID)

	var env mcp.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.IsResponse())
	assert.Nil(t, env.Error)
}

func TestPostWithoutSessionAfterInitializeIs404(t *testing.T) {
	_, ts := newTestHandler(t)

	body := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func doInitialize(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(initializeBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	sessionID := resp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp2.StatusCode)
	return sessionID
}

func TestToolCallOverSinglePost(t *testing.T) {
	_, ts := newTestHandler(t)
	sessionID := doInitialize(t, ts)

	body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env mcp.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Nil(t, env.Error)
	content, ok := env.Result.Get("content").Array()
	require.True(t, ok)
	require.Len(t, content, 1)
	text, _ := content[0].Get("text").String()
	assert.Equal(t, "hi", text)
}

func TestBatchPostStreamsEachResponse(t *testing.T) {
	_, ts := newTestHandler(t)
	sessionID := doInitialize(t, ts)

	body := `[{"jsonrpc":"2.0","id":10,"method":"ping"},{"jsonrpc":"2.0","id":11,"method":"tools/list"}]`
	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	seen := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	deadline := time.Now().Add(5 * time.Second)
	for len(seen) < 2 && time.Now().Before(deadline) && scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env mcp.Envelope
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env))
		seen[env.ID.String()] = true
	}
	assert.True(t, seen["10"])
	assert.True(t, seen["11"])
}

func TestDeleteTerminatesSession(t *testing.T) {
	_, ts := newTestHandler(t)
	sessionID := doInitialize(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	body := `{"jsonrpc":"2.0","id":4,"method":"ping"}`
	req2, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(body))
	require.NoError(t, err)
	req2.Header.Set("Mcp-Session-Id", sessionID)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestOriginPolicyRejectsDisallowedOrigin(t *testing.T) {
	ctx := context.Background()
	caps := &mcp.ServerCapabilities{}

	ts := httptest.NewUnstartedServer(nil)
	defer ts.Close()
	host := ts.Listener.Addr().String()

	h, err := streamablehttp.NewHandler(ctx, func(ctx context.Context, tr transport.Transport) (*session.Server, error) {
		return session.NewServer(ctx, tr, serverInfo, caps, nil)
	}, streamablehttp.WithOriginPolicy(streamablehttp.AllowHosts([]string{host}, []string{"https://trusted.example"})))
	require.NoError(t, err)
	ts.Config.Handler = h
	ts.Start()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(initializeBody()))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMisdirectedRequest, resp.StatusCode)
}

func TestOriginPolicyRejectsDisallowedHost(t *testing.T) {
	ctx := context.Background()
	caps := &mcp.ServerCapabilities{}
	h, err := streamablehttp.NewHandler(ctx, func(ctx context.Context, tr transport.Transport) (*session.Server, error) {
		return session.NewServer(ctx, tr, serverInfo, caps, nil)
	}, streamablehttp.WithOriginPolicy(streamablehttp.AllowHosts([]string{"trusted.example"}, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(initializeBody()))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMisdirectedRequest, resp.StatusCode)
}

func TestAllowLocalhostAcceptsLoopbackHostOnAnyPort(t *testing.T) {
	policy := streamablehttp.AllowLocalhost()
	req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:54321/", nil)
	assert.True(t, policy.Allow(req))
}

func TestNewHandlerDefaultsToLocalhostOnlyOnLoopbackBind(t *testing.T) {
	ctx := context.Background()
	caps := &mcp.ServerCapabilities{}
	h, err := streamablehttp.NewHandler(ctx, func(ctx context.Context, tr transport.Transport) (*session.Server, error) {
		return session.NewServer(ctx, tr, serverInfo, caps, nil)
	}, streamablehttp.WithBindAddr("127.0.0.1:8080"))
	require.NoError(t, err)
	defer h.Close()

	req := httptest.NewRequest(http.MethodPost, "http://evil.example/", nil)
	req.Host = "evil.example"
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusMisdirectedRequest, resp.Code)
}

func TestNewHandlerDefaultsToNoneOnNonLoopbackBind(t *testing.T) {
	ctx := context.Background()
	caps := &mcp.ServerCapabilities{}
	h, err := streamablehttp.NewHandler(ctx, func(ctx context.Context, tr transport.Transport) (*session.Server, error) {
		return session.NewServer(ctx, tr, serverInfo, caps, nil)
	}, streamablehttp.WithBindAddr("0.0.0.0:8080"))
	require.NoError(t, err)
	defer h.Close()

	req := httptest.NewRequest(http.MethodPost, "http://anyhost.example/", strings.NewReader(initializeBody()))
	req.Host = "anyhost.example"
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.NotEqual(t, http.StatusMisdirectedRequest, resp.Code)
}
