// Package managed wraps pkg/mcp/session.Client with the reconnection
// policy of spec.md §4.7: a dropped transport is retried with exponential
// backoff rather than surfaced as a fatal error, and a caller mid-call gets
// one transparent retry once a fresh session replaces it. Grounded on the
// teacher's pkg/mcp/client/client.go listen() loop, generalized from "one
// background SSE stream reconnecting in place" to "the whole client
// session, including its handshake, gets re-established from scratch".
package managed

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	session "github.com/mutablelogic/go-mcp/pkg/mcp/session"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// State is the connection state of a managed Endpoint.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Dialer opens a fresh transport to the server. Endpoint calls it once per
// connection attempt; a Streamable HTTP dialer typically closes over
// streamablehttp.NewClient, a stdio dialer over a long-lived process pipe.
type Dialer func(ctx context.Context) (transport.Transport, error)

// Endpoint is a self-reconnecting MCP client session. Its current
// *session.Client is reached through Call, which fails with connection-closed
// unless State is StateConnected and wraps an arbitrary session.Client
// method with the retry-once policy.
type Endpoint struct {
	dial       Dialer
	info       mcp.Implementation
	caps       *mcp.ClientCapabilities
	opts       []session.Opt
	logger     *log.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	pingEvery  time.Duration

	mu       sync.RWMutex
	client   *session.Client
	state    State
	attempt  int
	tools    []mcp.ToolDefinition
	onTools  func([]mcp.ToolDefinition)
	onState  func(State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Opt configures an Endpoint at construction time.
type Opt func(*Endpoint)

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithBackoff overrides the default 1s-to-30s exponential backoff window.
func WithBackoff(min, max time.Duration) Opt {
	return func(e *Endpoint) { e.minBackoff, e.maxBackoff = min, max }
}

// WithHealthPing enables a periodic Ping every interval; a failed ping
// forces a reconnect rather than waiting for the transport to report closed.
func WithHealthPing(interval time.Duration) Opt {
	return func(e *Endpoint) { e.pingEvery = interval }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Opt {
	return func(e *Endpoint) { e.logger = l }
}

// WithSessionOpts passes options through to every session.NewClient call.
// Endpoint installs its own session.WithOnClosed to detect disconnection,
// so an option set here that also calls WithOnClosed is overridden.
func WithSessionOpts(opts ...session.Opt) Opt {
	return func(e *Endpoint) { e.opts = append(e.opts, opts...) }
}

// WithOnToolsChanged registers a callback invoked with the refreshed tool
// list whenever a full reconnect completes, per spec.md §4.7's
// on_tools_changed requirement.
func WithOnToolsChanged(fn func([]mcp.ToolDefinition)) Opt {
	return func(e *Endpoint) { e.onTools = fn }
}

// WithOnStateChanged registers a callback invoked on every state transition.
func WithOnStateChanged(fn func(State)) Opt {
	return func(e *Endpoint) { e.onState = fn }
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewEndpoint starts connecting to the server via dial and returns
// immediately; use WaitConnected to block until the first handshake
// completes, or State/WithOnStateChanged to observe progress.
func NewEndpoint(ctx context.Context, dial Dialer, info mcp.Implementation, caps *mcp.ClientCapabilities, opts ...Opt) *Endpoint {
	ctx, cancel := context.WithCancel(ctx)
	e := &Endpoint{
		dial:       dial,
		info:       info,
		caps:       caps,
		logger:     log.New(os.Stderr, "managed: ", log.LstdFlags),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.wg.Add(1)
	go e.run()
	if e.pingEvery > 0 {
		e.wg.Add(1)
		go e.healthLoop()
	}
	return e
}

// Close stops reconnection attempts and closes the current session.
func (e *Endpoint) Close() error {
	e.cancel()
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// State returns the current connection state.
func (e *Endpoint) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Tools returns the tool list captured at the last successful handshake or
// reconnect.
func (e *Endpoint) Tools() []mcp.ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tools
}

// Attempt returns the current reconnect attempt number, 0 while connected
// or before the first attempt.
func (e *Endpoint) Attempt() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attempt
}

// WaitConnected blocks until the Endpoint reaches StateConnected or ctx is
// done, whichever comes first.
func (e *Endpoint) WaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if e.State() == StateConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ctx.Done():
			return fmt.Errorf("endpoint closed")
		case <-ticker.C:
		}
	}
}

// Call runs fn against the current session.Client. If fn fails with a
// retriable mcp.Kind (connection-closed, transport-error, session-expired),
// Call waits until the Endpoint reports StateConnected again (at once if the
// session never dropped) and retries fn exactly once.
func (e *Endpoint) Call(ctx context.Context, fn func(*session.Client) error) error {
	client, ok := e.current()
	if !ok {
		return mcp.ErrConnectionClosed.With("not connected")
	}

	err := fn(client)
	if err == nil {
		return nil
	}
	kind, ok := mcp.AsKind(err)
	if !ok || !kind.Retriable() || kind == mcp.ErrURLElicitationRequired {
		return err
	}

	if waitErr := e.WaitConnected(ctx); waitErr != nil {
		return err
	}
	client, ok = e.current()
	if !ok {
		return err
	}
	return fn(client)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Endpoint) current() (*session.Client, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client, e.state == StateConnected
}

func (e *Endpoint) setState(s State) {
	e.mu.Lock()
	e.state = s
	cb := e.onState
	e.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// run drives the connect/reconnect loop, grounded on the teacher's
// listen(): exponential backoff from minBackoff to maxBackoff, reset to
// minBackoff after each successful connection.
func (e *Endpoint) run() {
	defer e.wg.Done()

	backoff := e.minBackoff
	for attempt := 0; ; attempt++ {
		if e.ctx.Err() != nil {
			return
		}

		if attempt == 0 {
			e.setState(StateConnecting)
		} else {
			e.mu.Lock()
			e.attempt = attempt
			e.mu.Unlock()
			e.setState(StateReconnecting)
		}

		client, tools, closed, err := e.connectOnce()
		if err != nil {
			e.logger.Printf("connect failed: %v (retrying in %v)", err, backoff)
			e.setState(StateDisconnected)
			select {
			case <-e.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, e.maxBackoff)
			continue
		}

		e.mu.Lock()
		e.client = client
		e.tools = tools
		e.attempt = 0
		e.mu.Unlock()
		e.setState(StateConnected)
		backoff = e.minBackoff
		if e.onTools != nil {
			e.onTools(tools)
		}

		select {
		case <-e.ctx.Done():
			return
		case <-closed:
		}
		if e.ctx.Err() != nil {
			return
		}
		e.logger.Printf("session closed, reconnecting")
	}
}

// connectOnce dials a fresh transport, completes the handshake, and fetches
// the initial tool list. The returned channel closes when the session's
// Engine reports its transport closed, driving run()'s reconnect loop.
func (e *Endpoint) connectOnce() (*session.Client, []mcp.ToolDefinition, <-chan struct{}, error) {
	t, err := e.dial(e.ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial: %w", err)
	}

	closed := make(chan struct{})
	var once sync.Once
	opts := append(append([]session.Opt{}, e.opts...), session.WithOnClosed(func(error) {
		once.Do(func() { close(closed) })
	}))

	client, _, err := session.NewClient(e.ctx, t, e.info, e.caps, opts...)
	if err != nil {
		_ = t.Close()
		return nil, nil, nil, fmt.Errorf("handshake: %w", err)
	}
	tools, _, err := client.ListTools(e.ctx, "")
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("list tools: %w", err)
	}
	return client, tools, closed, nil
}

func (e *Endpoint) healthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			client, ok := e.current()
			if !ok {
				continue
			}
			ctx, cancel := context.WithTimeout(e.ctx, e.pingEvery/2)
			err := client.Ping(ctx)
			cancel()
			if err != nil {
				e.logger.Printf("health ping failed: %v", err)
				_ = client.Close()
			}
		}
	}
}
