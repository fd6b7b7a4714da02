// Package session implements the bidirectional JSON-RPC dispatcher of
// spec.md §4.1: request/response correlation, cancellation, progress,
// timeouts, batching, and capability-gated method routing. It is grounded
// on the teacher's pkg/mcp/client/client.go (correlation, reconnect-driving
// id counter) and pkg/mcp/server.go (handler map, dispatch loop), lifted off
// HTTP specifics and onto the transport.Transport abstraction so the same
// engine drives both stdio and Streamable HTTP.
package session

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Role distinguishes which side of the handshake an Engine plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// RequestHandler answers an inbound request. A non-nil error is sent as an
// error response instead of the result: a *mcp.Error is sent as is, an error
// wrapping an mcp.Kind (from Kind.With/Withf) carries that kind's code, and
// any other error becomes an internal-error response.
type RequestHandler func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error)

// NotificationHandler handles an inbound notification. Handlers run outside
// the receive loop (spawned per notification) so a handler may freely call
// back into the Engine without deadlocking, per spec.md §4.1.
type NotificationHandler func(ctx context.Context, params *mcp.Value)

// Engine is one endpoint (Client or Server role) of an MCP connection.
type Engine struct {
	role      Role
	transport transport.Transport
	logger    *log.Logger

	idCounter atomic.Int64

	mu                sync.RWMutex
	requestHandlers   map[string]RequestHandler
	notifyHandlers    map[string][]NotificationHandler

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest

	progressOnce sync.Once
	progress     progressRegistry

	activeOnce sync.Once
	active     activeHandlers

	stateMu          sync.RWMutex
	strict           bool
	initialized      bool
	serverCaps       *mcp.ServerCapabilities
	clientCaps       *mcp.ClientCapabilities
	sessionID        string
	protocolVersion  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onClosed func(err error)
}

var _ registry.Peer = (*Engine)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Opt configures an Engine.
type Opt = mcp.Opt[Engine]

func WithLogger(l *log.Logger) Opt {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithStrict enables strict mode: any non-ping request sent before the
// initialize handshake completes is locally rejected with invalid-request,
// per spec.md §3 invariant (iv) / §8 invariant 7.
func WithStrict(strict bool) Opt {
	return func(e *Engine) error {
		e.strict = strict
		return nil
	}
}

func WithOnClosed(fn func(err error)) Opt {
	return func(e *Engine) error {
		e.onClosed = fn
		return nil
	}
}

// New creates an Engine bound to transport t and starts its receive loop in
// the background. Cancel ctx (or call Close) to shut the engine down: every
// in-flight handler task is cancelled, the transport is closed, and all
// pending sends resolve with connection-closed, per spec.md §5.
func New(ctx context.Context, role Role, t transport.Transport, opts ...Opt) (*Engine, error) {
	innerCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		role:            role,
		transport:       t,
		logger:          log.Default(),
		requestHandlers: make(map[string]RequestHandler),
		notifyHandlers:  make(map[string][]NotificationHandler),
		pending:         make(map[string]*pendingRequest),
		strict:          true,
		ctx:             innerCtx,
		cancel:          cancel,
	}
	if err := mcp.Apply(e, opts...); err != nil {
		cancel()
		return nil, err
	}
	e.progressOnce.Do(e.initProgress)
	e.RegisterNotificationHandler(mcp.NotificationProgress, e.handleProgressNotification)
	e.wg.Add(1)
	go e.receiveLoop()
	return e, nil
}

// Close cancels the receive loop, every in-flight handler, fails all
// pending sends with connection-closed, closes the transport, and reports
// the closure to the WithOnClosed callback.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	e.failAllPending(mcp.ErrConnectionClosed.With("engine closed"))
	err := e.transport.Close()
	if e.onClosed != nil {
		e.onClosed(mcp.ErrConnectionClosed.With("engine closed"))
	}
	return err
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — registration

// RegisterRequestHandler installs the handler invoked when the peer sends
// method. A second registration for the same method replaces the first.
func (e *Engine) RegisterRequestHandler(method string, h RequestHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestHandlers[method] = h
}

// RegisterNotificationHandler installs an additional handler for method;
// multiple handlers may be registered for the same method.
func (e *Engine) RegisterNotificationHandler(method string, h NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifyHandlers[method] = append(e.notifyHandlers[method], h)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — state

func (e *Engine) Role() Role { return e.role }

func (e *Engine) Initialized() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.initialized
}

func (e *Engine) setInitialized(server *mcp.ServerCapabilities, client *mcp.ClientCapabilities) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.initialized = true
	e.serverCaps = server
	e.clientCaps = client
}

func (e *Engine) ServerCapabilities() *mcp.ServerCapabilities {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.serverCaps
}

func (e *Engine) ClientCapabilities() *mcp.ClientCapabilities {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.clientCaps
}

func (e *Engine) SessionID() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.sessionID
}

func (e *Engine) SetSessionID(id string) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.sessionID = id
}

// NegotiatedProtocolVersion returns the protocolVersion agreed during
// initialize, or "" before the handshake completes.
func (e *Engine) NegotiatedProtocolVersion() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.protocolVersion
}

func (e *Engine) setProtocolVersion(v string) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.protocolVersion = v
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) nextID() mcp.ID {
	return mcp.NewIntID(e.idCounter.Add(1))
}

func (e *Engine) receiveLoop() {
	defer e.wg.Done()
	recv := e.transport.Receive()
	errs := e.transport.Errors()
	for {
		select {
		case <-e.ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Printf("session: transport error: %v", err)
		case env, ok := <-recv:
			if !ok {
				e.handleTransportClosed()
				return
			}
			e.dispatch(env)
		}
	}
}

func (e *Engine) handleTransportClosed() {
	e.failAllPending(mcp.ErrConnectionClosed.With("transport closed"))
	if e.onClosed != nil {
		e.onClosed(mcp.ErrConnectionClosed.With("transport closed"))
	}
}

func (e *Engine) dispatch(env *mcp.Envelope) {
	switch {
	case env.IsResponse():
		e.resolvePending(env)
	case env.IsNotification():
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.dispatchNotification(env)
		}()
	case env.IsRequest():
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.dispatchRequest(env)
		}()
	}
}

func (e *Engine) dispatchNotification(env *mcp.Envelope) {
	if env.Method == mcp.NotificationCancelled {
		e.handleCancelledNotification(env.Params)
		return
	}
	e.mu.RLock()
	handlers := append([]NotificationHandler(nil), e.notifyHandlers[env.Method]...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Printf("session: notification handler for %q panicked: %v", env.Method, r)
				}
			}()
			h(e.ctx, env.Params)
		}()
	}
}

func (e *Engine) dispatchRequest(env *mcp.Envelope) {
	if e.strict && !e.Initialized() && e.role == RoleServer && env.Method != mcp.MethodInitialize && env.Method != mcp.MethodPing {
		e.sendError(env.ID, mcp.NewError(mcp.ErrInvalidRequest, "initialize must be the first request", nil))
		return
	}

	e.mu.RLock()
	handler, ok := e.requestHandlers[env.Method]
	e.mu.RUnlock()
	if !ok {
		e.sendError(env.ID, mcp.NewError(mcp.ErrMethodNotFound, "", mcp.String(env.Method)))
		return
	}

	handlerCtx, cancel := context.WithCancel(e.ctx)
	defer cancel()
	key := env.ID.String()
	e.registerActive(key, cancel)
	defer e.unregisterActive(key)

	hc := &registry.HandlerContext{
		Context:            handlerCtx,
		RequestID:          env.ID,
		SessionID:          e.SessionID(),
		ServerCapabilities: e.ServerCapabilities(),
		ClientCapabilities: e.ClientCapabilities(),
		Peer:               e,
	}
	if env.Params != nil {
		if meta := env.Params.Get("_meta"); meta != nil {
			if rt, ok := meta.Get(mcp.MetaRelatedTaskKey).String(); ok {
				hc.RelatedTaskID = rt
			}
			if token, ok := meta.Get("progressToken").String(); ok {
				hc.OnProgress = func(progress, total float64, message string) {
					params := mcp.Object().
						Set("progressToken", mcp.String(token)).
						Set("progress", mcp.Float(progress)).
						Set("total", mcp.Float(total)).
						Set("message", mcp.String(message))
					_ = e.Notify(e.ctx, mcp.NotificationProgress, params)
				}
			}
		}
	}

	result, err := handler(hc, env.Params)
	if handlerCtx.Err() != nil {
		// Cancelled mid-flight: per spec.md §8 scenario S4, no response is
		// sent for a cancelled request.
		return
	}
	if err != nil {
		e.sendError(env.ID, toWireError(err))
		return
	}
	_ = e.transport.Send(e.ctx, mcp.NewResponse(env.ID, result))
}

func (e *Engine) sendError(id mcp.ID, err *mcp.Error) {
	if sendErr := e.transport.Send(e.ctx, mcp.NewErrorResponse(id, err)); sendErr != nil {
		e.logger.Printf("session: failed to send error response: %v", sendErr)
	}
}

// toWireError converts any error a request handler returns into a wire
// *mcp.Error: a *mcp.Error passes through unchanged, a Kind-wrapped error
// (from Kind.With/Withf, as registry handlers return) maps to its Kind's
// code, and anything else becomes an opaque internal-error.
func toWireError(err error) *mcp.Error {
	if mcpErr, ok := err.(*mcp.Error); ok {
		return mcpErr
	}
	if kind, ok := mcp.AsKind(err); ok {
		return mcp.NewError(kind, err.Error(), nil)
	}
	return mcp.NewError(mcp.ErrInternal, err.Error(), nil)
}

///////////////////////////////////////////////////////////////////////////////
// PEER (registry.Peer)

// SendRequest implements registry.Peer so tool/prompt/resource handlers can
// call back into the peer (elicit, sample, list roots).
func (e *Engine) SendRequest(ctx context.Context, method string, params *mcp.Value) (*mcp.Value, error) {
	return e.Request(ctx, method, params)
}

func (e *Engine) SendNotification(ctx context.Context, method string, params *mcp.Value) error {
	return e.Notify(ctx, method, params)
}
