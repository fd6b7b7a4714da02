package session

import (
	"context"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// RequestOpt configures a single outbound Request call.
type RequestOpt func(*requestConfig)

type requestConfig struct {
	timeout         time.Duration
	resetOnProgress bool
	maxTotal        time.Duration
	onProgress      func(progress, total float64, message string)
}

const defaultTimeout = 60 * time.Second

// WithTimeout sets a fixed deadline for the request, per spec.md §4.1
// "fixed(d)".
func WithTimeout(d time.Duration) RequestOpt {
	return func(c *requestConfig) { c.timeout = d }
}

// WithResetOnProgress resets the remaining budget to d every time a
// notifications/progress citing this request's token arrives; max caps
// total elapsed time if non-zero, per spec.md §4.1 "reset_on_progress(d, max?)".
// Progress notifications are only requested (a progress token is only sent)
// when WithProgressCallback is also given.
func WithResetOnProgress(d time.Duration, max time.Duration) RequestOpt {
	return func(c *requestConfig) {
		c.timeout = d
		c.resetOnProgress = true
		c.maxTotal = max
	}
}

// WithProgressCallback registers the callback invoked for
// notifications/progress citing this request's token.
func WithProgressCallback(fn func(progress, total float64, message string)) RequestOpt {
	return func(c *requestConfig) { c.onProgress = fn }
}

type pendingRequest struct {
	id    mcp.ID
	done  chan *pendingResult
	cfg   requestConfig
	start time.Time
}

type pendingResult struct {
	value *mcp.Value
	err   error
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Request registers a fresh id, writes the envelope, and suspends until the
// matching response, cancellation, or timeout resolves it, per spec.md §4.1.
func (e *Engine) Request(ctx context.Context, method string, params *mcp.Value, opts ...RequestOpt) (*mcp.Value, error) {
	if gated, localResult, gerr := e.checkCapabilityGate(method); gated {
		return localResult, gerr
	}

	cfg := requestConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if e.strict && e.role == RoleClient && !e.Initialized() && method != mcp.MethodInitialize && method != mcp.MethodPing {
		return nil, mcp.ErrInvalidRequest.With("initialize must be the first request")
	}

	id := e.nextID()
	pr := &pendingRequest{
		id:    id,
		done:  make(chan *pendingResult, 1),
		cfg:   cfg,
		start: time.Now(),
	}

	e.pendingMu.Lock()
	e.pending[id.String()] = pr
	e.pendingMu.Unlock()

	if cfg.onProgress != nil {
		if params == nil {
			params = mcp.Object()
		}
		params = withProgressToken(params, id)
	}

	if err := e.transport.Send(ctx, mcp.NewRequest(id, method, params)); err != nil {
		e.removePending(id.String())
		return nil, mcp.ErrTransport.Withf("send %s: %v", method, err)
	}

	var timer *time.Timer
	if cfg.timeout > 0 {
		timer = time.AfterFunc(cfg.timeout, func() { e.timeoutPending(id) })
	}
	if cfg.onProgress != nil {
		e.registerProgressCallback(id, func(progress, total float64, message string) {
			if next := cfg.timeout; cfg.resetOnProgress && timer != nil {
				if left := cfg.maxTotal - time.Since(pr.start); cfg.maxTotal > 0 && left < next {
					next = left
				}
				timer.Reset(next)
			}
			cfg.onProgress(progress, total, message)
		})
	}

	select {
	case res := <-pr.done:
		if timer != nil {
			timer.Stop()
		}
		if cfg.onProgress != nil {
			e.unregisterProgressCallback(id)
		}
		return res.value, res.err
	case <-ctx.Done():
		e.CancelRequest(id, "context cancelled")
		if timer != nil {
			timer.Stop()
		}
		return nil, ctx.Err()
	case <-e.ctx.Done():
		if timer != nil {
			timer.Stop()
		}
		return nil, mcp.ErrConnectionClosed.With("engine shutting down")
	}
}

// Notify sends a fire-and-forget notification.
func (e *Engine) Notify(ctx context.Context, method string, params *mcp.Value) error {
	if gated, _, _ := e.checkCapabilityGate(method); gated {
		return nil // lenient for notifications: silently drop ungated sends
	}
	return e.transport.Send(ctx, mcp.NewNotification(method, params))
}

// CancelRequest sends notifications/cancelled for id and locally resolves
// the pending entry with a cancelled error, per spec.md §4.1.
func (e *Engine) CancelRequest(id mcp.ID, reason string) {
	if !e.removePendingResolve(id.String(), nil, mcp.ErrRequestCancelled.With(reason)) {
		return
	}
	params := mcp.Object().Set("requestId", idValue(id))
	if reason != "" {
		params.Set("reason", mcp.String(reason))
	}
	_ = e.transport.Send(e.ctx, mcp.NewNotification(mcp.NotificationCancelled, params))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) removePending(key string) {
	e.pendingMu.Lock()
	delete(e.pending, key)
	e.pendingMu.Unlock()
}

func (e *Engine) removePendingResolve(key string, value *mcp.Value, err error) bool {
	e.pendingMu.Lock()
	pr, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()
	if !ok {
		return false
	}
	pr.done <- &pendingResult{value: value, err: err}
	return true
}

func (e *Engine) resolvePending(env *mcp.Envelope) {
	key := env.ID.String()
	if env.Error != nil {
		e.removePendingResolve(key, nil, env.Error)
		return
	}
	e.removePendingResolve(key, env.Result, nil)
}

func (e *Engine) timeoutPending(id mcp.ID) {
	key := id.String()
	e.pendingMu.Lock()
	pr, ok := e.pending[key]
	e.pendingMu.Unlock()
	if !ok {
		return
	}
	if pr.cfg.resetOnProgress {
		elapsed := time.Since(pr.start)
		if pr.cfg.maxTotal > 0 && elapsed < pr.cfg.maxTotal {
			// still within the overall budget: the last progress tick already
			// rescheduled this timer in Request's progress callback, so a fire here means no
			// progress arrived within the window — fall through to timeout.
		}
	}
	if e.removePendingResolve(key, nil, mcp.ErrRequestTimeout.With("timeout")) {
		params := mcp.Object().Set("requestId", idValue(id)).Set("reason", mcp.String("timeout"))
		_ = e.transport.Send(e.ctx, mcp.NewNotification(mcp.NotificationCancelled, params))
	}
}

func (e *Engine) failAllPending(err error) {
	e.pendingMu.Lock()
	all := e.pending
	e.pending = make(map[string]*pendingRequest)
	e.pendingMu.Unlock()
	for _, pr := range all {
		pr.done <- &pendingResult{err: err}
	}
}

// emptyListResult is the lenient-mode local reply for a list-style method
// whose feature capability is absent: the wire shape of an empty page, with
// no nextCursor.
func emptyListResult(member string) *mcp.Value {
	return mcp.Object().Set(member, mcp.Array())
}

// listResultMember names the result array member of a list-style method, or
// "" if method is not list-style.
func listResultMember(method string) string {
	switch method {
	case mcp.MethodToolsList:
		return "tools"
	case mcp.MethodResourcesList:
		return "resources"
	case mcp.MethodResourcesTemplatesList:
		return "resourceTemplates"
	case mcp.MethodPromptsList:
		return "prompts"
	}
	return ""
}

// checkCapabilityGate consults negotiated capabilities before a round-trip,
// per spec.md §4.1 "Capability gating": strict mode fails locally with
// method-not-found; lenient mode answers a list-style method with a locally
// built empty page and only fails non-list methods (tools/call,
// resources/read, prompts/get, and friends), since those have no empty-page
// fallback to return instead.
//
// Returns (true, result, err) when the call is answered locally without a
// round-trip: result is set for the lenient list-style case, err for every
// other gated case.
func (e *Engine) checkCapabilityGate(method string) (bool, *mcp.Value, error) {
	if !e.Initialized() {
		return false, nil, nil
	}
	if e.role != RoleClient {
		return false, nil, nil
	}
	caps := e.ServerCapabilities()

	var missing bool
	switch method {
	case mcp.MethodToolsList, mcp.MethodToolsCall:
		missing = !caps.HasTools()
	case mcp.MethodResourcesList, mcp.MethodResourcesRead, mcp.MethodResourcesSubscribe, mcp.MethodResourcesUnsubscribe, mcp.MethodResourcesTemplatesList:
		missing = caps == nil || caps.Resources == nil
	case mcp.MethodPromptsList, mcp.MethodPromptsGet:
		missing = !caps.HasPrompts()
	default:
		return false, nil, nil
	}
	if !missing {
		return false, nil, nil
	}

	if !e.strict {
		if member := listResultMember(method); member != "" {
			return true, emptyListResult(member), nil
		}
	}
	return true, nil, mcp.NewError(mcp.ErrMethodNotFound, "server does not advertise the capability required by "+method, nil)
}

func idValue(id mcp.ID) *mcp.Value {
	return mcp.String(id.String())
}

func withProgressToken(params *mcp.Value, id mcp.ID) *mcp.Value {
	meta := params.Get("_meta")
	if meta == nil {
		meta = mcp.Object()
	}
	meta.Set("progressToken", mcp.String(id.String()))
	if params.Kind() == mcp.KindObject {
		params.Set("_meta", meta)
		return params
	}
	return params
}
