package session

import (
	"context"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// activeHandlers tracks cancel funcs for in-flight inbound request handlers,
// so a received notifications/cancelled can cancel that handler's task, per
// spec.md §4.1 "Cancellation propagation".
type activeHandlers struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) registerActive(id string, cancel context.CancelFunc) {
	e.activeOnce.Do(func() { e.active.cancels = make(map[string]context.CancelFunc) })
	e.active.mu.Lock()
	defer e.active.mu.Unlock()
	e.active.cancels[id] = cancel
}

func (e *Engine) unregisterActive(id string) {
	if e.active.cancels == nil {
		return
	}
	e.active.mu.Lock()
	defer e.active.mu.Unlock()
	delete(e.active.cancels, id)
}

func (e *Engine) handleCancelledNotification(params *mcp.Value) {
	if params == nil || e.active.cancels == nil {
		return
	}
	idVal := params.Get("requestId")
	if idVal == nil {
		return
	}
	key, ok := idVal.String()
	if !ok {
		if i, isInt := idVal.Int(); isInt {
			key = mcp.NewIntID(i).String()
		}
	}
	e.active.mu.Lock()
	cancel, found := e.active.cancels[key]
	e.active.mu.Unlock()
	if found {
		cancel()
	}
}
