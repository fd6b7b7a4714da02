package session

import (
	"context"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type progressRegistry struct {
	mu        sync.Mutex
	callbacks map[string]func(progress, total float64, message string)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) registerProgressCallback(id mcp.ID, fn func(progress, total float64, message string)) {
	e.progressOnce.Do(e.initProgress)
	e.progress.mu.Lock()
	defer e.progress.mu.Unlock()
	e.progress.callbacks[id.String()] = fn
}

func (e *Engine) unregisterProgressCallback(id mcp.ID) {
	if e.progress.callbacks == nil {
		return
	}
	e.progress.mu.Lock()
	defer e.progress.mu.Unlock()
	delete(e.progress.callbacks, id.String())
}

func (e *Engine) initProgress() {
	e.progress.callbacks = make(map[string]func(progress, total float64, message string))
}

// handleProgressNotification routes notifications/progress to its request's
// registered callback via the carried progressToken, per spec.md §4.1.
func (e *Engine) handleProgressNotification(_ context.Context, params *mcp.Value) {
	if params == nil || e.progress.callbacks == nil {
		return
	}
	token, ok := params.Get("progressToken").String()
	if !ok {
		return
	}
	e.progress.mu.Lock()
	fn := e.progress.callbacks[token]
	e.progress.mu.Unlock()
	if fn == nil {
		return
	}
	progress, _ := params.Get("progress").Float()
	total, _ := params.Get("total").Float()
	message, _ := params.Get("message").String()
	fn(progress, total, message)
}
