package streamablehttp

import (
	"context"
	"encoding/json"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	eventstore "github.com/mutablelogic/go-mcp/pkg/mcp/eventstore"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ServerTransport is the per-session transport.Transport a session.Engine
// drives on the server side of Streamable HTTP. It has no socket of its own:
// Handler feeds inbound envelopes into recv from whichever POST delivered
// them, and Send routes an outbound envelope back to the POST awaiting that
// response id, or to the standing GET stream (or the event store, for later
// replay) when it is a push rather than an answer. Grounded on the teacher's
// pkg/mcp/server.go RunStdio, which plays the same role for one hardcoded
// stdin/stdout pair instead of a pool of concurrent HTTP requests.
type ServerTransport struct {
	id    string
	store eventstore.EventStore

	recv chan *mcp.Envelope
	errs chan error

	mu       sync.Mutex
	waiters  map[string]chan *mcp.Envelope
	standing *sseWriter

	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Transport = (*ServerTransport)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newServerTransport(id string, store eventstore.EventStore) *ServerTransport {
	return &ServerTransport{
		id:      id,
		store:   store,
		recv:    make(chan *mcp.Envelope, 16),
		errs:    make(chan error, 4),
		waiters: make(map[string]chan *mcp.Envelope),
		done:    make(chan struct{}),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS (transport.Transport)

func (t *ServerTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	if env.IsResponse() {
		t.mu.Lock()
		ch, ok := t.waiters[env.ID.String()]
		if ok {
			delete(t.waiters, env.ID.String())
		}
		t.mu.Unlock()
		if ok {
			select {
			case ch <- env:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		// The POST that sent this request is gone (client retried or
		// dropped the connection); fall through and push it as if it were
		// server-initiated, so a subsequent GET can still pick it up.
	}
	return t.push(ctx, env)
}

func (t *ServerTransport) Receive() <-chan *mcp.Envelope { return t.recv }

func (t *ServerTransport) Errors() <-chan error { return t.errs }

func (t *ServerTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		close(t.recv)
	})
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *ServerTransport) push(ctx context.Context, env *mcp.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return mcp.ErrInternal.Withf("encode envelope: %v", err)
	}
	eventID, err := t.store.Append(ctx, t.id, data)
	if err != nil {
		return err
	}
	t.mu.Lock()
	standing := t.standing
	t.mu.Unlock()
	if standing != nil {
		return standing.writeEvent(eventID, data)
	}
	return nil
}

// registerWaiter returns the channel a response for requestID will be
// delivered on. Buffered by one so Send never blocks on a slow reader.
func (t *ServerTransport) registerWaiter(requestID string) chan *mcp.Envelope {
	ch := make(chan *mcp.Envelope, 1)
	t.mu.Lock()
	t.waiters[requestID] = ch
	t.mu.Unlock()
	return ch
}

func (t *ServerTransport) removeWaiter(requestID string) {
	t.mu.Lock()
	delete(t.waiters, requestID)
	t.mu.Unlock()
}

func (t *ServerTransport) attachStanding(w *sseWriter) {
	t.mu.Lock()
	t.standing = w
	t.mu.Unlock()
}

func (t *ServerTransport) detachStanding(w *sseWriter) {
	t.mu.Lock()
	if t.standing == w {
		t.standing = nil
	}
	t.mu.Unlock()
}
