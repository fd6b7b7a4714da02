package session

import (
	"context"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Batch buffers outbound requests/notifications opened via Engine.Batch;
// Flush emits the buffered envelopes as a single JSON array, per spec.md
// §4.1 "Batching".
type Batch struct {
	e         *Engine
	envelopes []*mcp.Envelope
	deferreds []*Deferred
}

// Deferred is a pending result inside a batch scope, resolved once the
// batch's response array arrives and the engine's normal correlation table
// matches each member back by id.
type Deferred struct {
	pr *pendingRequest
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Batch opens a batch scope: requests issued via b.SendRequest are buffered
// rather than written immediately; on return from fn the buffered envelopes
// are emitted as a single array and each Deferred can be waited on.
func (e *Engine) Batch(fn func(b *Batch) error) ([]*Deferred, error) {
	b := &Batch{e: e}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := b.flush(); err != nil {
		return nil, err
	}
	return b.deferreds, nil
}

// SendRequest buffers a request envelope for the enclosing batch scope and
// returns a Deferred that resolves once the batch is flushed and the
// matching response arrives.
func (b *Batch) SendRequest(method string, params *mcp.Value) *Deferred {
	id := b.e.nextID()
	pr := &pendingRequest{id: id, done: make(chan *pendingResult, 1)}
	b.e.pendingMu.Lock()
	b.e.pending[id.String()] = pr
	b.e.pendingMu.Unlock()

	b.envelopes = append(b.envelopes, mcp.NewRequest(id, method, params))
	d := &Deferred{pr: pr}
	b.deferreds = append(b.deferreds, d)
	return d
}

// SendNotification buffers a notification envelope for the enclosing batch
// scope.
func (b *Batch) SendNotification(method string, params *mcp.Value) {
	b.envelopes = append(b.envelopes, mcp.NewNotification(method, params))
}

// Wait blocks for this member's response.
func (d *Deferred) Wait() (*mcp.Value, error) {
	res := <-d.pr.done
	return res.value, res.err
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *Batch) flush() error {
	if len(b.envelopes) == 0 {
		return nil
	}
	return b.e.sendBatch(b.envelopes)
}

// sendBatch marshals envelopes as a JSON array over the transport. The
// Transport interface sends one envelope at a time, so batch transports
// (Streamable HTTP in particular) implement batch framing themselves via a
// BatchSender extension; other transports fall back to sequential sends,
// which preserves FIFO per-session ordering (spec.md §5) at the cost of the
// single-array wire framing.
func (e *Engine) sendBatch(envelopes []*mcp.Envelope) error {
	if sender, ok := e.transport.(BatchSender); ok {
		return sender.SendBatch(e.ctx, envelopes)
	}
	for _, env := range envelopes {
		if err := e.transport.Send(e.ctx, env); err != nil {
			return mcp.ErrTransport.Withf("send batch member: %v", err)
		}
	}
	return nil
}

// BatchSender is an optional Transport extension for wire-level batch
// framing (a single JSON array body), per spec.md §3 "A JSON array of
// envelopes is a batch."
type BatchSender interface {
	SendBatch(ctx context.Context, envelopes []*mcp.Envelope) error
}
