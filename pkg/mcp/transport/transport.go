// Package transport defines the abstract bidirectional channel an MCP
// endpoint runs over, per spec.md §4 "Transport abstraction". Concrete
// implementations live in stdio and streamablehttp.
package transport

import (
	"context"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport is the narrow interface a session engine drives: send one
// envelope, receive a stream of inbound envelopes, and close. Session
// identity, SSE resumption, and reconnection are transport-specific
// concerns layered above this.
type Transport interface {
	// Send writes one outbound envelope (request, response, or notification).
	Send(ctx context.Context, env *mcp.Envelope) error

	// Receive returns a channel of inbound envelopes. The channel is closed
	// when the transport is closed or the peer disconnects. A transport
	// produces at most one Receive channel for its lifetime.
	Receive() <-chan *mcp.Envelope

	// Errors returns a channel of transport-level failures observed while
	// reading (parse errors, connection drops) that do not map to a single
	// inbound envelope.
	Errors() <-chan error

	// Close releases the transport's underlying resources (sockets, pipes,
	// subprocesses). Close is idempotent.
	Close() error
}
