// Package eventstore implements the append/replay interface of spec.md
// §4.2 for Streamable HTTP SSE resumability, grounded on the teacher's
// pkg/store/memory_session.go RWMutex-protected map and cursor bookkeeping,
// repurposed from session metadata records to a per-stream event log.
package eventstore

import (
	"context"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// EventStore appends and replays per-stream events for SSE resumability.
// Implementations must provide atomic append-with-id-allocation since the
// store is shared across all concurrent GET handlers, per spec.md §5.
type EventStore interface {
	// Append assigns the next event id on streamID and stores payload.
	// A nil or empty payload marks a priming event: it establishes the
	// initial id without being replayed by ReplayAfter.
	Append(ctx context.Context, streamID string, payload []byte) (eventID string, err error)

	// LookupStream returns the stream an event id belongs to, or "" if the
	// id is unknown.
	LookupStream(ctx context.Context, eventID string) (streamID string, ok bool)

	// ReplayAfter calls emit(eventID, payload) for every non-priming event
	// strictly after the cursor, in id order, then returns the stream id
	// for continued live delivery.
	ReplayAfter(ctx context.Context, eventID string, emit func(eventID string, payload []byte) error) (streamID string, err error)
}

// ErrUnknownEvent is returned by ReplayAfter when eventID is not found in
// the store.
var ErrUnknownEvent = mcp.ErrResourceNotFound.Withf("event id not found")
