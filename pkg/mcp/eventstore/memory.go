package eventstore

import (
	"context"
	"sync"

	// Packages
	uuid "github.com/google/uuid"
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type record struct {
	streamID string
	payload  []byte // nil for a priming event
	seq      uint64
}

// Memory is an in-memory EventStore. Event ids are uuids; a monotonic
// sequence counter (not the id itself) orders events for replay, mirroring
// the teacher's memory_session.go approach of a separate ordering key
// rather than relying on id lexical order.
type Memory struct {
	mu      sync.RWMutex
	seq     uint64
	records map[string]*record   // eventID -> record
	streams map[string][]string  // streamID -> ordered eventIDs
}

var _ EventStore = (*Memory)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*record),
		streams: make(map[string][]string),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (m *Memory) Append(_ context.Context, streamID string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := uuid.NewString()
	var stored []byte
	if len(payload) > 0 {
		stored = append([]byte(nil), payload...)
	}
	m.records[id] = &record{streamID: streamID, payload: stored, seq: m.seq}
	m.streams[streamID] = append(m.streams[streamID], id)
	return id, nil
}

func (m *Memory) LookupStream(_ context.Context, eventID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[eventID]
	if !ok {
		return "", false
	}
	return r.streamID, true
}

func (m *Memory) ReplayAfter(_ context.Context, eventID string, emit func(string, []byte) error) (string, error) {
	m.mu.RLock()
	cursor, ok := m.records[eventID]
	if !ok {
		m.mu.RUnlock()
		return "", ErrUnknownEvent
	}
	ids := append([]string(nil), m.streams[cursor.streamID]...)
	recs := make([]*record, len(ids))
	for i, id := range ids {
		recs[i] = m.records[id]
	}
	m.mu.RUnlock()

	for i, id := range ids {
		r := recs[i]
		if r.seq <= cursor.seq {
			continue
		}
		if r.payload == nil {
			// priming event: skip, never replayed.
			continue
		}
		if err := emit(id, r.payload); err != nil {
			return cursor.streamID, mcp.ErrTransport.Withf("replay emit: %v", err)
		}
	}
	return cursor.streamID, nil
}
