package streamablehttp

import (
	"fmt"
	"net/http"
	"sync"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// sseWriter serializes concurrent writes of server-sent events onto one
// http.ResponseWriter, flushing after every event so the peer sees it
// immediately rather than buffered, mirroring the framing the teacher's
// client-side sse.go parses.
type sseWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// newSSEWriter prepares w for event-stream output. ok is false if w does not
// support flushing, in which case the caller must fall back to a
// non-streamed response.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, f: f}, true
}

// start writes the SSE response headers. Must be called before any
// writeEvent and before the caller reads request body further.
func (s *sseWriter) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.f.Flush()
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// writeEvent writes one SSE frame. An empty id omits the `id:` line, for
// events that are not independently resumable (a direct response to the
// POST that is about to complete anyway).
func (s *sseWriter) writeEvent(id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
