package streamablehttp

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	mcp "github.com/mutablelogic/go-mcp"
	eventstore "github.com/mutablelogic/go-mcp/pkg/mcp/eventstore"
	session "github.com/mutablelogic/go-mcp/pkg/mcp/session"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// NewServerFunc builds the session.Server (or session.Client, for a peer
// that plays the server role of the HTTP connection but the client role of
// MCP, which this SDK does not need) bound to t for one freshly accepted
// session. Handler calls it exactly once per session, at the first POST that
// carries an `initialize` request.
type NewServerFunc func(ctx context.Context, t transport.Transport) (*session.Server, error)

// Handler is an http.Handler implementing the Streamable HTTP server
// transport of spec.md §6.2: a single endpoint accepting POST (send a
// message, optionally stream the response over SSE), GET (open a standing
// SSE stream for server-initiated messages, resumable via Last-Event-ID),
// and DELETE (explicit session termination). It generalizes the teacher's
// pkg/mcp/server.go RunStdio, which owns one hardcoded stdin/stdout pair,
// to a multi-session map keyed by Mcp-Session-Id.
type Handler struct {
	baseCtx    context.Context
	newServer  NewServerFunc
	store      eventstore.EventStore
	policy     OriginPolicy
	policySet  bool
	bindAddr   string
	logger     *log.Logger
	sessionTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*serverSession
}

type serverSession struct {
	transport *ServerTransport
	server    *session.Server
	cancel    context.CancelFunc
	touched   time.Time
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// HandlerOpt configures a Handler.
type HandlerOpt = mcp.Opt[Handler]

func WithEventStore(store eventstore.EventStore) HandlerOpt {
	return func(h *Handler) error {
		h.store = store
		return nil
	}
}

func WithOriginPolicy(p OriginPolicy) HandlerOpt {
	return func(h *Handler) error {
		h.policy = p
		h.policySet = true
		return nil
	}
}

// WithBindAddr tells the Handler the address it will be served on (the
// value passed to http.ListenAndServe or equivalent), so that, absent an
// explicit WithOriginPolicy, NewHandler can compute spec.md §4.2's default:
// localhost-only protection when addr is a loopback address, none
// otherwise. Irrelevant once WithOriginPolicy is also given.
func WithBindAddr(addr string) HandlerOpt {
	return func(h *Handler) error {
		h.bindAddr = addr
		return nil
	}
}

func WithHandlerLogger(l *log.Logger) HandlerOpt {
	return func(h *Handler) error {
		h.logger = l
		return nil
	}
}

// WithSessionTTL bounds how long an idle session (no POST, no GET) survives
// before CloseIdleSessions reaps it. Zero means sessions never expire on
// their own; the caller must DELETE or close the Handler.
func WithSessionTTL(d time.Duration) HandlerOpt {
	return func(h *Handler) error {
		h.sessionTTL = d
		return nil
	}
}

// NewHandler constructs a Handler. newServer is invoked once per accepted
// session to build the session.Server the session engine dispatches through.
// ctx bounds every session's lifetime, not any single request's: a session
// started by one POST must keep running after that POST's own connection
// closes, so sessions are children of ctx, never of a request's context.
func NewHandler(ctx context.Context, newServer NewServerFunc, opts ...HandlerOpt) (*Handler, error) {
	h := &Handler{
		baseCtx:   ctx,
		newServer: newServer,
		store:     eventstore.NewMemory(),
		logger:    log.Default(),
		sessions:  make(map[string]*serverSession),
	}
	if err := mcp.Apply(h, opts...); err != nil {
		return nil, err
	}
	if !h.policySet {
		h.policy = defaultOriginPolicy(h.bindAddr)
	}
	return h, nil
}

// Close terminates every open session.
func (h *Handler) Close() error {
	h.mu.Lock()
	sessions := make([]*serverSession, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		_ = s.server.Close()
		s.cancel()
	}
	return nil
}

// CloseIdleSessions reaps sessions untouched for longer than WithSessionTTL.
// A caller runs this periodically; the Handler does not schedule it itself.
func (h *Handler) CloseIdleSessions() {
	if h.sessionTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-h.sessionTTL)
	h.mu.Lock()
	var stale []*serverSession
	for id, s := range h.sessions {
		if s.touched.Before(cutoff) {
			stale = append(stale, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()
	for _, s := range stale {
		_ = s.server.Close()
		s.cancel()
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.policy.Allow(r) {
		writeHTTPError(w, http.StatusMisdirectedRequest, "host or origin not allowed")
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeHTTPError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS — POST

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "read body")
		return
	}
	batch, err := mcp.DecodeMessage(body)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "invalid message")
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	sess, fresh, err := h.sessionFor(sessionID, batch)
	if err != nil {
		writeHTTPError(w, http.StatusNotFound, err.Error())
		return
	}
	if fresh {
		w.Header().Set("Mcp-Session-Id", sess.transport.id)
	}
	sess.touch()
	h.checkProtocolVersion(r, sess)

	var requestIDs []string
	waiters := make(map[string]chan *mcp.Envelope, len(batch))
	for _, env := range batch {
		if env.IsRequest() {
			id := env.ID.String()
			ch := sess.transport.registerWaiter(id)
			waiters[id] = ch
			requestIDs = append(requestIDs, id)
		}
	}

	for _, env := range batch {
		select {
		case sess.transport.recv <- env:
		case <-r.Context().Done():
			for _, id := range requestIDs {
				sess.transport.removeWaiter(id)
			}
			return
		}
	}

	if len(requestIDs) == 0 {
		// Pure notification batch: the spec requires only a 202 Accepted.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if len(requestIDs) == 1 && len(batch) == 1 {
		h.respondSingle(w, r, sess, requestIDs[0], waiters[requestIDs[0]])
		return
	}
	h.respondStream(w, r, sess, requestIDs, waiters)
}

func (h *Handler) respondSingle(w http.ResponseWriter, r *http.Request, sess *serverSession, id string, ch chan *mcp.Envelope) {
	select {
	case env := <-ch:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(env)
	case <-r.Context().Done():
		sess.transport.removeWaiter(id)
	}
}

func (h *Handler) respondStream(w http.ResponseWriter, r *http.Request, sess *serverSession, ids []string, waiters map[string]chan *mcp.Envelope) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeHTTPError(w, http.StatusNotImplemented, "streaming unsupported")
		for _, id := range ids {
			sess.transport.removeWaiter(id)
		}
		return
	}
	sw.start()

	// Each waiter channel carries exactly one response, ever, so a single
	// forwarder per channel into a shared fan-in is correct without
	// re-selecting per iteration.
	out := make(chan *mcp.Envelope, len(ids))
	for _, id := range ids {
		go func(ch chan *mcp.Envelope) {
			if env, ok := <-ch; ok {
				out <- env
			}
		}(waiters[id])
	}

	remaining := len(ids)
	for remaining > 0 {
		select {
		case <-r.Context().Done():
			for id := range waiters {
				sess.transport.removeWaiter(id)
			}
			return
		case env := <-out:
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			_ = sw.writeEvent("", data)
			remaining--
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS — GET / DELETE

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		writeHTTPError(w, http.StatusBadRequest, "Mcp-Session-Id required")
		return
	}
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		writeHTTPError(w, http.StatusNotFound, "unknown session")
		return
	}
	sess.touch()
	h.checkProtocolVersion(r, sess)

	sw, ok := newSSEWriter(w)
	if !ok {
		writeHTTPError(w, http.StatusNotImplemented, "streaming unsupported")
		return
	}
	sw.start()
	sess.transport.attachStanding(sw)
	defer sess.transport.detachStanding(sw)

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		_, _ = h.store.ReplayAfter(r.Context(), lastEventID, func(eventID string, payload []byte) error {
			return sw.writeEvent(eventID, payload)
		})
	}

	select {
	case <-r.Context().Done():
	case <-sess.transport.done:
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		writeHTTPError(w, http.StatusBadRequest, "Mcp-Session-Id required")
		return
	}
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		writeHTTPError(w, http.StatusNotFound, "unknown session")
		return
	}
	_ = sess.server.Close()
	sess.cancel()
	w.WriteHeader(http.StatusNoContent)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS — session lookup

func (h *Handler) sessionFor(sessionID string, batch mcp.Batch) (*serverSession, bool, error) {
	if sessionID != "" {
		h.mu.Lock()
		sess, ok := h.sessions[sessionID]
		h.mu.Unlock()
		if !ok {
			return nil, false, mcp.ErrResourceNotFound.Withf("session %q not found", sessionID)
		}
		return sess, false, nil
	}

	if !isInitializeBatch(batch) {
		return nil, false, mcp.ErrInvalidRequest.Withf("Mcp-Session-Id required outside initialize")
	}

	id := uuid.NewString()
	sessionCtx, cancel := context.WithCancel(h.baseCtx)
	t := newServerTransport(id, h.store)
	srv, err := h.newServer(sessionCtx, t)
	if err != nil {
		cancel()
		return nil, false, mcp.ErrInternal.Withf("create session: %v", err)
	}
	srv.SetSessionID(id)

	sess := &serverSession{transport: t, server: srv, cancel: cancel, touched: time.Now()}
	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()
	return sess, true, nil
}

// checkProtocolVersion implements spec.md §9 Open Question 1: a client that
// sends Mcp-Protocol-Version with a value other than the one this session
// negotiated at initialize is not rejected, only logged, for backward
// compatibility with clients predating the header.
func (h *Handler) checkProtocolVersion(r *http.Request, sess *serverSession) {
	got := r.Header.Get("Mcp-Protocol-Version")
	if got == "" {
		return
	}
	if want := sess.server.NegotiatedProtocolVersion(); want != "" && got != want {
		h.logger.Printf("session %s: Mcp-Protocol-Version %q does not match negotiated version %q, accepting anyway", sess.transport.id, got, want)
	}
}

func isInitializeBatch(batch mcp.Batch) bool {
	return len(batch) == 1 && batch[0].IsRequest() && batch[0].Method == mcp.MethodInitialize
}

func (s *serverSession) touch() { s.touched = time.Now() }

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
