// Package streamablehttp implements the Streamable HTTP transport of
// spec.md §6.4: a single endpoint accepting POST (send a message, get a
// response inline as JSON or as an SSE stream) and GET (open a long-lived
// SSE stream for server-initiated messages), correlated by an
// Mcp-Session-Id header. It is grounded on the teacher's
// pkg/mcp/client/{client.go,sse.go} — the POST/fallback/listener machinery —
// generalized from a synchronous request/response Client onto the
// transport.Transport abstraction, and on pkg/mcp/server.go for the server
// side.
package streamablehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	mcp "github.com/mutablelogic/go-mcp"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// mcpAccept is the Accept header Streamable HTTP requires on every POST, per
// spec.md §6.4.
const mcpAccept = "application/json, text/event-stream"

// ClientTransport is the client side of Streamable HTTP. Its first Send
// attempts the modern POST/SSE-response flow; a 404 or 405 received before
// the server has issued an Mcp-Session-Id falls back to the legacy HTTP+SSE
// transport of spec.md's supplemented "legacy fallback" feature, matching the
// teacher's init/initSSE split.
type ClientTransport struct {
	*client.Client

	url        string
	logger     *log.Logger
	authHeader func() string // returns "" if no token configured

	recv chan *mcp.Envelope
	errs chan error

	mu          sync.Mutex
	sessionID   string
	protocolVer string
	legacy      *legacySSE // non-nil once fallen back to legacy transport

	listenerCancel context.CancelFunc
	listenerWG     sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Transport = (*ClientTransport)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Opt configures a ClientTransport.
type Opt = mcp.Opt[ClientTransport]

func WithLogger(l *log.Logger) Opt {
	return func(t *ClientTransport) error {
		t.logger = l
		return nil
	}
}

// WithProtocolVersion sets the Mcp-Protocol-Version header sent on every
// request, the first included, per spec.md §6.4. Defaults to
// mcp.LatestProtocolVersion.
func WithProtocolVersion(v string) Opt {
	return func(t *ClientTransport) error {
		t.protocolVer = v
		return nil
	}
}

// WithBearerToken attaches a static bearer token to every request. OAuth
// token sources (pkg/mcp/oauth) supply a dynamic equivalent via
// WithAuthHeader.
func WithBearerToken(token string) Opt {
	return func(t *ClientTransport) error {
		t.authHeader = func() string { return "Bearer " + token }
		return nil
	}
}

// WithAuthHeader installs a dynamic Authorization header source, refreshed
// on every request — how pkg/mcp/oauth's token store attaches a live,
// possibly-refreshed access token.
func WithAuthHeader(fn func() string) Opt {
	return func(t *ClientTransport) error {
		t.authHeader = fn
		return nil
	}
}

// NewClient dials endpoint. The connection is lazy: no network I/O happens
// until the first Send, matching the teacher's init-on-first-use client.
func NewClient(endpoint string, opts ...Opt) (*ClientTransport, error) {
	t := &ClientTransport{
		url:         endpoint,
		logger:      log.Default(),
		protocolVer: mcp.LatestProtocolVersion,
		recv:        make(chan *mcp.Envelope, 32),
		errs:        make(chan error, 8),
		done:        make(chan struct{}),
	}
	httpClient, err := client.New(
		client.OptEndpoint(endpoint),
		client.OptUserAgent("go-mcp/0.1"),
	)
	if err != nil {
		return nil, mcp.ErrTransport.Withf("dial %s: %v", endpoint, err)
	}
	t.Client = httpClient
	if err := mcp.Apply(t, opts...); err != nil {
		return nil, err
	}
	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — transport.Transport

func (t *ClientTransport) Receive() <-chan *mcp.Envelope { return t.recv }

func (t *ClientTransport) Errors() <-chan error { return t.errs }

func (t *ClientTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		cancel := t.listenerCancel
		sessionID := t.sessionID
		legacy := t.legacy
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		t.listenerWG.Wait()
		if legacy != nil {
			legacy.close()
		} else if sessionID != "" {
			_ = t.DoWithContext(context.Background(), client.MethodDelete, nil,
				client.OptReqHeader("Mcp-Session-Id", sessionID))
		}
		close(t.recv)
	})
	return nil
}

// Send POSTs env (or, once the engine has batched, a Batch's worth of
// envelopes via SendBatch) and streams back whatever the server replies with
// onto Receive().
func (t *ClientTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	return t.sendBatch(ctx, mcp.Batch{env})
}

// SendBatch implements session.BatchSender: the whole batch is POSTed as one
// JSON array body, per spec.md §3.
func (t *ClientTransport) SendBatch(ctx context.Context, envelopes []*mcp.Envelope) error {
	return t.sendBatch(ctx, mcp.Batch(envelopes))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS — POST / fallback / listener

func (t *ClientTransport) sendBatch(ctx context.Context, batch mcp.Batch) error {
	t.mu.Lock()
	legacy := t.legacy
	t.mu.Unlock()
	if legacy != nil {
		return legacy.send(ctx, batch)
	}

	body, err := json.Marshal(batchWireValue(batch))
	if err != nil {
		return mcp.ErrInternal.Withf("encode batch: %v", err)
	}

	payload, err := client.NewJSONRequestEx(http.MethodPost, json.RawMessage(body), mcpAccept)
	if err != nil {
		return mcp.ErrTransport.Withf("build request: %v", err)
	}

	var resp clientResponse
	resp.onEnvelope = func(e *mcp.Envelope) { t.deliver(e) }
	opts := t.requestOpts(client.OptNoTimeout(), client.OptTextStreamCallback(resp.eventCallback()))

	if err := t.DoWithContext(ctx, payload, &resp, opts...); err != nil {
		t.mu.Lock()
		established := t.sessionID != ""
		t.mu.Unlock()
		if !established && (isHTTPStatus(err, http.StatusNotFound) || isHTTPStatus(err, http.StatusMethodNotAllowed)) {
			if err := t.fallbackToLegacy(ctx); err != nil {
				return err
			}
			return t.legacySend(ctx, batch)
		}
		return mcp.ErrTransport.Withf("post: %v", err)
	}

	t.mu.Lock()
	if resp.sessionID != "" {
		t.sessionID = resp.sessionID
		started := t.listenerCancel != nil
		if !started {
			t.startListenerLocked()
		}
	}
	t.mu.Unlock()

	for _, e := range resp.decoded {
		t.deliver(e)
	}
	return nil
}

func (t *ClientTransport) legacySend(ctx context.Context, batch mcp.Batch) error {
	t.mu.Lock()
	legacy := t.legacy
	t.mu.Unlock()
	return legacy.send(ctx, batch)
}

func (t *ClientTransport) requestOpts(extra ...client.RequestOpt) []client.RequestOpt {
	opts := make([]client.RequestOpt, 0, len(extra)+2)
	t.mu.Lock()
	if t.sessionID != "" {
		opts = append(opts, client.OptReqHeader("Mcp-Session-Id", t.sessionID))
	}
	opts = append(opts, client.OptReqHeader("Mcp-Protocol-Version", t.protocolVer))
	auth := t.authHeader
	t.mu.Unlock()
	if auth != nil {
		if h := auth(); h != "" {
			opts = append(opts, client.OptReqHeader("Authorization", h))
		}
	}
	return append(opts, extra...)
}

func (t *ClientTransport) deliver(e *mcp.Envelope) {
	select {
	case t.recv <- e:
	case <-t.done:
	}
}

func (t *ClientTransport) deliverErr(err error) {
	select {
	case t.errs <- err:
	default:
	}
}

// startListenerLocked opens the background GET SSE stream for
// server-initiated requests/notifications, per spec.md §6.4. Must be called
// with t.mu held.
func (t *ClientTransport) startListenerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	t.listenerCancel = cancel
	t.listenerWG.Add(1)
	go t.listen(ctx)
}

func (t *ClientTransport) listen(ctx context.Context) {
	defer t.listenerWG.Done()

	const (
		minBackoff = 1 * time.Second
		maxBackoff = 30 * time.Second
	)
	backoff := minBackoff
	var lastEventID string

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
		if err != nil {
			t.logger.Printf("streamablehttp: listener: %v", err)
			return
		}
		req.Header.Set("Accept", client.ContentTypeTextStream)
		t.mu.Lock()
		if t.sessionID != "" {
			req.Header.Set("Mcp-Session-Id", t.sessionID)
		}
		req.Header.Set("Mcp-Protocol-Version", t.protocolVer)
		auth := t.authHeader
		t.mu.Unlock()
		if auth != nil {
			if h := auth(); h != "" {
				req.Header.Set("Authorization", h)
			}
		}
		if lastEventID != "" {
			req.Header.Set("Last-Event-ID", lastEventID)
		}

		resp, err := t.Client.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.deliverErr(mcp.ErrTransport.Withf("listener: %v", err))
		} else {
			if resp.StatusCode == http.StatusMethodNotAllowed {
				resp.Body.Close()
				return
			}
			if resp.StatusCode == http.StatusOK {
				_ = client.NewTextStream().Decode(resp.Body, func(event client.TextStreamEvent) error {
					if ctx.Err() != nil {
						return io.EOF
					}
					if event.ID != "" {
						lastEventID = event.ID
					}
					if event.Event != "message" && event.Event != "" {
						return nil
					}
					var env mcp.Envelope
					if err := event.Json(&env); err != nil {
						return nil
					}
					t.deliver(&env)
					return nil
				})
				backoff = minBackoff
			}
			resp.Body.Close()
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// fallbackToLegacy switches this transport into the legacy HTTP+SSE mode of
// spec.md's supplemented feature, grounded on the teacher's connectSSE.
func (t *ClientTransport) fallbackToLegacy(ctx context.Context) error {
	t.mu.Lock()
	if t.legacy != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	legacy, err := newLegacySSE(ctx, t)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.legacy = legacy
	t.mu.Unlock()
	return nil
}

func isHTTPStatus(err error, code int) bool {
	var httpErr httpresponse.Err
	if errors.As(err, &httpErr) && int(httpErr) == code {
		return true
	}
	return false
}

///////////////////////////////////////////////////////////////////////////////
// RESPONSE UNMARSHALER

// clientResponse decodes a POST's body, which is either a bare JSON envelope
// (or array of envelopes), or an SSE stream of envelope events, and captures
// the Mcp-Session-Id response header, per spec.md §6.4.
type clientResponse struct {
	sessionID  string
	decoded    []*mcp.Envelope
	onEnvelope func(*mcp.Envelope)
}

var _ client.Unmarshaler = (*clientResponse)(nil)

func (r *clientResponse) Unmarshal(header http.Header, body io.Reader) error {
	if id := header.Get("Mcp-Session-Id"); id != "" {
		r.sessionID = id
	}
	if ct := header.Get("Content-Type"); ct != "" {
		if mimetype, _, err := mime.ParseMediaType(ct); err == nil && mimetype == client.ContentTypeTextStream {
			return httpresponse.ErrNotImplemented
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	batch, err := mcp.DecodeMessage(data)
	if err != nil {
		return err
	}
	r.decoded = batch
	return nil
}

func (r *clientResponse) eventCallback() client.TextStreamCallback {
	return func(event client.TextStreamEvent) error {
		if event.Event != "message" && event.Event != "" {
			return nil
		}
		var env mcp.Envelope
		if err := event.Json(&env); err != nil {
			return nil
		}
		if r.onEnvelope != nil {
			r.onEnvelope(&env)
		}
		return nil
	}
}

func batchWireValue(batch mcp.Batch) interface{} {
	if len(batch) == 1 {
		return batch[0]
	}
	return batch
}

///////////////////////////////////////////////////////////////////////////////
// LEGACY SSE FALLBACK

// legacySSE implements the pre-Streamable-HTTP transport: a long-lived GET
// SSE stream plus a separate message-POST endpoint discovered from the
// stream's "endpoint" event, grounded on the teacher's sseTransport/sse.go.
type legacySSE struct {
	messageURL string
	body       io.ReadCloser
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	t          *ClientTransport
}

func newLegacySSE(ctx context.Context, t *ClientTransport) (*legacySSE, error) {
	sseCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(sseCtx, http.MethodGet, t.url, nil)
	if err != nil {
		cancel()
		return nil, mcp.ErrTransport.Withf("legacy sse: %v", err)
	}
	req.Header.Set("Accept", client.ContentTypeTextStream)

	resp, err := t.Client.Client.Do(req)
	if err != nil {
		cancel()
		return nil, mcp.ErrTransport.Withf("legacy sse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, mcp.ErrTransport.Withf("legacy sse: %s", resp.Status)
	}

	l := &legacySSE{body: resp.Body, cancel: cancel, t: t}
	endpointCh := make(chan string, 1)
	l.wg.Add(1)
	go l.reader(sseCtx, resp.Body, endpointCh)

	select {
	case ep := <-endpointCh:
		base, err := url.Parse(t.url)
		if err != nil {
			cancel()
			return nil, mcp.ErrTransport.Withf("legacy sse: %v", err)
		}
		ref, err := url.Parse(ep)
		if err != nil {
			cancel()
			return nil, mcp.ErrTransport.Withf("legacy sse: invalid endpoint %q: %v", ep, err)
		}
		l.messageURL = base.ResolveReference(ref).String()
		return l, nil
	case <-time.After(30 * time.Second):
		cancel()
		return nil, mcp.ErrTransport.With("legacy sse: timeout waiting for endpoint event")
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (l *legacySSE) reader(ctx context.Context, body io.Reader, endpointCh chan<- string) {
	defer l.wg.Done()
	_ = client.NewTextStream().Decode(body, func(event client.TextStreamEvent) error {
		if ctx.Err() != nil {
			return io.EOF
		}
		switch event.Event {
		case "endpoint":
			select {
			case endpointCh <- event.Data:
			default:
			}
			return nil
		case "message", "":
			var env mcp.Envelope
			if err := event.Json(&env); err != nil {
				return nil
			}
			l.t.deliver(&env)
			return nil
		default:
			return nil
		}
	})
}

func (l *legacySSE) send(ctx context.Context, batch mcp.Batch) error {
	data, err := json.Marshal(batchWireValue(batch))
	if err != nil {
		return mcp.ErrInternal.Withf("encode batch: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.messageURL, bytes.NewReader(data))
	if err != nil {
		return mcp.ErrTransport.Withf("legacy sse post: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.t.Client.Client.Do(req)
	if err != nil {
		return mcp.ErrTransport.Withf("legacy sse post: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mcp.ErrTransport.Withf("legacy sse post: %s", resp.Status)
	}
	return nil
}

func (l *legacySSE) close() {
	l.cancel()
	l.wg.Wait()
	if l.body != nil {
		l.body.Close()
	}
}
