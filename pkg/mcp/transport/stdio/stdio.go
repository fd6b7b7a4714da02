// Package stdio implements the newline-delimited JSON transport of
// spec.md §6.3, grounded on the teacher's pkg/mcp/server.go RunStdio
// writer-channel pattern.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport reads one JSON-RPC envelope (or batch) per line from r and
// writes one per line to w. EOF on r is transport closure, per spec.md §6.3.
type Transport struct {
	logger *log.Logger

	recv chan *mcp.Envelope
	errs chan error

	writeMu sync.Mutex
	writer  *bufio.Writer

	closeOnce sync.Once
	done      chan struct{}
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Opt configures a Transport.
type Opt = mcp.Opt[Transport]

func WithLogger(l *log.Logger) Opt {
	return func(t *Transport) error {
		t.logger = l
		return nil
	}
}

// New starts reading r in the background and returns a Transport ready to
// Send to w. The background reader runs until ctx is cancelled or r hits EOF.
func New(ctx context.Context, r io.Reader, w io.Writer, opts ...Opt) (*Transport, error) {
	t := &Transport{
		logger: log.Default(),
		recv:   make(chan *mcp.Envelope, 16),
		errs:   make(chan error, 4),
		writer: bufio.NewWriter(w),
		done:   make(chan struct{}),
	}
	if err := mcp.Apply(t, opts...); err != nil {
		return nil, err
	}
	go t.readLoop(ctx, bufio.NewReader(r))
	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (t *Transport) Send(ctx context.Context, env *mcp.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return mcp.ErrInternal.Withf("encode envelope: %v", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return mcp.ErrConnectionClosed.Withf("write: %v", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return mcp.ErrConnectionClosed.Withf("write: %v", err)
	}
	return t.writer.Flush()
}

func (t *Transport) Receive() <-chan *mcp.Envelope { return t.recv }

func (t *Transport) Errors() <-chan error { return t.errs }

func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) readLoop(ctx context.Context, reader *bufio.Reader) {
	defer close(t.recv)

	var line strings.Builder
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		part, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err != io.EOF {
				t.logger.Printf("stdio: read error: %v", err)
			}
			return
		}
		line.Write(part)
		if isPrefix {
			continue
		}

		text := strings.TrimSpace(line.String())
		line.Reset()
		if text == "" {
			continue
		}

		batch, err := mcp.DecodeMessage([]byte(text))
		if err != nil {
			select {
			case t.errs <- err:
			default:
			}
			continue
		}
		for _, env := range batch {
			select {
			case t.recv <- env:
			case <-ctx.Done():
				return
			case <-t.done:
				return
			}
		}
	}
}
