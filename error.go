package mcp

import (
	"errors"
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind is a taxonomy of error conditions arising anywhere in the SDK: local
// validation, transport failures, and JSON-RPC error responses all reduce to
// one of these values so callers can branch on errors.Is(err, mcp.ErrXxx)
// regardless of which layer produced them.
type Kind int

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	ErrSuccess Kind = iota
	ErrParse
	ErrInvalidRequest
	ErrMethodNotFound
	ErrInvalidParams
	ErrInternal
	ErrResourceNotFound
	ErrURLElicitationRequired
	ErrConnectionClosed
	ErrRequestTimeout
	ErrTransport
	ErrRequestCancelled
	ErrSessionExpired
	ErrServer
)

// JSON-RPC 2.0 reserved codes plus the MCP-specific extension range used in
// spec.md's error table.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeResourceNotFound         = -32002
	CodeURLElicitationRequired   = -32042
	CodeConnectionClosed         = -32000
	CodeRequestTimeout           = -32001
	CodeTransportError           = -32003
	CodeRequestCancelled         = -32004
	CodeSessionExpired           = -32005
	CodeServerErrorRangeStart    = -32099
	CodeServerErrorRangeEnd      = -32000
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (k Kind) Error() string {
	switch k {
	case ErrSuccess:
		return "success"
	case ErrParse:
		return "parse error"
	case ErrInvalidRequest:
		return "invalid request"
	case ErrMethodNotFound:
		return "method not found"
	case ErrInvalidParams:
		return "invalid params"
	case ErrInternal:
		return "internal error"
	case ErrResourceNotFound:
		return "resource not found"
	case ErrURLElicitationRequired:
		return "url elicitation required"
	case ErrConnectionClosed:
		return "connection closed"
	case ErrRequestTimeout:
		return "request timeout"
	case ErrTransport:
		return "transport error"
	case ErrRequestCancelled:
		return "request cancelled"
	case ErrSessionExpired:
		return "session expired"
	case ErrServer:
		return "server error"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

func (k Kind) With(args ...interface{}) error {
	return fmt.Errorf("%w: %s", k, fmt.Sprint(args...))
}

func (k Kind) Withf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", k, fmt.Sprintf(format, args...))
}

// Code returns the JSON-RPC wire code for the kind. The MCP-specific kinds,
// retriable or not, all use codes in the JSON-RPC server-error range
// -32099..-32000, so the code alone does not tell whether a failure is
// retriable; callers needing retriability should use Retriable rather than
// switching on Code.
func (k Kind) Code() int {
	switch k {
	case ErrParse:
		return CodeParseError
	case ErrInvalidRequest:
		return CodeInvalidRequest
	case ErrMethodNotFound:
		return CodeMethodNotFound
	case ErrInvalidParams:
		return CodeInvalidParams
	case ErrResourceNotFound:
		return CodeResourceNotFound
	case ErrURLElicitationRequired:
		return CodeURLElicitationRequired
	case ErrConnectionClosed:
		return CodeConnectionClosed
	case ErrRequestTimeout:
		return CodeRequestTimeout
	case ErrTransport:
		return CodeTransportError
	case ErrRequestCancelled:
		return CodeRequestCancelled
	case ErrSessionExpired:
		return CodeSessionExpired
	case ErrServer:
		return CodeServerErrorRangeStart
	}
	return CodeInternalError
}

// Retriable reports whether a failure of this kind may succeed if retried,
// per the recovery-policy column of spec.md §7.
func (k Kind) Retriable() bool {
	switch k {
	case ErrConnectionClosed, ErrSessionExpired, ErrTransport, ErrURLElicitationRequired:
		return true
	}
	return false
}

// KindFromCode maps a JSON-RPC wire code back to a Kind, for decoding error
// responses received from a peer. Codes in the server-error range that don't
// match a known kind map to ErrServer.
func KindFromCode(code int) Kind {
	switch code {
	case CodeParseError:
		return ErrParse
	case CodeInvalidRequest:
		return ErrInvalidRequest
	case CodeMethodNotFound:
		return ErrMethodNotFound
	case CodeInvalidParams:
		return ErrInvalidParams
	case CodeInternalError:
		return ErrInternal
	case CodeResourceNotFound:
		return ErrResourceNotFound
	case CodeURLElicitationRequired:
		return ErrURLElicitationRequired
	case CodeConnectionClosed:
		return ErrConnectionClosed
	case CodeRequestTimeout:
		return ErrRequestTimeout
	case CodeTransportError:
		return ErrTransport
	case CodeRequestCancelled:
		return ErrRequestCancelled
	case CodeSessionExpired:
		return ErrSessionExpired
	}
	if code <= CodeServerErrorRangeEnd && code >= CodeServerErrorRangeStart {
		return ErrServer
	}
	return ErrInternal
}

// AsKind unwraps err looking for a Kind, recovering the classification from
// an error produced by Kind.With or Kind.Withf so callers that only hold a
// plain Go error (not a wire *Error) can still map it to a JSON-RPC code.
func AsKind(err error) (Kind, bool) {
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return ErrInternal, false
}

///////////////////////////////////////////////////////////////////////////////
// WIRE ERROR

// Error is the JSON-RPC error object carried in a Response. It implements
// the error interface so it can flow through normal Go error handling while
// still round-tripping the original code/message/data on the wire.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *Value `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Kind classifies the wire error back into a Kind for local branching.
func (e *Error) Kind() Kind {
	return KindFromCode(e.Code)
}

// NewError constructs a wire Error from a Kind, using the Kind's default
// message text unless msg overrides it, with optional structured data.
func NewError(kind Kind, msg string, data *Value) *Error {
	if msg == "" {
		msg = kind.Error()
	}
	return &Error{Code: kind.Code(), Message: msg, Data: data}
}
