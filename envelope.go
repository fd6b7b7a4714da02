package mcp

import (
	"encoding/json"
	"fmt"

	// Packages
	uuid "github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// RPCVersion is the only JSON-RPC version this SDK speaks.
const RPCVersion = "2.0"

// MetaRelatedTaskKey is the _meta key carrying a related task id, per
// spec.md §3.
const MetaRelatedTaskKey = "io.modelcontextprotocol/related-task"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ID is a JSON-RPC request/response identifier: either a string or an
// integer. Its Go type is preserved across the round trip so a response's id
// always matches the type the caller sent, not just its value.
type ID struct {
	s     string
	i     int64
	isStr bool
	isSet bool
}

func NewStringID(s string) ID { return ID{s: s, isStr: true, isSet: true} }
func NewIntID(i int64) ID     { return ID{i: i, isSet: true} }

// NewID generates an opaque string id via uuid, for callers that don't care
// about the wire representation.
func NewID() ID { return NewStringID(uuid.NewString()) }

func (id ID) IsZero() bool { return !id.isSet }
func (id ID) IsString() bool { return id.isSet && id.isStr }

func (id ID) String() string {
	if !id.isSet {
		return ""
	}
	if id.isStr {
		return id.s
	}
	return fmt.Sprintf("%d", id.i)
}

func (id ID) Equal(o ID) bool {
	return id.isSet == o.isSet && id.isStr == o.isStr && id.s == o.s && id.i == o.i
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.s)
	}
	return json.Marshal(id.i)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*id = ID{}
	case string:
		*id = NewStringID(t)
	case float64:
		*id = NewIntID(int64(t))
	default:
		return ErrInvalidRequest.Withf("id must be string or integer, got %T", raw)
	}
	return nil
}

// Meta is the optional `_meta` member on params/results/notifications.
type Meta struct {
	ProgressToken  *ID               `json:"progressToken,omitempty"`
	RelatedTaskID  string            `json:"-"`
	Extra          map[string]*Value `json:"-"`
}

func (m *Meta) MarshalJSON() ([]byte, error) {
	obj := make(map[string]*Value)
	if m.RelatedTaskID != "" {
		obj[MetaRelatedTaskKey] = String(m.RelatedTaskID)
	}
	for k, v := range m.Extra {
		obj[k] = v
	}
	type alias struct {
		ProgressToken *ID `json:"progressToken,omitempty"`
	}
	base, err := json.Marshal(alias{ProgressToken: m.ProgressToken})
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range obj {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = b
	}
	return json.Marshal(merged)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Extra = make(map[string]*Value)
	for k, v := range raw {
		switch k {
		case "progressToken":
			var id ID
			if err := json.Unmarshal(v, &id); err != nil {
				return err
			}
			m.ProgressToken = &id
		case MetaRelatedTaskKey:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			m.RelatedTaskID = s
		default:
			var val Value
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			m.Extra[k] = &val
		}
	}
	return nil
}

// Envelope is one JSON-RPC 2.0 message: a Request (has id and method), a
// Response (has id and result-or-error), or a Notification (has method, no
// id). Exactly one of the three shapes is populated per spec.md §3.
type Envelope struct {
	ID     ID     `json:"id,omitempty"`
	hasID  bool
	Method string `json:"method,omitempty"`
	Params *Value `json:"params,omitempty"`
	Result *Value `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// NewRequest builds a Request envelope.
func NewRequest(id ID, method string, params *Value) *Envelope {
	return &Envelope{ID: id, hasID: true, Method: method, Params: params}
}

// NewNotification builds a Notification envelope (no id).
func NewNotification(method string, params *Value) *Envelope {
	return &Envelope{Method: method, Params: params}
}

// NewResponse builds a successful Response envelope.
func NewResponse(id ID, result *Value) *Envelope {
	return &Envelope{ID: id, hasID: true, Result: result}
}

// NewErrorResponse builds a failed Response envelope.
func NewErrorResponse(id ID, err *Error) *Envelope {
	return &Envelope{ID: id, hasID: true, Error: err}
}

func (e *Envelope) IsRequest() bool      { return e.hasID && e.Method != "" }
func (e *Envelope) IsNotification() bool { return !e.hasID && e.Method != "" }
func (e *Envelope) IsResponse() bool     { return e.hasID && e.Method == "" }

// MarshalJSON emits the canonical wire shape, omitting id for notifications
// and method/params for responses.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	type wire struct {
		JSONRPC string `json:"jsonrpc"`
		ID      *ID    `json:"id,omitempty"`
		Method  string `json:"method,omitempty"`
		Params  *Value `json:"params,omitempty"`
		Result  *Value `json:"result,omitempty"`
		Error   *Error `json:"error,omitempty"`
	}
	w := wire{JSONRPC: RPCVersion, Method: e.Method, Params: e.Params, Result: e.Result, Error: e.Error}
	if e.hasID {
		id := e.ID
		w.ID = &id
	}
	if e.IsResponse() && e.Result == nil && e.Error == nil {
		// A response with a null result is still a response; emit result:null.
		w.Result = Null()
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w struct {
		JSONRPC string `json:"jsonrpc"`
		ID      *ID    `json:"id"`
		Method  string `json:"method"`
		Params  *Value `json:"params"`
		Result  *Value `json:"result"`
		Error   *Error `json:"error"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return ErrParse.Withf("decode envelope: %v", err)
	}
	if w.JSONRPC != RPCVersion {
		return ErrInvalidRequest.Withf("unsupported jsonrpc version %q", w.JSONRPC)
	}
	e.Method = w.Method
	e.Params = w.Params
	e.Result = w.Result
	e.Error = w.Error
	if w.ID != nil {
		e.ID = *w.ID
		e.hasID = true
	}
	if e.Method == "" && w.ID == nil {
		return ErrInvalidRequest.Withf("envelope has neither method nor id")
	}
	return nil
}

// Batch is a JSON array of envelopes, per spec.md §3.
type Batch []*Envelope

// DecodeMessage decodes a single POST body that is either one Envelope or a
// Batch, returning the batch form in both cases for uniform handling.
func DecodeMessage(data []byte) (Batch, error) {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, ErrParse.Withf("decode batch: %v", err)
		}
		return batch, nil
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrParse.Withf("decode message: %v", err)
	}
	return Batch{&env}, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
