package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	// Packages
	yaml "gopkg.in/yaml.v3"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind of value stored in a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBinary
	KindArray
	KindObject
)

// Value is a recursive, self-describing JSON-ish value: the wire shape
// carried in JSON-RPC params, results, and _meta. It is always uniquely
// owned (no shared subtrees) and compares structurally.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	mime string  // set only for KindBinary
	data []byte  // set only for KindBinary
	arr  []*Value
	obj  map[string]*Value
	keys []string // insertion order for obj, as reported by Keys
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func Null() *Value                { return &Value{kind: KindNull} }
func Bool(v bool) *Value          { return &Value{kind: KindBool, b: v} }
func Int(v int64) *Value          { return &Value{kind: KindInt, i: v} }
func Float(v float64) *Value      { return &Value{kind: KindFloat, f: v} }
func String(v string) *Value      { return &Value{kind: KindString, s: v} }

// Binary wraps raw bytes with an optional MIME type. It serializes as a
// data-URL string and is recognized back into binary form on decode.
func Binary(mime string, data []byte) *Value {
	return &Value{kind: KindBinary, mime: mime, data: append([]byte(nil), data...)}
}

// Array wraps an ordered sequence of values.
func Array(vs ...*Value) *Value {
	return &Value{kind: KindArray, arr: vs}
}

// Object wraps a string-keyed mapping. Keys are unique; Keys reports them in
// insertion order, which carries no semantic weight: MarshalJSON writes
// members in sorted key order.
func Object() *Value {
	return &Value{kind: KindObject, obj: make(map[string]*Value)}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (v *Value) Kind() ValueKind { return v.kind }

func (v *Value) IsNull() bool { return v == nil || v.kind == KindNull }

func (v *Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v *Value) Int() (int64, bool)       { return v.i, v.kind == KindInt }
func (v *Value) Float() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v *Value) String() (string, bool)   { return v.s, v.kind == KindString }
func (v *Value) Binary() (string, []byte, bool) {
	return v.mime, v.data, v.kind == KindBinary
}
func (v *Value) Array() ([]*Value, bool) { return v.arr, v.kind == KindArray }

// Get returns the value for key in an object, or nil if absent or v is not
// an object.
func (v *Value) Get(key string) *Value {
	if v == nil || v.kind != KindObject {
		return nil
	}
	return v.obj[key]
}

// Set inserts or replaces key in an object in place, recording insertion
// order for new keys. Panics if v is not an object; callers construct
// objects with Object() before calling Set.
func (v *Value) Set(key string, val *Value) *Value {
	if v.kind != KindObject {
		panic("mcp: Set on non-object Value")
	}
	if _, exists := v.obj[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.obj[key] = val
	return v
}

// Keys returns the object's keys in insertion order.
func (v *Value) Keys() []string {
	if v == nil || v.kind != KindObject {
		return nil
	}
	return append([]string(nil), v.keys...)
}

///////////////////////////////////////////////////////////////////////////////
// EQUALITY / HASH

// Equal reports structural equality.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBinary:
		return v.mime == o.mime && string(v.data) == string(o.data)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Hash returns a stable structural hash, suitable as a map key surrogate
// (e.g. a schema cache keyed by resolved Value). It is not cryptographic.
func (v *Value) Hash() string {
	var b strings.Builder
	v.hashInto(&b)
	return b.String()
}

func (v *Value) hashInto(b *strings.Builder) {
	if v == nil {
		b.WriteString("n")
		return
	}
	switch v.kind {
	case KindNull:
		b.WriteString("n")
	case KindBool:
		fmt.Fprintf(b, "b%v", v.b)
	case KindInt:
		fmt.Fprintf(b, "i%d", v.i)
	case KindFloat:
		fmt.Fprintf(b, "f%v", v.f)
	case KindString:
		fmt.Fprintf(b, "s%d:%s", len(v.s), v.s)
	case KindBinary:
		fmt.Fprintf(b, "x%s:%d:%x", v.mime, len(v.data), v.data)
	case KindArray:
		b.WriteString("a[")
		for _, e := range v.arr {
			e.hashInto(b)
			b.WriteString(",")
		}
		b.WriteString("]")
	case KindObject:
		keys := append([]string(nil), v.keys...)
		sort.Strings(keys)
		b.WriteString("o{")
		for _, k := range keys {
			fmt.Fprintf(b, "%s:", k)
			v.obj[k].hashInto(b)
			b.WriteString(",")
		}
		b.WriteString("}")
	}
}

///////////////////////////////////////////////////////////////////////////////
// JSON CODEC

func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil || v.kind == KindNull {
		return []byte("null"), nil
	}
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBinary:
		return json.Marshal(dataURL(v.mime, v.data))
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		m := make(map[string]*Value, len(v.obj))
		for k, vv := range v.obj {
			m[k] = vv
		}
		return json.Marshal(m)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = *fromAny(raw)
	return nil
}

func fromAny(raw interface{}) *Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if t == float64(int64(t)) && !strings.ContainsAny(fmt.Sprintf("%v", t), "eE.") {
			return Int(int64(t))
		}
		return Float(t)
	case string:
		if mime, bin, ok := decodeDataURL(t); ok {
			return Binary(mime, bin)
		}
		return String(t)
	case []interface{}:
		vs := make([]*Value, len(t))
		for i, e := range t {
			vs[i] = fromAny(e)
		}
		return Array(vs...)
	case map[string]interface{}:
		obj := Object()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Set(k, fromAny(t[k]))
		}
		return obj
	}
	return Null()
}

// DecodeYAML parses YAML-origin data (tool/prompt definitions authored as
// YAML) into a Value, mirroring the teacher's JSONSchema.UnmarshalYAML
// convert-through-JSON approach.
func DecodeYAML(data []byte) (*Value, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ErrParse.Withf("decode yaml: %v", err)
	}
	js, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, ErrParse.Withf("decode yaml: %v", err)
	}
	v := new(Value)
	if err := v.UnmarshalJSON(js); err != nil {
		return nil, ErrParse.Withf("decode yaml: %v", err)
	}
	return v, nil
}

// normalizeYAML converts map[string]interface{} keyed maps that yaml.v3
// produces as map[string]interface{} (v3 does this natively, unlike v2's
// map[interface{}]interface{}) through unchanged, recursing into nested
// structures, before DecodeYAML re-encodes the tree as JSON.
func normalizeYAML(raw interface{}) interface{} {
	switch t := raw.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = normalizeYAML(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = normalizeYAML(v)
		}
		return out
	default:
		return t
	}
}

func dataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

func decodeDataURL(s string) (mime string, data []byte, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, false
	}
	rest := s[len("data:"):]
	semi := strings.IndexByte(rest, ';')
	comma := strings.IndexByte(rest, ',')
	if comma < 0 || semi < 0 || semi > comma || !strings.HasSuffix(rest[semi:comma], "base64") {
		return "", nil, false
	}
	mime = rest[:semi]
	decoded, err := base64.StdEncoding.DecodeString(rest[comma+1:])
	if err != nil {
		return "", nil, false
	}
	return mime, decoded, true
}
