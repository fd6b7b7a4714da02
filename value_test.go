package mcp

import (
	"encoding/json"
	"testing"

	// Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []*Value{
		Null(),
		Bool(true),
		Int(42),
		Float(3.5),
		String("hello"),
		Binary("image/png", []byte{0x89, 0x50, 0x4e, 0x47}),
		Array(Int(1), String("a"), Bool(false)),
		Object().Set("a", Int(1)).Set("b", String("x")),
	}
	for _, v := range cases {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var out Value
		require.NoError(t, json.Unmarshal(data, &out))
		assert.True(t, v.Equal(&out), "round trip mismatch for %s", v.Hash())
	}
}

func TestValueBinaryDataURL(t *testing.T) {
	v := Binary("application/octet-stream", []byte("hi"))
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var s string
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Contains(t, s, "data:application/octet-stream;base64,")
}

func TestValueEqualStructural(t *testing.T) {
	a := Object().Set("x", Int(1)).Set("y", Array(Int(1), Int(2)))
	b := Object().Set("y", Array(Int(1), Int(2))).Set("x", Int(1))
	assert.True(t, a.Equal(b))

	c := Object().Set("x", Int(2))
	assert.False(t, a.Equal(c))
}

func TestDecodeYAML(t *testing.T) {
	v, err := DecodeYAML([]byte("type: object\nproperties:\n  a:\n    type: integer\nrequired:\n  - a\n"))
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
	typ, ok := v.Get("type").String()
	assert.True(t, ok)
	assert.Equal(t, "object", typ)
}
