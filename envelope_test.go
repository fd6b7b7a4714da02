package mcp

import (
	"encoding/json"
	"testing"

	// Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRequestRoundTrip(t *testing.T) {
	req := NewRequest(NewIntID(1), MethodInitialize, Object().Set("protocolVersion", String(LatestProtocolVersion)))
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}`, string(data))

	var out Envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.IsRequest())
	assert.Equal(t, MethodInitialize, out.Method)
	assert.True(t, out.ID.Equal(NewIntID(1)))
}

func TestEnvelopeNotificationHasNoID(t *testing.T) {
	n := NewNotification(NotificationInitialized, nil)
	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`)

	var out Envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.IsNotification())
}

func TestEnvelopeIDTypePreserved(t *testing.T) {
	strReq := NewRequest(NewStringID("abc"), MethodPing, nil)
	data, err := json.Marshal(strReq)
	require.NoError(t, err)

	var out Envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.ID.IsString())
	assert.Equal(t, "abc", out.ID.String())
}

func TestDecodeMessageBatch(t *testing.T) {
	batch, err := DecodeMessage([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notifications/initialized"}]`))
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.True(t, batch[0].IsRequest())
	assert.True(t, batch[1].IsNotification())
}

func TestDecodeMessageSingle(t *testing.T) {
	batch, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestErrorResponseWireShape(t *testing.T) {
	resp := NewErrorResponse(NewIntID(1), NewError(ErrMethodNotFound, "", nil))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`, string(data))
}
