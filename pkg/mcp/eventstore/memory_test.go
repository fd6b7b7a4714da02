package eventstore_test

import (
	"context"
	"testing"

	// Packages
	eventstore "github.com/mutablelogic/go-mcp/pkg/mcp/eventstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAppendAndReplay(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemory()

	e1, err := store.Append(ctx, "s1", []byte("notif A"))
	require.NoError(t, err)
	e2, err := store.Append(ctx, "s1", []byte("notif B"))
	require.NoError(t, err)
	e3, err := store.Append(ctx, "s1", []byte("result of req 7"))
	require.NoError(t, err)

	var replayed []string
	streamID, err := store.ReplayAfter(ctx, e1, func(id string, payload []byte) error {
		replayed = append(replayed, string(payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", streamID)
	assert.Equal(t, []string{"notif B", "result of req 7"}, replayed)
	_ = e2
	_ = e3
}

func TestMemoryPrimingEventSkippedOnReplay(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemory()

	prime, err := store.Append(ctx, "s1", nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "s1", []byte("payload"))
	require.NoError(t, err)

	var replayed []string
	_, err = store.ReplayAfter(ctx, prime, func(id string, payload []byte) error {
		replayed = append(replayed, string(payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"payload"}, replayed)
}

func TestMemoryUnknownEvent(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemory()
	_, err := store.ReplayAfter(ctx, "nonexistent", func(string, []byte) error { return nil })
	assert.Error(t, err)
}

func TestMemoryLookupStream(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemory()
	id, err := store.Append(ctx, "s1", []byte("x"))
	require.NoError(t, err)
	streamID, ok := store.LookupStream(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "s1", streamID)
}
