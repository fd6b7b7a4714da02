package oauth_test

import (
	"context"
	"testing"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	oauth "github.com/mutablelogic/go-mcp/pkg/mcp/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oauth2 "golang.org/x/oauth2"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store, err := oauth.NewMemoryStore("correct-horse-battery-staple")
	require.NoError(t, err)

	ctx := context.Background()
	creds := oauth.Credentials{
		Token: &oauth2.Token{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			Expiry:       time.Now().Add(time.Hour),
		},
		ClientID: "demo-client",
		Endpoint: "https://mcp.example.com",
		TokenURL: "https://auth.example.com/token",
	}

	require.NoError(t, store.SetCredentials(ctx, creds.Endpoint, creds))

	got, err := store.GetCredentials(ctx, creds.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, creds.AccessToken, got.AccessToken)
	assert.Equal(t, creds.ClientID, got.ClientID)

	require.NoError(t, store.DeleteCredentials(ctx, creds.Endpoint))
	_, err = store.GetCredentials(ctx, creds.Endpoint)
	assert.ErrorIs(t, err, mcp.ErrResourceNotFound)
}

func TestMemoryStoreMissingCredentials(t *testing.T) {
	store, err := oauth.NewMemoryStore("correct-horse-battery-staple")
	require.NoError(t, err)

	_, err = store.GetCredentials(context.Background(), "https://mcp.example.com")
	assert.ErrorIs(t, err, mcp.ErrResourceNotFound)

	err = store.DeleteCredentials(context.Background(), "https://mcp.example.com")
	assert.ErrorIs(t, err, mcp.ErrResourceNotFound)
}

func TestNewMemoryStoreRejectsWeakPassphrase(t *testing.T) {
	_, err := oauth.NewMemoryStore("short")
	assert.Error(t, err)
}
