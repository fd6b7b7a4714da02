package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	// Packages
	client "github.com/mutablelogic/go-client"
	oauth "github.com/mutablelogic/go-mcp/pkg/mcp/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverMetadataAtOrigin(t *testing.T) {
	meta := oauth.Metadata{
		Issuer:                        "https://auth.example.com",
		AuthorizationEndpoint:         "https://auth.example.com/authorize",
		TokenEndpoint:                 "https://auth.example.com/token",
		CodeChallengeMethodsSupported: []string{"S256"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != oauth.WellKnownOAuthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(meta))
	}))
	defer srv.Close()

	hc, err := client.New()
	require.NoError(t, err)

	got, err := oauth.DiscoverMetadata(context.Background(), hc, srv.URL+"/mcp")
	require.NoError(t, err)
	assert.Equal(t, meta.Issuer, got.Issuer)
	assert.True(t, got.SupportsS256())
}

func TestDiscoverMetadataWalksParentPath(t *testing.T) {
	meta := oauth.Metadata{
		Issuer:                "https://auth.example.com/realms/demo",
		AuthorizationEndpoint: "https://auth.example.com/realms/demo/authorize",
		TokenEndpoint:         "https://auth.example.com/realms/demo/token",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/demo"+oauth.WellKnownOAuthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(meta))
	}))
	defer srv.Close()

	hc, err := client.New()
	require.NoError(t, err)

	got, err := oauth.DiscoverMetadata(context.Background(), hc, srv.URL+"/realms/demo/mcp")
	require.NoError(t, err)
	assert.Equal(t, meta.TokenEndpoint, got.TokenEndpoint)
}

func TestDiscoverMetadataNoneFoundFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	hc, err := client.New()
	require.NoError(t, err)

	_, err = oauth.DiscoverMetadata(context.Background(), hc, srv.URL+"/mcp")
	assert.Error(t, err)
}

func TestMetadataSupportsGrantType(t *testing.T) {
	m := &oauth.Metadata{}
	assert.True(t, m.SupportsGrantType("client_credentials"), "absent field implies supported")

	m.GrantTypesSupported = []string{"authorization_code"}
	assert.True(t, m.SupportsGrantType("authorization_code"))
	assert.False(t, m.SupportsGrantType("client_credentials"))
}

func TestRegisterClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req oauth.ClientRegistration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "demo-client", req.ClientName)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(oauth.ClientInfo{ClientID: "abc123"}))
	}))
	defer srv.Close()

	hc, err := client.New()
	require.NoError(t, err)

	meta := &oauth.Metadata{Issuer: srv.URL, RegistrationEndpoint: srv.URL + "/register"}
	info, err := oauth.Register(context.Background(), hc, meta, oauth.ClientRegistration{ClientName: "demo-client"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ClientID)
}

func TestRegisterWithoutEndpointFails(t *testing.T) {
	hc, err := client.New()
	require.NoError(t, err)
	meta := &oauth.Metadata{Issuer: "https://auth.example.com"}
	_, err = oauth.Register(context.Background(), hc, meta, oauth.ClientRegistration{})
	assert.Error(t, err)
}
