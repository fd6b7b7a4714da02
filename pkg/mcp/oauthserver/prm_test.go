package oauthserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	// Packages
	oauthserver "github.com/mutablelogic/go-mcp/pkg/mcp/oauthserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedResourceMetadataHandler(t *testing.T) {
	prm := oauthserver.NewProtectedResourceMetadata("https://mcp.example.com", "https://auth.example.com")

	req := httptest.NewRequest(http.MethodGet, oauthserver.WellKnownPRMPath, nil)
	rec := httptest.NewRecorder()
	prm.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got oauthserver.ProtectedResourceMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "https://mcp.example.com", got.Resource)
	assert.Equal(t, []string{"https://auth.example.com"}, got.AuthorizationServers)
	assert.Equal(t, []string{"header"}, got.BearerMethodsSupported)
}

func TestProtectedResourceMetadataRejectsNonGet(t *testing.T) {
	prm := oauthserver.NewProtectedResourceMetadata("https://mcp.example.com", "https://auth.example.com")

	req := httptest.NewRequest(http.MethodPost, oauthserver.WellKnownPRMPath, nil)
	rec := httptest.NewRecorder()
	prm.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
