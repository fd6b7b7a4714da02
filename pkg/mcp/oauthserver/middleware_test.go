package oauthserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	// Packages
	oauthserver "github.com/mutablelogic/go-mcp/pkg/mcp/oauthserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyToken(_ context.Context, token string) ([]string, error) {
	switch token {
	case "good-token":
		return []string{"mcp:read"}, nil
	case "scopeless-token":
		return nil, nil
	default:
		return nil, errors.New("unknown token")
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	mw := oauthserver.NewMiddleware(verifyToken, "https://mcp.example.com/.well-known/oauth-protected-resource")
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "resource_metadata=")
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	mw := oauthserver.NewMiddleware(verifyToken, "")
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsInsufficientScope(t *testing.T) {
	mw := oauthserver.NewMiddleware(verifyToken, "", "mcp:write")
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	mw := oauthserver.NewMiddleware(verifyToken, "", "mcp:read")
	var gotScopes []string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		gotScopes, ok = oauthserver.ScopesFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mcp:read"}, gotScopes)
}
