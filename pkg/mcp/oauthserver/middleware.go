// Package oauthserver supplies the resource-server half of spec.md §7's
// OAuth subsystem that pkg/mcp/oauth does not cover: validating bearer
// tokens presented to an MCP server and advertising where to get one.
// Issuing tokens is out of scope (an explicit Non-goal); this package only
// ever challenges or accepts, never mints.
package oauthserver

import (
	"context"
	"net/http"
	"strings"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type contextKey int

const tokenContextKey contextKey = iota

// Verifier validates a bearer token extracted from an incoming request and
// reports the scopes it grants. A real deployment backs this with token
// introspection or local JWT verification against the authorization
// server's JWKS; neither is this package's concern.
type Verifier func(ctx context.Context, token string) (scopes []string, err error)

// Middleware enforces bearer authentication on an http.Handler, per
// spec.md §7's resource-server requirements: a missing or malformed
// Authorization header gets a 401 with a WWW-Authenticate challenge
// pointing at resourceMetadataURL (RFC 9728 §5.1); a token that verifies
// but lacks a required scope gets a 403 with insufficient_scope.
type Middleware struct {
	verify              Verifier
	resourceMetadataURL string
	requiredScopes      []string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewMiddleware constructs a Middleware. resourceMetadataURL is advertised
// in every challenge response so a client can discover how to obtain a
// token, per RFC 9728.
func NewMiddleware(verify Verifier, resourceMetadataURL string, requiredScopes ...string) *Middleware {
	return &Middleware{verify: verify, resourceMetadataURL: resourceMetadataURL, requiredScopes: requiredScopes}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Wrap returns next guarded by bearer authentication. Callers can recover
// the granted scopes from the request's context with ScopesFromContext.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.challenge(w, "invalid_request", "missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		scopes, err := m.verify(r.Context(), token)
		if err != nil {
			m.challenge(w, "invalid_token", err.Error(), http.StatusUnauthorized)
			return
		}

		for _, required := range m.requiredScopes {
			if !hasScope(scopes, required) {
				m.challenge(w, "insufficient_scope", "token lacks required scope: "+required, http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), tokenContextKey, scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ScopesFromContext returns the scopes a Middleware-verified bearer token
// carried, if any.
func ScopesFromContext(ctx context.Context) ([]string, bool) {
	scopes, ok := ctx.Value(tokenContextKey).([]string)
	return scopes, ok
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (m *Middleware) challenge(w http.ResponseWriter, errCode, desc string, status int) {
	challenge := `Bearer error="` + errCode + `", error_description="` + desc + `"`
	if m.resourceMetadataURL != "" {
		challenge += `, resource_metadata="` + m.resourceMetadataURL + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	_ = httpresponse.Error(w, httpresponse.Err(status).With(desc))
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func hasScope(granted []string, want string) bool {
	for _, s := range granted {
		if s == want {
			return true
		}
	}
	return false
}
