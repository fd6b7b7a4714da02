package oauthserver

import (
	"net/http"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// WellKnownPRMPath is the RFC 9728 Protected Resource Metadata path, served
// relative to the MCP server's own origin so a client that receives a 401
// can discover which authorization server to use without any prior
// configuration.
const WellKnownPRMPath = "/.well-known/oauth-protected-resource"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ProtectedResourceMetadata is the RFC 9728 document an MCP server exposes
// at WellKnownPRMPath, naming its resource identifier and the authorization
// server(s) that can issue tokens for it.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewProtectedResourceMetadata builds a metadata document for resourceURL,
// naming the given authorization server issuers.
func NewProtectedResourceMetadata(resourceURL string, authServers ...string) *ProtectedResourceMetadata {
	return &ProtectedResourceMetadata{
		Resource:               resourceURL,
		AuthorizationServers:   authServers,
		BearerMethodsSupported: []string{"header"},
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Handler serves this metadata document as the RFC 9728 well-known
// endpoint. Mount it at WellKnownPRMPath.
func (m *ProtectedResourceMetadata) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			return
		}
		_ = httpresponse.JSON(w, http.StatusOK, 0, m)
	})
}
