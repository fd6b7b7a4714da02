// Package oauth implements the OAuth 2.1 client subsystem of spec.md §7:
// Authorization Server Metadata discovery, dynamic client registration,
// PKCE-protected authorization code and client-credentials flows, and
// encrypted token storage. Grounded on the teacher's pkg/httpclient/oauth.go
// and pkg/mcp/client/oauth.go, generalized from go-llm's single hardcoded
// provider to any MCP server that advertises OAuth discovery metadata.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Metadata is OAuth 2.0 Authorization Server Metadata (RFC 8414).
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint,omitempty"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	JwksURI                           string   `json:"jwks_uri,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
}

// ClientRegistration is a dynamic client registration request (RFC 7591).
type ClientRegistration struct {
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientInfo is the response to a dynamic client registration request.
type ClientInfo struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   int64  `json:"client_secret_expires_at,omitempty"`
	ClientName              string `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// WellKnownOAuthPath is the RFC 8414 Authorization Server Metadata path.
	WellKnownOAuthPath = "/.well-known/oauth-authorization-server"

	// WellKnownOIDCPath is the OpenID Connect Discovery fallback path.
	WellKnownOIDCPath = "/.well-known/openid-configuration"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Endpoint returns an oauth2.Endpoint built from the discovered metadata.
func (m *Metadata) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:       m.AuthorizationEndpoint,
		DeviceAuthURL: m.DeviceAuthorizationEndpoint,
		TokenURL:      m.TokenEndpoint,
	}
}

// SupportsS256 reports whether the server accepts the S256 PKCE challenge
// method. This SDK only ever offers S256, per the Open Question decision in
// DESIGN.md, so a server lacking it cannot complete the authorization code
// flow through Provider.
func (m *Metadata) SupportsS256() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == "S256" {
			return true
		}
	}
	return false
}

// SupportsGrantType reports whether grantType is advertised. Per RFC 8414 the
// field is optional; its absence does not imply the grant is unsupported.
func (m *Metadata) SupportsGrantType(grantType string) bool {
	if len(m.GrantTypesSupported) == 0 {
		return true
	}
	for _, gt := range m.GrantTypesSupported {
		if gt == grantType {
			return true
		}
	}
	return false
}

func (m *Metadata) SupportsDeviceFlow() bool   { return m.DeviceAuthorizationEndpoint != "" }
func (m *Metadata) SupportsRegistration() bool { return m.RegistrationEndpoint != "" }

///////////////////////////////////////////////////////////////////////////////
// DISCOVERY

// DiscoverMetadata fetches OAuth 2.0 Authorization Server Metadata for an MCP
// server's resource URL. It tries the RFC 8414 and OIDC well-known paths at
// the server's origin, then walks up the resource path's parent segments
// (Keycloak-style realm discovery), returning the first successful response.
func DiscoverMetadata(ctx context.Context, hc *client.Client, resourceURL string) (*Metadata, error) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid resource url %q: %w", resourceURL, err)
	}

	base := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	suffixes := []string{WellKnownOAuthPath, WellKnownOIDCPath}
	var candidates []string
	for _, suffix := range suffixes {
		candidates = append(candidates, base+suffix)
	}
	basePath := path.Dir(strings.TrimRight(u.Path, "/"))
	for basePath != "" && basePath != "/" && basePath != "." {
		for _, suffix := range suffixes {
			candidates = append(candidates, base+basePath+suffix)
		}
		basePath = path.Dir(basePath)
	}

	for _, candidateURL := range candidates {
		var meta Metadata
		if err := hc.DoWithContext(ctx, nil, &meta, client.OptReqEndpoint(candidateURL)); err != nil {
			var httpErr httpresponse.Err
			if errors.As(err, &httpErr) {
				switch int(httpErr) {
				case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden, http.StatusMethodNotAllowed:
					continue
				}
			}
			return nil, fmt.Errorf("%s: oauth discovery failed: %w", resourceURL, err)
		}
		if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
			continue
		}
		return &meta, nil
	}
	return nil, fmt.Errorf("%s does not advertise oauth discovery metadata", resourceURL)
}

// Register performs dynamic client registration (RFC 7591) against the
// metadata's registration endpoint.
func Register(ctx context.Context, hc *client.Client, meta *Metadata, req ClientRegistration) (*ClientInfo, error) {
	if !meta.SupportsRegistration() {
		return nil, fmt.Errorf("%s does not support dynamic client registration", meta.Issuer)
	}
	payload, err := client.NewJSONRequest(req)
	if err != nil {
		return nil, err
	}
	var info ClientInfo
	if err := hc.DoWithContext(ctx, payload, &info, client.OptReqEndpoint(meta.RegistrationEndpoint)); err != nil {
		return nil, fmt.Errorf("dynamic client registration failed: %w", err)
	}
	if info.ClientID == "" {
		return nil, fmt.Errorf("dynamic client registration: missing client_id")
	}
	return &info, nil
}

