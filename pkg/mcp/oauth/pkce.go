package oauth

import (
	// Packages
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// PKCE holds a generated code verifier for the authorization code flow. This
// SDK always uses the S256 challenge method: RFC 7636's plain fallback is a
// downgrade attack surface OAuth 2.1 forbids, so unlike the teacher's
// interactiveFlow (which falls back to plain when a server's metadata omits
// S256 from code_challenge_methods_supported) a server that cannot do S256 is
// simply not usable with this client.
type PKCE struct {
	Verifier string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPKCE generates a fresh code verifier.
func NewPKCE() *PKCE {
	return &PKCE{Verifier: oauth2.GenerateVerifier()}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ChallengeOption returns the oauth2.AuthCodeOption pair that attaches this
// verifier's S256 challenge to an authorization request.
func (p *PKCE) ChallengeOption() oauth2.AuthCodeOption {
	return oauth2.S256ChallengeOption(p.Verifier)
}

// ExchangeOption returns the oauth2.AuthCodeOption that presents the
// verifier at the token endpoint during code exchange.
func (p *PKCE) ExchangeOption() oauth2.AuthCodeOption {
	return oauth2.VerifierOption(p.Verifier)
}
