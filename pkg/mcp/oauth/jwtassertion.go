package oauth

import (
	"crypto"
	"fmt"
	"net/url"
	"time"

	// Packages
	jwt "github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	clientcredentials "golang.org/x/oauth2/clientcredentials"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// ClientAssertionType is the RFC 7523 client_assertion_type value for a
// JWT Bearer client assertion.
const ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// JWTAssertion signs short-lived client assertions (RFC 7523) for a
// confidential client authenticating with private_key_jwt instead of a
// shared client secret, per spec.md §7's client-credentials flow. This has
// no teacher counterpart (go-llm only ever authenticates with a client
// secret); it is new logic wiring golang-jwt/jwt, a dependency the pack
// declares but the teacher itself never imports.
type JWTAssertion struct {
	ClientID string
	Audience string // the token endpoint URL
	Method   jwt.SigningMethod
	Key      crypto.Signer
	KeyID    string
	TTL      time.Duration
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Sign produces a fresh, signed JWT bearer assertion. Each call mints a new
// jti and issued-at so assertions are not replayable across requests.
func (a *JWTAssertion) Sign() (string, error) {
	if a.Method == nil {
		return "", fmt.Errorf("jwt assertion: signing method required")
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.ClientID,
		Subject:   a.ClientID,
		Audience:  jwt.ClaimStrings{a.Audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(a.Method, claims)
	if a.KeyID != "" {
		token.Header["kid"] = a.KeyID
	}
	signed, err := token.SignedString(a.Key)
	if err != nil {
		return "", fmt.Errorf("jwt assertion: sign: %w", err)
	}
	return signed, nil
}

// Apply wires a freshly signed assertion into cfg's EndpointParams, so the
// client_credentials request clientcredentials.Config.Token sends carries
// client_assertion/client_assertion_type instead of a client secret.
func (a *JWTAssertion) Apply(cfg *clientcredentials.Config) error {
	assertion, err := a.Sign()
	if err != nil {
		return err
	}
	if cfg.EndpointParams == nil {
		cfg.EndpointParams = url.Values{}
	}
	cfg.EndpointParams.Set("client_assertion_type", ClientAssertionType)
	cfg.EndpointParams.Set("client_assertion", assertion)
	cfg.ClientID = a.ClientID
	cfg.ClientSecret = ""
	return nil
}
