package oauth_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	// Packages
	jwt "github.com/golang-jwt/jwt/v5"
	oauth "github.com/mutablelogic/go-mcp/pkg/mcp/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientcredentials "golang.org/x/oauth2/clientcredentials"
)

func TestJWTAssertionSignProducesValidToken(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	a := &oauth.JWTAssertion{
		ClientID: "demo-client",
		Audience: "https://auth.example.com/token",
		Method:   jwt.SigningMethodES256,
		Key:      key,
		KeyID:    "kid-1",
	}

	signed, err := a.Sign()
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (interface{}, error) {
		assert.Equal(t, "kid-1", tok.Header["kid"])
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	require.True(t, ok)
	assert.Equal(t, "demo-client", claims.Issuer)
	assert.Equal(t, "demo-client", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTAssertionApplySetsEndpointParams(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	a := &oauth.JWTAssertion{
		ClientID: "demo-client",
		Audience: "https://auth.example.com/token",
		Method:   jwt.SigningMethodES256,
		Key:      key,
	}

	cfg := &clientcredentials.Config{ClientID: "demo-client", ClientSecret: "should-be-cleared"}
	require.NoError(t, a.Apply(cfg))

	assert.Empty(t, cfg.ClientSecret)
	assert.Equal(t, oauth.ClientAssertionType, cfg.EndpointParams.Get("client_assertion_type"))
	assert.NotEmpty(t, cfg.EndpointParams.Get("client_assertion"))
}

func TestJWTAssertionRequiresSigningMethod(t *testing.T) {
	a := &oauth.JWTAssertion{ClientID: "demo-client", Audience: "aud"}
	_, err := a.Sign()
	assert.Error(t, err)
}
