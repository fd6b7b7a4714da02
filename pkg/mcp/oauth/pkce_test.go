package oauth_test

import (
	"testing"

	// Packages
	oauth "github.com/mutablelogic/go-mcp/pkg/mcp/oauth"
	"github.com/stretchr/testify/assert"
)

func TestPKCEGeneratesUniqueVerifiers(t *testing.T) {
	a := oauth.NewPKCE()
	b := oauth.NewPKCE()
	assert.NotEmpty(t, a.Verifier)
	assert.NotEqual(t, a.Verifier, b.Verifier)
}

func TestPKCEOptionsDiffer(t *testing.T) {
	p := oauth.NewPKCE()
	assert.NotNil(t, p.ChallengeOption())
	assert.NotNil(t, p.ExchangeOption())
}
