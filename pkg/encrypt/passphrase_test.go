package encrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassphraseRejectsEmpty(t *testing.T) {
	assert.Error(t, ValidatePassphrase(""))
}

func TestValidatePassphraseRejectsWhitespaceOnly(t *testing.T) {
	assert.Error(t, ValidatePassphrase("   \t  "))
}

func TestValidatePassphraseRejectsTooShort(t *testing.T) {
	assert.Error(t, ValidatePassphrase(strings.Repeat("a", MinPassphraseLen-1)))
}

func TestValidatePassphraseAcceptsMinimumLength(t *testing.T) {
	assert.NoError(t, ValidatePassphrase(strings.Repeat("a", MinPassphraseLen)))
}

func TestGenerateSaltReturnsSaltSizeBytes(t *testing.T) {
	salt, err := GenerateSalt()
	assert.NoError(t, err)
	assert.Len(t, salt, SaltSize)
}

func TestGenerateSaltIsRandom(t *testing.T) {
	salt1, err := GenerateSalt()
	assert.NoError(t, err)
	salt2, err := GenerateSalt()
	assert.NoError(t, err)
	assert.NotEqual(t, salt1, salt2)
}

func BenchmarkDeriveKey(b *testing.B) {
	salt, _ := GenerateSalt()
	for i := 0; i < b.N; i++ {
		DeriveKey("correct-horse-battery", salt)
	}
}
