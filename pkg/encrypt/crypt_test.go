package encrypt_test

import (
	"bytes"
	"testing"

	encrypt "github.com/mutablelogic/go-mcp/pkg/encrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTripsBytes(t *testing.T) {
	plaintext := []byte("hello, world")
	blob, err := encrypt.Encrypt("correct-horse-battery", plaintext)
	require.NoError(t, err)
	require.NotNil(t, blob)

	got, err := encrypt.Decrypt[[]byte]("correct-horse-battery", blob)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plaintext, got))
}

func TestEncryptDecryptRoundTripsString(t *testing.T) {
	blob, err := encrypt.Encrypt("correct-horse-battery", "hello, world")
	require.NoError(t, err)
	require.NotNil(t, blob)

	got, err := encrypt.Decrypt[string]("correct-horse-battery", blob)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", got)
}

func TestDecryptFailsWithWrongPassphrase(t *testing.T) {
	blob, err := encrypt.Encrypt("correct-horse-battery", []byte("secret"))
	require.NoError(t, err)

	_, err = encrypt.Decrypt[[]byte]("wrong-horse-battery", blob)
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTripsEmptyPlaintext(t *testing.T) {
	blob, err := encrypt.Encrypt("correct-horse-battery", []byte(""))
	require.NoError(t, err)

	got, err := encrypt.Decrypt[[]byte]("correct-horse-battery", blob)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecryptFailsOnTruncatedBlob(t *testing.T) {
	_, err := encrypt.Decrypt[[]byte]("correct-horse-battery", []byte("short"))
	assert.Error(t, err)
}

func TestDecryptFailsOnUnsupportedVersion(t *testing.T) {
	blob, err := encrypt.Encrypt("correct-horse-battery", []byte("secret"))
	require.NoError(t, err)
	blob[0] = 0xff

	_, err = encrypt.Decrypt[[]byte]("correct-horse-battery", blob)
	assert.Error(t, err)
}

func TestEncryptProducesDistinctBlobsForEqualPlaintext(t *testing.T) {
	blob1, err := encrypt.Encrypt("correct-horse-battery", []byte("data"))
	require.NoError(t, err)
	blob2, err := encrypt.Encrypt("correct-horse-battery", []byte("data"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(blob1, blob2))
}

func TestDeriveKeyIsDeterministicForSameSalt(t *testing.T) {
	salt, err := encrypt.GenerateSalt()
	require.NoError(t, err)

	key1 := encrypt.DeriveKey("correct-horse-battery", salt)
	key2 := encrypt.DeriveKey("correct-horse-battery", salt)
	assert.Equal(t, key1, key2)
}

func TestDeriveKeyDiffersAcrossSalts(t *testing.T) {
	salt1, err := encrypt.GenerateSalt()
	require.NoError(t, err)
	salt2, err := encrypt.GenerateSalt()
	require.NoError(t, err)

	key1 := encrypt.DeriveKey("correct-horse-battery", salt1)
	key2 := encrypt.DeriveKey("correct-horse-battery", salt2)
	assert.NotEqual(t, key1, key2)
}
