package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// blobVersion tags every blob Encrypt produces, so a future change to the
// KDF parameters or sealed layout can still decrypt a blob written under an
// earlier version.
const blobVersion byte = 1

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Encrypt generates a fresh salt, derives a key from the passphrase, and
// seals plaintext under AES-256-GCM. The returned blob is:
//
//	version (1 byte) || salt (SaltSize bytes) || nonce (12 bytes) || ciphertext+tag
//
// Example usage:
//
//	blob, err := encrypt.Encrypt("correct-horse-battery", []byte("secret"))
//	blob, err := encrypt.Encrypt("correct-horse-battery", "secret")
func Encrypt[T interface{ []byte | string }](passphrase string, plaintext T) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	sealed, err := DeriveKey(passphrase, salt).seal([]byte(plaintext))
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, 1+len(salt)+len(sealed))
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Decrypt reverses Encrypt: splits off the version tag and salt, re-derives
// the key, and opens the remaining ciphertext. The type parameter selects
// the returned plaintext's representation.
//
// Example usage:
//
//	plaintext, err := encrypt.Decrypt[[]byte]("correct-horse-battery", blob)
//	text, err := encrypt.Decrypt[string]("correct-horse-battery", blob)
func Decrypt[T interface{ []byte | string }](passphrase string, blob []byte) (T, error) {
	var zero T
	if len(blob) < 1+SaltSize {
		return zero, mcp.ErrInvalidParams.With("encrypted blob is shorter than its header")
	}
	if blob[0] != blobVersion {
		return zero, mcp.ErrInvalidParams.Withf("unsupported encrypted blob version %d", blob[0])
	}
	rest := blob[1:]
	salt, sealed := rest[:SaltSize], rest[SaltSize:]
	plaintext, err := DeriveKey(passphrase, salt).open(sealed)
	if err != nil {
		return zero, err
	}
	return T(plaintext), nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// seal encrypts plaintext under AES-256-GCM with a fresh random nonce,
// returning nonce || ciphertext+tag.
func (k Key) seal(plaintext []byte) ([]byte, error) {
	gcm, err := k.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, mcp.ErrInternal.Withf("generate nonce: %v", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts sealed (nonce || ciphertext+tag) under AES-256-GCM.
func (k Key) open(sealed []byte) ([]byte, error) {
	gcm, err := k.gcm()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, mcp.ErrInvalidParams.With("encrypted blob is shorter than its nonce")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, mcp.ErrInvalidParams.Withf("decrypt: %v", err)
	}
	return plaintext, nil
}

func (k Key) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, mcp.ErrInternal.Withf("aes cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, mcp.ErrInternal.Withf("gcm mode: %v", err)
	}
	return gcm, nil
}
