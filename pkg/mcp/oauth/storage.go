package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	encrypt "github.com/mutablelogic/go-mcp/pkg/encrypt"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Credentials bundles an OAuth token with what Provider needs to refresh or
// re-present it later without re-discovering or re-registering.
type Credentials struct {
	*oauth2.Token
	ClientID string `json:"client_id"`
	Endpoint string `json:"endpoint"` // the MCP resource URL, used as the store key
	TokenURL string `json:"token_url"`
}

// Store persists Credentials per MCP server resource URL, per spec.md §7.
type Store interface {
	GetCredentials(ctx context.Context, resourceURL string) (*Credentials, error)
	SetCredentials(ctx context.Context, resourceURL string, creds Credentials) error
	DeleteCredentials(ctx context.Context, resourceURL string) error
}

// MemoryStore is an in-memory Store, grounded on the teacher's
// pkg/store/memory_credential.go: credentials are encrypted at rest with
// AES-256-GCM ([[pkg/encrypt]]) rather than held as plaintext structs, so a
// heap dump or accidental log of the store's internals doesn't leak bearer
// tokens.
type MemoryStore struct {
	mu         sync.RWMutex
	passphrase string
	creds      map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewMemoryStore creates an empty Store. passphrase encrypts every entry;
// see encrypt.ValidatePassphrase for its minimum strength requirement.
func NewMemoryStore(passphrase string) (*MemoryStore, error) {
	if err := encrypt.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	return &MemoryStore{passphrase: passphrase, creds: make(map[string][]byte)}, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s *MemoryStore) GetCredentials(_ context.Context, resourceURL string) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.creds[resourceURL]
	if !ok {
		return nil, mcp.ErrResourceNotFound.Withf("no stored credentials for %q", resourceURL)
	}
	plaintext, err := encrypt.Decrypt[[]byte](s.passphrase, blob)
	if err != nil {
		return nil, fmt.Errorf("credential decrypt failed for %q: %w", resourceURL, err)
	}
	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("credential unmarshal failed for %q: %w", resourceURL, err)
	}
	return &creds, nil
}

func (s *MemoryStore) SetCredentials(_ context.Context, resourceURL string, creds Credentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("credential marshal failed: %w", err)
	}
	blob, err := encrypt.Encrypt(s.passphrase, plaintext)
	if err != nil {
		return fmt.Errorf("credential encrypt failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[resourceURL] = blob
	return nil
}

func (s *MemoryStore) DeleteCredentials(_ context.Context, resourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[resourceURL]; !ok {
		return mcp.ErrResourceNotFound.Withf("no stored credentials for %q", resourceURL)
	}
	delete(s.creds, resourceURL)
	return nil
}
