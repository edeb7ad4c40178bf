package storage

import (
	"context"
	"sync"

	"github.com/TommyBez/v0-hub/internal/domain"
)

// TokenStore holds per-user chat API keys, encrypted at rest. Rows are
// partitioned by user identity; the transport layer only ever passes the
// authenticated user's own id.
type TokenStore interface {
	// Save creates or replaces the user's token.
	Save(ctx context.Context, userID, token string) error
	// Get returns the user's token decrypted on demand, or
	// domain.ErrNoTokenConfigured when none is stored.
	Get(ctx context.Context, userID string) (string, error)
	// Has reports whether the user has a token on file without decrypting it.
	Has(ctx context.Context, userID string) (bool, error)
	// Delete removes the user's token. Deleting an absent token is a no-op.
	Delete(ctx context.Context, userID string) error
}

type memoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore keeps tokens in-process. It backs tests and local runs
// without a database.
func NewMemoryStore() TokenStore {
	return &memoryStore{tokens: make(map[string]string)}
}

func (s *memoryStore) Save(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	s.tokens[userID] = token
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Get(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	token, ok := s.tokens[userID]
	s.mu.RUnlock()
	if !ok {
		return "", domain.ErrNoTokenConfigured
	}
	return token, nil
}

func (s *memoryStore) Has(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	_, ok := s.tokens[userID]
	s.mu.RUnlock()
	return ok, nil
}

func (s *memoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.tokens, userID)
	s.mu.Unlock()
	return nil
}
