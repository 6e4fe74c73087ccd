package auth

import (
	"context"
	"sync"
	"time"

	"github.com/linkapp/backend/internal/models"
)

// NewInMemoryTokenStore returns a TokenStore backed by an in-memory map.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{records: make(map[string]models.TokenRecord)}
}

// InMemoryTokenStore implements TokenStore for tests and local development.
// Expired records are dropped lazily on lookup, mirroring the passive sweep
// the persistent store performs.
type InMemoryTokenStore struct {
	mu      sync.RWMutex
	records map[string]models.TokenRecord
}

// Save persists the provided token record.
func (s *InMemoryTokenStore) Save(_ context.Context, record models.TokenRecord) error {
	s.mu.Lock()
	s.records[record.Token] = record
	s.mu.Unlock()
	return nil
}

// Find retrieves a live record by token.
func (s *InMemoryTokenStore) Find(_ context.Context, token string) (models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[token]
	if !ok {
		return models.TokenRecord{}, ErrRecordNotFound
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		delete(s.records, token)
		return models.TokenRecord{}, ErrRecordNotFound
	}
	return record, nil
}

// Delete removes the record for the token.
func (s *InMemoryTokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[token]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records, token)
	return nil
}

// DeleteByUser removes every record owned by the user.
func (s *InMemoryTokenStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, record := range s.records {
		if record.UserID == userID {
			delete(s.records, token)
		}
	}
	return nil
}

// Has reports whether a token record exists. Useful for tests.
func (s *InMemoryTokenStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[token]
	return ok
}
