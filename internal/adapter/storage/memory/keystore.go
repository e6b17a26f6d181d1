// Package memory holds process-local implementations of the storage ports.
// They back the "memory" storage driver and the end-to-end tests; nothing
// here survives a restart.
package memory

import (
	"context"
	"sync"

	"offline-payment-engine/internal/core/domain"
)

// KeyStore implements ports.KeyStore in memory.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]domain.StoredKey
}

// NewKeyStore creates an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]domain.StoredKey)}
}

func (s *KeyStore) Get(ctx context.Context, identityID string) (*domain.StoredKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[identityID]
	if !ok {
		return nil, nil
	}
	return copyKey(k), nil
}

func (s *KeyStore) CreateIfAbsent(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keys[key.IdentityID]; ok {
		return copyKey(existing), nil
	}
	s.keys[key.IdentityID] = *copyKey(*key)
	return copyKey(*key), nil
}

func copyKey(k domain.StoredKey) *domain.StoredKey {
	k.PublicKey = append([]byte(nil), k.PublicKey...)
	return &k
}
