package memory

import (
	"context"
	"sync"
	"time"
)

// NonceStore implements ports.NonceStore in memory. A nonce is retained
// only until the expiry of the request that carried it; expired nonces are
// pruned on write.
type NonceStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	now    func() time.Time
	writes int
}

// pruneEvery bounds how often a full expiry sweep runs.
const pruneEvery = 256

// NewNonceStore creates an empty NonceStore.
func NewNonceStore() *NonceStore {
	return &NonceStore{seen: make(map[string]time.Time), now: time.Now}
}

func (s *NonceStore) CheckAndSet(ctx context.Context, issuer string, nonce string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := issuer + ":" + nonce
	if exp, ok := s.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	if !now.Before(expiresAt) {
		// Already expired: nothing to remember, the caller rejects it anyway.
		return true, nil
	}
	s.seen[key] = expiresAt

	s.writes++
	if s.writes%pruneEvery == 0 {
		s.pruneLocked(now)
	}
	return true, nil
}

// Prune drops every nonce whose request has expired.
func (s *NonceStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// Len reports how many nonces are retained.
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *NonceStore) pruneLocked(now time.Time) int {
	n := 0
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
			n++
		}
	}
	return n
}
