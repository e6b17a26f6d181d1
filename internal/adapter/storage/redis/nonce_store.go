package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using Redis SET NX. Each nonce
// key expires together with the request that carried it, so retention is
// bounded by the longest accepted request TTL.
type NonceStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
		now:    time.Now,
	}
}

// CheckAndSet atomically checks if a nonce exists for issuer and records it
// until expiresAt. Returns true if the nonce is new (valid), false if
// already used.
func (s *NonceStore) CheckAndSet(ctx context.Context, issuer string, nonce string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired: nothing to remember, the caller rejects it anyway.
		return true, nil
	}

	key := s.prefix + issuer + ":" + nonce
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Key already exists, nonce was already used
			return false, nil
		}
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}
