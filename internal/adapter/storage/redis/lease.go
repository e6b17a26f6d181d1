package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLeaseLost is returned by Release when the lease expired and another
// holder took it over.
var ErrLeaseLost = errors.New("lease lost")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseManager implements ports.LeaseManager across processes with a
// SET NX PX key per identity.
type LeaseManager struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// NewLeaseManager creates a LeaseManager. ttl bounds how long a crashed
// holder can block the identity.
func NewLeaseManager(client *goredis.Client, ttl time.Duration) *LeaseManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaseManager{
		client: client,
		prefix: "lease:",
		ttl:    ttl,
		poll:   25 * time.Millisecond,
	}
}

// Acquire polls until the identity's lease key is free or ctx is done.
func (m *LeaseManager) Acquire(ctx context.Context, identityID string) (ports.Lease, error) {
	key := m.prefix + identityID
	token := uuid.NewString()

	for {
		result, err := m.client.SetArgs(ctx, key, token, goredis.SetArgs{
			Mode: "NX",
			TTL:  m.ttl,
		}).Result()
		switch {
		case err == nil && result == "OK":
			return &lease{client: m.client, key: key, token: token}, nil
		case err != nil && !errors.Is(err, goredis.Nil):
			return nil, fmt.Errorf("redis lease acquire: %w", err)
		}

		timer := time.NewTimer(m.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type lease struct {
	client *goredis.Client
	key    string
	token  string
}

// Release frees the lease if this holder still owns it.
func (l *lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("redis lease release: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
