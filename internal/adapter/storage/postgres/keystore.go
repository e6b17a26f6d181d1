package postgres

import (
	"context"
	"errors"
	"fmt"

	"offline-payment-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// KeyStore implements ports.KeyStore on the identity_keys table. Only the
// sealed private key is stored.
type KeyStore struct {
	pool Pool
}

// NewKeyStore creates a new KeyStore.
func NewKeyStore(pool Pool) *KeyStore {
	return &KeyStore{pool: pool}
}

// Get returns nil, nil when no key exists for the identity.
func (s *KeyStore) Get(ctx context.Context, identityID string) (*domain.StoredKey, error) {
	k := &domain.StoredKey{}
	err := s.pool.QueryRow(ctx,
		`SELECT identity_id, public_key, sealed_private_key, created_at FROM identity_keys WHERE identity_id = $1`,
		identityID,
	).Scan(&k.IdentityID, &k.PublicKey, &k.SealedPrivateKey, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity key: %w", err)
	}
	return k, nil
}

// CreateIfAbsent inserts key unless the identity already has one, and
// returns whichever key is stored afterwards.
func (s *KeyStore) CreateIfAbsent(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identity_keys (identity_id, public_key, sealed_private_key, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_id) DO NOTHING`,
		key.IdentityID, key.PublicKey, key.SealedPrivateKey, key.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert identity key: %w", err)
	}

	stored, err := s.Get(ctx, key.IdentityID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("identity key %s missing after insert", key.IdentityID)
	}
	return stored, nil
}
