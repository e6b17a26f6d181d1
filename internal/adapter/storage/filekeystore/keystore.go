// Package filekeystore keeps sealed identity keys as one JSON file per
// identity in a private directory.
package filekeystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"offline-payment-engine/internal/core/domain"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// KeyStore implements ports.KeyStore on the local filesystem. Files are
// never overwritten: a key, once written, is the identity's key for good.
type KeyStore struct {
	dir string
}

// New creates the key directory if needed and returns a KeyStore over it.
func New(dir string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	return &KeyStore{dir: dir}, nil
}

func (s *KeyStore) path(identityID string) string {
	return filepath.Join(s.dir, url.PathEscape(identityID)+".json")
}

// Get returns nil, nil when no key file exists for the identity.
func (s *KeyStore) Get(ctx context.Context, identityID string) (*domain.StoredKey, error) {
	raw, err := os.ReadFile(s.path(identityID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var key domain.StoredKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("decode key file for %s: %w", identityID, err)
	}
	if key.IdentityID != identityID {
		return nil, fmt.Errorf("key file for %s names identity %q", identityID, key.IdentityID)
	}
	return &key, nil
}

// CreateIfAbsent writes key to a temp file and links it into place, so a
// reader never sees a partial file and a concurrent writer never replaces
// an existing key.
func (s *KeyStore) CreateIfAbsent(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".key-*")
	if err != nil {
		return nil, fmt.Errorf("create temp key file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("chmod temp key file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp key file: %w", err)
	}

	if err := os.Link(tmpName, s.path(key.IdentityID)); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("install key file: %w", err)
	}

	stored, err := s.Get(ctx, key.IdentityID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("key file for %s missing after write", key.IdentityID)
	}
	return stored, nil
}
