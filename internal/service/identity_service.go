package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// IdentityServiceImpl implements ports.IdentityService on top of a KeyStore.
// Private keys are sealed with the EncryptionService before they are
// persisted and are only unsealed for the duration of a Sign call.
type IdentityServiceImpl struct {
	store         ports.KeyStore
	encSvc        ports.EncryptionService
	addressDomain string
	log           zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIdentityService creates a new IdentityServiceImpl.
func NewIdentityService(store ports.KeyStore, encSvc ports.EncryptionService, addressDomain string, log zerolog.Logger) *IdentityServiceImpl {
	if addressDomain == "" {
		addressDomain = domain.DefaultAddressDomain
	}
	return &IdentityServiceImpl{
		store:         store,
		encSvc:        encSvc,
		addressDomain: addressDomain,
		log:           log,
		locks:         make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the identity for the session, generating a keypair
// on first use.
func (s *IdentityServiceImpl) GetOrCreate(ctx context.Context, session domain.Session) (*domain.Identity, error) {
	stored, err := s.loadOrCreate(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.toIdentity(stored), nil
}

// Sign signs msg with the session's private key.
func (s *IdentityServiceImpl) Sign(ctx context.Context, session domain.Session, msg []byte) ([]byte, error) {
	stored, err := s.loadOrCreate(ctx, session)
	if err != nil {
		return nil, err
	}

	seed, err := s.encSvc.Decrypt(stored.SealedPrivateKey)
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", session.IdentityID).Msg("failed to unseal private key")
		return nil, apperror.ErrKeyUnavailable(fmt.Errorf("unseal private key: %w", err))
	}
	if len(seed) != ed25519.SeedSize {
		s.log.Error().Int("len", len(seed)).Str("identity_id", session.IdentityID).Msg("unsealed key has wrong size")
		return nil, apperror.ErrKeyUnavailable(fmt.Errorf("unsealed seed is %d bytes", len(seed)))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(stored.PublicKey)) {
		s.log.Error().Str("identity_id", session.IdentityID).Msg("stored public key does not match private key")
		return nil, apperror.ErrKeyUnavailable(fmt.Errorf("keypair mismatch"))
	}

	return ed25519.Sign(priv, msg), nil
}

// Verify is a pure Ed25519 check. Malformed keys or signatures verify false.
func (s *IdentityServiceImpl) Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

func (s *IdentityServiceImpl) loadOrCreate(ctx context.Context, session domain.Session) (*domain.StoredKey, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}

	lock := s.lockFor(session.IdentityID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.store.Get(ctx, session.IdentityID)
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", session.IdentityID).Msg("keystore read failed")
		return nil, apperror.ErrKeyUnavailable(err)
	}
	if stored != nil {
		if len(stored.PublicKey) != ed25519.PublicKeySize {
			s.log.Error().Str("identity_id", session.IdentityID).Msg("stored public key is corrupt")
			return nil, apperror.ErrKeyUnavailable(fmt.Errorf("public key is %d bytes", len(stored.PublicKey)))
		}
		return stored, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, apperror.ErrKeyUnavailable(fmt.Errorf("generate key: %w", err))
	}
	sealed, err := s.encSvc.Encrypt(priv.Seed())
	if err != nil {
		return nil, apperror.ErrKeyUnavailable(fmt.Errorf("seal private key: %w", err))
	}

	stored, err = s.store.CreateIfAbsent(ctx, &domain.StoredKey{
		IdentityID:       session.IdentityID,
		PublicKey:        pub,
		SealedPrivateKey: sealed,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", session.IdentityID).Msg("keystore write failed")
		return nil, apperror.ErrKeyUnavailable(err)
	}

	s.log.Info().
		Str("identity_id", session.IdentityID).
		Str("address", domain.DeriveAddress(stored.PublicKey, s.addressDomain)).
		Msg("identity created")

	return stored, nil
}

func (s *IdentityServiceImpl) lockFor(identityID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[identityID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identityID] = l
	}
	return l
}

func (s *IdentityServiceImpl) toIdentity(k *domain.StoredKey) *domain.Identity {
	pub := ed25519.PublicKey(k.PublicKey)
	return &domain.Identity{
		IdentityID: k.IdentityID,
		PublicKey:  pub,
		Address:    domain.DeriveAddress(pub, s.addressDomain),
		CreatedAt:  k.CreatedAt,
	}
}
