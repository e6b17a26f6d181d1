package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdentityService_GetOrCreate_StableIdentity(t *testing.T) {
	svc, ks := newTestIdentities(t)
	ctx := context.Background()
	session := domain.NewSession("merchant")

	first, err := svc.GetOrCreate(ctx, session)
	require.NoError(t, err)
	assert.Len(t, first.PublicKey, ed25519.PublicKeySize)
	assert.True(t, strings.HasSuffix(first.Address, "@demo"))

	second, err := svc.GetOrCreate(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey, second.PublicKey)
	assert.Equal(t, first.Address, second.Address)

	stored, err := ks.Get(ctx, "merchant")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.SealedPrivateKey)
}

func TestIdentityService_GetOrCreate_ConcurrentFirstUse(t *testing.T) {
	svc, _ := newTestIdentities(t)
	ctx := context.Background()
	session := domain.NewSession("citizen")

	var wg sync.WaitGroup
	keys := make([]string, 16)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.GetOrCreate(ctx, session)
			if assert.NoError(t, err) {
				keys[i] = id.PublicKeyHex()
			}
		}(i)
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, keys[0], k, "one keypair per identity")
	}
}

func TestIdentityService_SeparateIdentities(t *testing.T) {
	svc, _ := newTestIdentities(t)
	ctx := context.Background()

	a, err := svc.GetOrCreate(ctx, domain.NewSession("merchant"))
	require.NoError(t, err)
	b, err := svc.GetOrCreate(ctx, domain.NewSession("citizen"))
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKeyHex(), b.PublicKeyHex())
}

func TestIdentityService_SignVerify(t *testing.T) {
	svc, _ := newTestIdentities(t)
	ctx := context.Background()
	session := domain.NewSession("merchant")

	id, err := svc.GetOrCreate(ctx, session)
	require.NoError(t, err)

	msg := []byte("pay 250")
	sig, err := svc.Sign(ctx, session, msg)
	require.NoError(t, err)

	assert.True(t, svc.Verify(id.PublicKey, msg, sig))
	assert.False(t, svc.Verify(id.PublicKey, []byte("pay 251"), sig))
	assert.False(t, svc.Verify(id.PublicKey[:10], msg, sig), "short key")
	assert.False(t, svc.Verify(id.PublicKey, msg, sig[:10]), "short signature")
}

func TestIdentityService_InvalidSession(t *testing.T) {
	svc, _ := newTestIdentities(t)

	_, err := svc.GetOrCreate(context.Background(), domain.NewSession(""))
	assertAppError(t, err, "PAY_002")
}

func TestIdentityService_KeystoreReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockKeyStore(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewIdentityService(store, enc, "", newTestLogger())

	store.EXPECT().Get(gomock.Any(), "merchant").Return(nil, errors.New("permission denied"))

	_, err := svc.GetOrCreate(context.Background(), domain.NewSession("merchant"))
	assertAppError(t, err, "KEY_001")
}

func TestIdentityService_UnsealFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockKeyStore(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewIdentityService(store, enc, "", newTestLogger())

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	store.EXPECT().Get(gomock.Any(), "merchant").Return(&domain.StoredKey{
		IdentityID:       "merchant",
		PublicKey:        pub,
		SealedPrivateKey: "deadbeef",
	}, nil)
	enc.EXPECT().Decrypt("deadbeef").Return(nil, errors.New("cipher: message authentication failed"))

	_, err = svc.Sign(context.Background(), domain.NewSession("merchant"), []byte("x"))
	assertAppError(t, err, "KEY_001")
}

func TestIdentityService_CorruptStoredKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockKeyStore(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewIdentityService(store, enc, "", newTestLogger())

	store.EXPECT().Get(gomock.Any(), "merchant").Return(&domain.StoredKey{
		IdentityID: "merchant",
		PublicKey:  []byte{1, 2, 3},
	}, nil)

	_, err := svc.GetOrCreate(context.Background(), domain.NewSession("merchant"))
	assertAppError(t, err, "KEY_001")
}

func TestIdentityService_KeypairMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockKeyStore(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewIdentityService(store, enc, "", newTestLogger())

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	store.EXPECT().Get(gomock.Any(), "merchant").Return(&domain.StoredKey{
		IdentityID:       "merchant",
		PublicKey:        pub,
		SealedPrivateKey: "sealed",
	}, nil)
	enc.EXPECT().Decrypt("sealed").Return(otherPriv.Seed(), nil)

	_, err = svc.Sign(context.Background(), domain.NewSession("merchant"), []byte("x"))
	assertAppError(t, err, "KEY_001")
}
