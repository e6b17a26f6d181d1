package service

import (
	"encoding/hex"
	"io"
	"testing"

	"offline-payment-engine/internal/adapter/storage/memory"
	"offline-payment-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// newTestIdentities builds an identity service over an in-memory keystore.
func newTestIdentities(t *testing.T) (*IdentityServiceImpl, *memory.KeyStore) {
	t.Helper()
	key, err := hex.DecodeString(testAESKey)
	require.NoError(t, err)
	enc, err := NewAESEncryptionService(key)
	require.NoError(t, err)
	ks := memory.NewKeyStore()
	return NewIdentityService(ks, enc, "demo", newTestLogger()), ks
}
