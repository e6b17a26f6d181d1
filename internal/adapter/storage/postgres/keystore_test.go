package postgres

import (
	"context"
	"testing"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyCols() []string {
	return []string{"identity_id", "public_key", "sealed_private_key", "created_at"}
}

func TestKeyStore_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM identity_keys").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(keyCols()))

	got, err := NewKeyStore(mock).Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKeyStore_CreateIfAbsent_ReturnsStored(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &domain.StoredKey{IdentityID: "alice", PublicKey: []byte{1, 2, 3}, SealedPrivateKey: "sealed-new", CreatedAt: now}

	mock.ExpectExec("INSERT INTO identity_keys .+ ON CONFLICT \\(identity_id\\) DO NOTHING").
		WithArgs("alice", key.PublicKey, "sealed-new", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	// A concurrent writer won: the stored key is the existing one.
	mock.ExpectQuery("SELECT .+ FROM identity_keys").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(keyCols()).AddRow("alice", []byte{9, 9, 9}, "sealed-old", now))

	got, err := NewKeyStore(mock).CreateIfAbsent(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "sealed-old", got.SealedPrivateKey)
	assert.Equal(t, []byte{9, 9, 9}, got.PublicKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := &domain.AuditLog{
		IdentityID:   "alice",
		Action:       domain.AuditActionOfflineLoad,
		ResourceType: "account",
		ResourceID:   "alice",
		CreatedAt:    time.Now().UTC(),
	}
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(log.ID, "alice", "OFFLINE_LOAD", "account", "alice", "", "", log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewAuditRepo(mock).Create(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}
