package domain

import (
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Valid(t *testing.T) {
	assert.True(t, NewSession("merchant").Valid())
	assert.False(t, NewSession("").Valid())
	assert.False(t, NewSession("   ").Valid())
}

func TestDeriveAddress_StableAndShort(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a1 := DeriveAddress(pub, "demo")
	a2 := DeriveAddress(pub, "demo")
	assert.Equal(t, a1, a2)
	assert.True(t, strings.HasSuffix(a1, "@demo"))
	assert.Len(t, strings.TrimSuffix(a1, "@demo"), 16)
	assert.Equal(t, strings.ToLower(a1), a1)

	assert.True(t, strings.HasSuffix(DeriveAddress(pub, ""), "@"+DefaultAddressDomain))
}

func TestJournalState_Transitions(t *testing.T) {
	tests := []struct {
		from, to JournalState
		want     bool
	}{
		{JournalStatePending, JournalStateApplied, true},
		{JournalStatePending, JournalStateRolledBack, true},
		{JournalStatePending, JournalStateCommitted, false},
		{JournalStateApplied, JournalStateCommitted, true},
		{JournalStateApplied, JournalStateRolledBack, true},
		{JournalStateApplied, JournalStatePending, false},
		{JournalStateCommitted, JournalStatePending, false},
		{JournalStateCommitted, JournalStateRolledBack, false},
		{JournalStateRolledBack, JournalStateApplied, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJournalState_IsTerminal(t *testing.T) {
	assert.False(t, JournalStatePending.IsTerminal())
	assert.False(t, JournalStateApplied.IsTerminal())
	assert.True(t, JournalStateCommitted.IsTerminal())
	assert.True(t, JournalStateRolledBack.IsTerminal())
}

func TestLedgerEntry_StatusTransitions(t *testing.T) {
	queued := &LedgerEntry{Status: LedgerStatusQueued}
	assert.True(t, queued.CanTransitionTo(LedgerStatusSettled))
	assert.True(t, queued.CanTransitionTo(LedgerStatusFailed))
	assert.False(t, queued.IsTerminal())

	settled := &LedgerEntry{Status: LedgerStatusSettled}
	assert.False(t, settled.CanTransitionTo(LedgerStatusFailed))
	assert.True(t, settled.IsTerminal())
}

func TestLedgerEntry_SignedAmount(t *testing.T) {
	assert.Equal(t, int64(-250), (&LedgerEntry{Amount: 250, Direction: DirectionDebit}).SignedAmount())
	assert.Equal(t, int64(250), (&LedgerEntry{Amount: 250, Direction: DirectionCredit}).SignedAmount())
}

func TestOfflineWalletState_DebitCredit(t *testing.T) {
	s := OfflineWalletState{}
	assert.False(t, s.CanSpend(1))
	assert.False(t, s.Debit(1), "unloaded pool cannot be debited")

	now := time.Now()
	require.True(t, s.Load(500, now))
	assert.True(t, s.CanSpend(500))
	assert.False(t, s.CanSpend(501))

	assert.True(t, s.Debit(200))
	assert.Equal(t, int64(300), s.Balance)

	assert.False(t, s.Debit(301))
	assert.Equal(t, int64(300), s.Balance, "rejected debit leaves state untouched")

	assert.False(t, s.Credit(201), "credit above initial load is rejected")
	assert.True(t, s.Credit(200))
	assert.Equal(t, int64(500), s.Balance)
	assert.True(t, s.Valid())
}

func TestOfflineWalletState_Reset(t *testing.T) {
	s := OfflineWalletState{}
	s.Load(400, time.Now())
	s.Debit(150)

	returned := s.Reset(time.Now())
	assert.Equal(t, int64(250), returned)
	assert.False(t, s.Loaded)
	assert.Zero(t, s.Balance)
	assert.Zero(t, s.InitialLoadAmount)
	assert.NotNil(t, s.LastReset)
}

func TestBalanceMutation_ApplyTo(t *testing.T) {
	acc := Account{IdentityID: "citizen", MainBalance: 1000}
	require.NoError(t, acc.LoadOffline(500, time.Now()))

	next, err := BalanceMutation{MainDelta: -250, OfflineDelta: -250}.ApplyTo(acc)
	require.NoError(t, err)
	assert.Equal(t, int64(750), next.MainBalance)
	assert.Equal(t, int64(250), next.Offline.Balance)
	assert.Equal(t, int64(1000), acc.MainBalance, "input is not modified")

	_, err = BalanceMutation{MainDelta: -1001}.ApplyTo(acc)
	assert.ErrorIs(t, err, ErrInsufficientMainBalance)

	_, err = BalanceMutation{MainDelta: -600}.ApplyTo(acc)
	assert.ErrorIs(t, err, ErrInsufficientMainBalance, "earmarked funds are not spendable online")

	_, err = BalanceMutation{MainDelta: -100, OfflineDelta: -600}.ApplyTo(acc)
	assert.ErrorIs(t, err, ErrOfflineAllowanceExceeded)

	back, err := BalanceMutation{MainDelta: -250, OfflineDelta: -250}.Inverse().ApplyTo(next)
	require.NoError(t, err)
	assert.Equal(t, acc.MainBalance, back.MainBalance)
	assert.Equal(t, acc.Offline.Balance, back.Offline.Balance)
}

func TestAccount_LoadUnloadRoundTrip(t *testing.T) {
	acc := Account{IdentityID: "citizen", MainBalance: 1000}

	assert.ErrorIs(t, acc.LoadOffline(1500, time.Now()), ErrInsufficientMainBalance)
	assert.ErrorIs(t, acc.LoadOffline(0, time.Now()), ErrOfflineAllowanceExceeded)

	require.NoError(t, acc.LoadOffline(400, time.Now()))
	assert.Equal(t, int64(600), acc.Available())
	assert.Equal(t, int64(1000), acc.MainBalance)

	released := acc.UnloadOffline(time.Now())
	assert.Equal(t, int64(400), released)
	assert.Equal(t, int64(1000), acc.Available())
	assert.False(t, acc.Offline.Loaded)
}

func TestPaymentRequest_UnsignedRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	req := PaymentRequest{
		Version:       ProtocolVersion,
		IssuerAddress: "shop@demo",
		Amount:        250,
		Nonce:         "n1-nonce-value",
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
		IssuerPubKey:  strings.Repeat("ab", 32),
		Signature:     strings.Repeat("cd", 64),
	}

	unsigned := ToUnsigned(req)
	assert.Equal(t, req, unsigned.WithSignature(req.Signature))
	assert.Empty(t, req.Unsigned().Signature)
	assert.False(t, req.IsExpired(now))
	assert.True(t, req.IsExpired(now.Add(time.Hour)))
}

func TestMessage_Constructors(t *testing.T) {
	assert.Equal(t, MessageKindUnknown, UnknownMessage().Kind)
	assert.Equal(t, MessageKindRequest, RequestMessage(&PaymentRequest{}).Kind)
	assert.Equal(t, MessageKindReceipt, ReceiptMessage(&PaymentReceipt{}).Kind)

	assert.True(t, Verified().Valid)
	r := Rejected(ReasonBadSignature)
	assert.False(t, r.Valid)
	assert.Equal(t, ReasonBadSignature, r.Reason)
}
