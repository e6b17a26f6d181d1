package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"offline-payment-engine/internal/adapter/codec"
	"offline-payment-engine/internal/adapter/storage/memory"
	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testEngine wires every core service over in-memory adapters.
type testEngine struct {
	identities *IdentityServiceImpl
	signatures *Ed25519SignatureService
	codec      *codec.HandshakeCodec
	accounts   *memory.AccountRepo
	ledger     *memory.LedgerRepo
	outbox     *memory.SyncQueueRepo
	journalDB  *memory.JournalRepo
	journal    *JournalServiceImpl
	leases     *memory.LeaseManager
	nonces     *memory.NonceStore
	auditRepo  *memory.AuditRepo
	audit      *AuditServiceImpl
	wallet     *OfflineWalletServiceImpl
	executor   *Executor
	recovery   *RecoveryService
	queue      *SyncQueue
	handshake  *HandshakeServiceImpl
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	identities, _ := newTestIdentities(t)
	log := newTestLogger()

	e := &testEngine{
		identities: identities,
		signatures: NewEd25519SignatureService(identities),
		codec:      codec.New(),
		accounts:   memory.NewAccountRepo(),
		ledger:     memory.NewLedgerRepo(),
		outbox:     memory.NewSyncQueueRepo(),
		journalDB:  memory.NewJournalRepo(),
		leases:     memory.NewLeaseManager(),
		nonces:     memory.NewNonceStore(),
		auditRepo:  memory.NewAuditRepo(),
	}
	e.journal = NewJournalService(e.journalDB, log)
	e.audit = NewAuditService(e.auditRepo, log)
	e.wallet = NewOfflineWalletService(e.accounts, e.leases, e.audit, time.Second, log)
	e.executor = e.executorWith(e.accounts, e.ledger, e.outbox, e.journal)
	e.recovery = NewRecoveryService(e.journal, e.accounts, e.executor, e.audit, log)
	e.queue = NewSyncQueue(e.outbox, e.ledger, log)
	e.handshake = NewHandshakeService(
		e.identities, e.signatures, e.codec, e.nonces, e.executor, e.wallet, e.audit,
		HandshakeConfig{RequestTTL: 5 * time.Minute, MaxRequestTTL: time.Hour},
		log,
	)
	t.Cleanup(e.audit.Wait)
	return e
}

// executorWith builds an executor over substitute storage, for failure injection.
func (e *testEngine) executorWith(accounts ports.AccountRepository, ledger ports.LedgerRepository, outbox ports.SyncQueueRepository, journal ports.JournalService) *Executor {
	return NewExecutor(accounts, ledger, outbox, journal, e.identities, e.leases, time.Second, newTestLogger())
}

// handshakeWith builds a handshake service over a substitute executor.
func (e *testEngine) handshakeWith(x *Executor) *HandshakeServiceImpl {
	return NewHandshakeService(
		e.identities, e.signatures, e.codec, e.nonces, x, e.wallet, e.audit,
		HandshakeConfig{RequestTTL: 5 * time.Minute, MaxRequestTTL: time.Hour},
		newTestLogger(),
	)
}

// outboxFor lists the sync items still waiting for identityID.
func (e *testEngine) outboxFor(t *testing.T, identityID string) []domain.SyncQueueItem {
	t.Helper()
	items, err := e.outbox.ListPending(context.Background(), identityID, 100)
	require.NoError(t, err)
	return items
}

// fund sets the main balance and loads offline out of it.
func (e *testEngine) fund(t *testing.T, identityID string, main, offline int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.accounts.Ensure(ctx, identityID)
	require.NoError(t, err)
	_, err = e.accounts.Update(ctx, identityID, func(a *domain.Account) error {
		a.MainBalance = main
		if offline > 0 {
			return a.LoadOffline(offline, time.Now().UTC())
		}
		return nil
	})
	require.NoError(t, err)
}

func (e *testEngine) account(t *testing.T, identityID string) domain.Account {
	t.Helper()
	acc, err := e.accounts.Get(context.Background(), identityID)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return *acc
}

func (e *testEngine) entriesFor(t *testing.T, identityID string) []domain.LedgerEntry {
	t.Helper()
	entries, _, err := e.ledger.List(context.Background(), ports.LedgerListParams{IdentityID: identityID, Page: 1, PageSize: 100})
	require.NoError(t, err)
	return entries
}

func (e *testEngine) incomplete(t *testing.T, identityID string) []domain.JournalEntry {
	t.Helper()
	entries, err := e.journal.ScanIncomplete(context.Background(), domain.NewSession(identityID))
	require.NoError(t, err)
	return entries
}

func offlineDebit(amount int64) ports.ExecutionPlan {
	return ports.ExecutionPlan{
		Draft: domain.LedgerEntry{
			CounterpartyAddress: "shop@demo",
			Direction:           domain.DirectionDebit,
			Nonce:               uuid.NewString(),
		},
		DeductAmount:             amount,
		ConsumesOfflineAllowance: true,
	}
}

var errInjected = errors.New("injected failure")

// failingLedger fails selected ledger operations.
type failingLedger struct {
	ports.LedgerRepository
	appendErr error
	removeErr error
}

func (f *failingLedger) Append(ctx context.Context, e *domain.LedgerEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.LedgerRepository.Append(ctx, e)
}

func (f *failingLedger) Remove(ctx context.Context, id, journalID uuid.UUID) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.LedgerRepository.Remove(ctx, id, journalID)
}

// failingOutbox fails enqueues.
type failingOutbox struct {
	ports.SyncQueueRepository
	enqueueErr error
}

func (f *failingOutbox) Enqueue(ctx context.Context, item *domain.SyncQueueItem) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	return f.SyncQueueRepository.Enqueue(ctx, item)
}

// failingAccounts fails reverts.
type failingAccounts struct {
	ports.AccountRepository
	revertErr error
}

func (f *failingAccounts) RevertMutation(ctx context.Context, identityID string, journalID uuid.UUID) (*domain.Account, error) {
	if f.revertErr != nil {
		return nil, f.revertErr
	}
	return f.AccountRepository.RevertMutation(ctx, identityID, journalID)
}

// failingJournalRepo fails state writes into one target state, or appends.
type failingJournalRepo struct {
	ports.JournalRepository
	failTo    domain.JournalState
	appendErr error
}

func (f *failingJournalRepo) Append(ctx context.Context, e *domain.JournalEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.JournalRepository.Append(ctx, e)
}

func (f *failingJournalRepo) CompareAndSetState(ctx context.Context, id uuid.UUID, from, to domain.JournalState) (bool, error) {
	if to == f.failTo {
		return false, errInjected
	}
	return f.JournalRepository.CompareAndSetState(ctx, id, from, to)
}
