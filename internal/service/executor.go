package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Executor implements ports.TransactionExecutor. A payment is journaled
// before any balance moves; after that it either reaches committed or is
// compensated back to rolled_back, and the caller's cancellation no longer
// interrupts it.
type Executor struct {
	accounts    ports.AccountRepository
	ledger      ports.LedgerRepository
	outbox      ports.SyncQueueRepository
	journal     ports.JournalService
	identities  ports.IdentityService
	leases      ports.LeaseManager
	waitTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewExecutor creates a new Executor.
func NewExecutor(
	accounts ports.AccountRepository,
	ledger ports.LedgerRepository,
	outbox ports.SyncQueueRepository,
	journal ports.JournalService,
	identities ports.IdentityService,
	leases ports.LeaseManager,
	waitTimeout time.Duration,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		accounts:    accounts,
		ledger:      ledger,
		outbox:      outbox,
		journal:     journal,
		identities:  identities,
		leases:      leases,
		waitTimeout: waitTimeout,
		log:         log.With().Str("component", "executor").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Execute applies plan for session all-or-nothing and returns the ledger entry.
func (x *Executor) Execute(ctx context.Context, session domain.Session, plan ports.ExecutionPlan) (*domain.LedgerEntry, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}
	intent, err := x.buildIntent(session, plan)
	if err != nil {
		return nil, err
	}

	// Step 0: one executor per identity.
	release, err := acquireLease(ctx, x.leases, session.IdentityID, x.waitTimeout, x.log)
	if err != nil {
		return nil, err
	}
	defer release()

	// A caller-chosen entry id makes the whole transaction idempotent. Earlier
	// attempts still in the journal are settled first so the same entry can
	// never be journaled twice.
	if plan.Draft.ID != uuid.Nil {
		if err := x.settleEarlierAttempts(ctx, session, plan.Draft.ID); err != nil {
			return nil, err
		}
		existing, err := x.ledger.GetByID(ctx, plan.Draft.ID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("read ledger entry: %w", err))
		}
		if existing != nil {
			if err := runGuard(ctx, plan); err != nil {
				return nil, err
			}
			x.log.Info().Str("entry_id", existing.ID.String()).Msg("transaction already recorded")
			return existing, nil
		}
	}

	// Step 1: validate against a snapshot read under the lease. Nothing is
	// written if funds are short.
	snapshot := plan.Snapshot
	if snapshot == nil {
		snapshot, err = x.accounts.Ensure(ctx, session.IdentityID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("read account: %w", err))
		}
	}
	if err := checkFunds(*snapshot, intent); err != nil {
		return nil, err
	}
	if err := runGuard(ctx, plan); err != nil {
		return nil, err
	}

	// Steps 2-6 run to a terminal state regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	// Step 2
	journalID, err := x.journal.Append(ctx, session, intent)
	if err != nil {
		return nil, err
	}
	intent.Entry.JournalID = journalID
	jlog := x.log.With().Str("journal_id", journalID.String()).Str("identity_id", session.IdentityID).Logger()

	// Step 3
	if _, err := x.accounts.ApplyMutation(ctx, session.IdentityID, journalID, intent.Mutation); err != nil {
		jlog.Warn().Err(err).Msg("balance mutation rejected")
		if rbErr := x.journal.MarkRolledBack(ctx, journalID); rbErr != nil {
			jlog.Error().Err(rbErr).Msg("failed to roll back journal after rejected mutation")
		}
		return nil, mutationError(err)
	}
	if err := x.journal.MarkApplied(ctx, journalID); err != nil {
		return nil, x.abort(ctx, session, journalID, intent, fmt.Errorf("mark applied: %w", err))
	}

	// Steps 4-6
	if err := x.complete(ctx, session, journalID, intent); err != nil {
		return nil, x.abort(ctx, session, journalID, intent, err)
	}

	jlog.Info().
		Str("entry_id", intent.Entry.ID.String()).
		Str("direction", string(intent.Entry.Direction)).
		Str("mode", string(intent.Entry.Mode)).
		Int64("amount", intent.Entry.Amount).
		Msg("transaction committed")

	entry := intent.Entry
	return &entry, nil
}

// buildIntent fills in the ledger entry and derives the balance mutation.
func (x *Executor) buildIntent(session domain.Session, plan ports.ExecutionPlan) (domain.JournalIntent, error) {
	entry := plan.Draft
	entry.IdentityID = session.IdentityID

	var mutation domain.BalanceMutation
	switch entry.Direction {
	case domain.DirectionDebit:
		if plan.DeductAmount <= 0 {
			return domain.JournalIntent{}, apperror.ErrInvalidAmount()
		}
		entry.Amount = plan.DeductAmount
		mutation.MainDelta = -plan.DeductAmount
		if plan.ConsumesOfflineAllowance {
			mutation.OfflineDelta = -plan.DeductAmount
		}
	case domain.DirectionCredit:
		if entry.Amount <= 0 {
			return domain.JournalIntent{}, apperror.ErrInvalidAmount()
		}
		if plan.ConsumesOfflineAllowance {
			return domain.JournalIntent{}, apperror.Validation("a credit cannot consume offline allowance")
		}
		mutation.MainDelta = entry.Amount
	default:
		return domain.JournalIntent{}, apperror.Validation(fmt.Sprintf("unknown direction %q", entry.Direction))
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Mode == "" {
		entry.Mode = domain.LedgerModeOnline
		if plan.ConsumesOfflineAllowance {
			entry.Mode = domain.LedgerModeOffline
		}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = x.now()
	}
	// Only online entries may arrive already settled upstream; everything
	// else waits in the outbox.
	if entry.Mode == domain.LedgerModeOnline && entry.Status == domain.LedgerStatusSettled {
		settledAt := entry.Timestamp
		entry.SettledAt = &settledAt
	} else {
		entry.Status = domain.LedgerStatusQueued
		entry.SettledAt = nil
	}

	return domain.JournalIntent{
		Entry:                    entry,
		Mutation:                 mutation,
		ConsumesOfflineAllowance: plan.ConsumesOfflineAllowance,
		Proof:                    plan.Proof,
	}, nil
}

func runGuard(ctx context.Context, plan ports.ExecutionPlan) error {
	if plan.Guard == nil {
		return nil
	}
	return plan.Guard(ctx)
}

func checkFunds(acc domain.Account, intent domain.JournalIntent) error {
	if intent.Entry.Direction != domain.DirectionDebit {
		return nil
	}
	amount := intent.Entry.Amount
	if intent.ConsumesOfflineAllowance {
		if !acc.Offline.CanSpend(amount) || acc.MainBalance < amount {
			return apperror.ErrInsufficientOfflineAllowance()
		}
		return nil
	}
	if acc.Available() < amount {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

func mutationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrOfflineAllowanceExceeded):
		return apperror.ErrInsufficientOfflineAllowance()
	case errors.Is(err, domain.ErrInsufficientMainBalance):
		return apperror.ErrInsufficientFunds()
	default:
		return apperror.ErrDatabaseError(fmt.Errorf("apply mutation: %w", err))
	}
}

// complete runs steps 4-6. Every step is idempotent so recovery can re-drive
// a journal entry that stopped anywhere after its mutation.
func (x *Executor) complete(ctx context.Context, session domain.Session, journalID uuid.UUID, intent domain.JournalIntent) error {
	entry := intent.Entry
	entry.JournalID = journalID

	if err := x.ledger.Append(ctx, &entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	if entry.Status != domain.LedgerStatusSettled {
		item, err := x.syncItem(ctx, session, journalID, entry, intent.Proof)
		if err != nil {
			return err
		}
		if err := x.outbox.Enqueue(ctx, item); err != nil {
			return fmt.Errorf("enqueue sync item: %w", err)
		}
	}

	if err := x.journal.MarkCommitted(ctx, journalID); err != nil {
		return fmt.Errorf("mark committed: %w", err)
	}
	return nil
}

// syncItem signs the serialized intent with the identity key so upstream can
// attribute it to this device.
func (x *Executor) syncItem(ctx context.Context, session domain.Session, journalID uuid.UUID, entry domain.LedgerEntry, proof []byte) (*domain.SyncQueueItem, error) {
	payload, err := json.Marshal(domain.SyncPayload{Entry: entry, Proof: string(proof)})
	if err != nil {
		return nil, fmt.Errorf("marshal sync payload: %w", err)
	}
	identity, err := x.identities.GetOrCreate(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	sig, err := x.identities.Sign(ctx, session, payload)
	if err != nil {
		return nil, fmt.Errorf("sign sync payload: %w", err)
	}
	return &domain.SyncQueueItem{
		JournalID:  journalID,
		IdentityID: session.IdentityID,
		Payload:    payload,
		Signature:  hex.EncodeToString(sig),
		PublicKey:  identity.PublicKeyHex(),
		Nonce:      entry.Nonce,
		CreatedAt:  x.now(),
	}, nil
}

// abort compensates a failed transaction and reports cause to the caller.
// When compensation itself fails the entry stays applied for recovery.
func (x *Executor) abort(ctx context.Context, session domain.Session, journalID uuid.UUID, intent domain.JournalIntent, cause error) error {
	jlog := x.log.With().Str("journal_id", journalID.String()).Str("identity_id", session.IdentityID).Logger()
	jlog.Error().Err(cause).Msg("transaction failed after mutation, compensating")

	if err := x.compensate(ctx, session, journalID, intent.Entry.ID); err != nil {
		jlog.Error().Err(err).Msg("compensation failed, entry left for recovery")
		return apperror.ErrRecoveryUnresolved(errors.Join(cause, err))
	}

	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		return appErr
	}
	return apperror.InternalError(cause)
}

// compensate undoes every effect of journalID and marks it rolled back.
func (x *Executor) compensate(ctx context.Context, session domain.Session, journalID, entryID uuid.UUID) error {
	if err := x.outbox.Delete(ctx, journalID); err != nil {
		return fmt.Errorf("remove sync item: %w", err)
	}
	if err := x.ledger.Remove(ctx, entryID, journalID); err != nil {
		return fmt.Errorf("remove ledger entry: %w", err)
	}
	if _, err := x.accounts.RevertMutation(ctx, session.IdentityID, journalID); err != nil {
		return fmt.Errorf("revert mutation: %w", err)
	}
	if err := x.journal.MarkRolledBack(ctx, journalID); err != nil {
		return fmt.Errorf("mark rolled back: %w", err)
	}
	return nil
}

// settleEarlierAttempts resolves incomplete journal entries that target
// entryID, the way recovery would, before a retry of the same transaction.
func (x *Executor) settleEarlierAttempts(ctx context.Context, session domain.Session, entryID uuid.UUID) error {
	entries, err := x.journal.ScanIncomplete(ctx, session)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	for i := range entries {
		e := &entries[i]
		if e.Intent.Entry.ID != entryID {
			continue
		}
		outcome := x.resolve(ctx, session, e)
		x.log.Info().
			Str("journal_id", e.JournalID.String()).
			Str("entry_id", entryID.String()).
			Str("outcome", outcome.String()).
			Msg("earlier attempt settled before retry")
		if outcome == outcomeUnresolved {
			return apperror.ErrRecoveryUnresolved(fmt.Errorf("journal entry %s for ledger entry %s is unresolved", e.JournalID, entryID))
		}
	}
	return nil
}

// resolve drives one incomplete journal entry to a terminal state. The
// caller holds the identity lease.
func (x *Executor) resolve(ctx context.Context, session domain.Session, e *domain.JournalEntry) recoveryOutcome {
	elog := x.log.With().Str("journal_id", e.JournalID.String()).Logger()

	mutated, err := x.accounts.MutationApplied(ctx, e.JournalID)
	if err != nil {
		elog.Error().Err(err).Msg("cannot read mutation record")
		return outcomeUnresolved
	}

	if !mutated {
		// Either the crash hit before the mutation or an earlier compensation
		// already reverted it. Clear any partial effects and close the entry.
		if err := x.compensate(ctx, session, e.JournalID, e.Intent.Entry.ID); err != nil {
			elog.Error().Err(err).Msg("cannot discard entry")
			return outcomeUnresolved
		}
		return outcomeDiscarded
	}

	// Another journal already recorded this ledger entry; completing this one
	// would move the balance twice.
	recorded, err := x.ledger.GetByID(ctx, e.Intent.Entry.ID)
	if err != nil {
		elog.Error().Err(err).Msg("cannot read ledger entry")
		return outcomeUnresolved
	}
	if recorded != nil && recorded.JournalID != e.JournalID {
		elog.Warn().Str("recorded_by", recorded.JournalID.String()).Msg("ledger entry owned by another journal, reverting duplicate")
		if err := x.compensate(ctx, session, e.JournalID, e.Intent.Entry.ID); err != nil {
			elog.Error().Err(err).Msg("cannot revert duplicate entry")
			return outcomeUnresolved
		}
		return outcomeDiscarded
	}

	if e.State == domain.JournalStatePending {
		if err := x.journal.MarkApplied(ctx, e.JournalID); err != nil {
			elog.Error().Err(err).Msg("cannot promote pending entry with recorded mutation")
			return outcomeUnresolved
		}
	}

	err = x.complete(ctx, session, e.JournalID, e.Intent)
	if err == nil {
		return outcomeRecovered
	}
	elog.Warn().Err(err).Msg("re-drive failed, compensating")

	if err := x.compensate(ctx, session, e.JournalID, e.Intent.Entry.ID); err != nil {
		elog.Error().Err(err).Msg("compensation failed")
		return outcomeUnresolved
	}
	return outcomeFailed
}
