package service

import (
	"context"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncQueue is the service view of the outbox. Items leave it only when
// upstream confirms them; failures are recorded, never dropped.
type SyncQueue struct {
	repo   ports.SyncQueueRepository
	ledger ports.LedgerRepository
	log    zerolog.Logger
	now    func() time.Time
}

// NewSyncQueue creates a new SyncQueue.
func NewSyncQueue(repo ports.SyncQueueRepository, ledger ports.LedgerRepository, log zerolog.Logger) *SyncQueue {
	return &SyncQueue{
		repo:   repo,
		ledger: ledger,
		log:    log.With().Str("component", "sync_queue").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue adds item; a second enqueue for the same journal is a no-op.
func (q *SyncQueue) Enqueue(ctx context.Context, item *domain.SyncQueueItem) error {
	if item.JournalID == uuid.Nil {
		return apperror.Validation("sync item has no journal id")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = q.now()
	}
	if err := q.repo.Enqueue(ctx, item); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("enqueue sync item: %w", err))
	}
	return nil
}

// Pending lists unparked items for session, oldest first. An empty identity
// lists every identity.
func (q *SyncQueue) Pending(ctx context.Context, session domain.Session, limit int) ([]domain.SyncQueueItem, error) {
	items, err := q.repo.ListPending(ctx, session.IdentityID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list pending sync items: %w", err))
	}
	return items, nil
}

// DequeueConfirmed removes an upstream-acknowledged item and settles its
// ledger entry.
func (q *SyncQueue) DequeueConfirmed(ctx context.Context, journalID uuid.UUID) error {
	at := q.now()
	if err := q.settleLedger(ctx, journalID, domain.LedgerStatusSettled, &at); err != nil {
		return err
	}
	if err := q.repo.Delete(ctx, journalID); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("delete sync item: %w", err))
	}
	return nil
}

// RecordFailure counts a failed attempt and keeps the item for retry.
func (q *SyncQueue) RecordFailure(ctx context.Context, journalID uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := q.repo.RecordAttempt(ctx, journalID, q.now(), msg); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("record sync attempt: %w", err))
	}
	return nil
}

// Reject parks an item upstream refused and marks its ledger entry failed.
// Parked items stay in the outbox but are no longer retried.
func (q *SyncQueue) Reject(ctx context.Context, journalID uuid.UUID, cause error) error {
	at := q.now()
	if err := q.settleLedger(ctx, journalID, domain.LedgerStatusFailed, nil); err != nil {
		return err
	}
	reason := "rejected upstream"
	if cause != nil {
		reason = cause.Error()
	}
	return q.park(ctx, journalID, at, reason)
}

// Park takes an item out of rotation without touching its ledger entry.
func (q *SyncQueue) Park(ctx context.Context, journalID uuid.UUID, reason string) error {
	return q.park(ctx, journalID, q.now(), reason)
}

func (q *SyncQueue) park(ctx context.Context, journalID uuid.UUID, at time.Time, reason string) error {
	if err := q.repo.Park(ctx, journalID, at, reason); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("park sync item: %w", err))
	}
	q.log.Warn().Str("journal_id", journalID.String()).Str("reason", reason).Msg("sync item parked")
	return nil
}

func (q *SyncQueue) settleLedger(ctx context.Context, journalID uuid.UUID, status domain.LedgerStatus, at *time.Time) error {
	entries, err := q.ledger.ListByJournalID(ctx, journalID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("load ledger entries: %w", err))
	}
	for _, e := range entries {
		moved, err := q.ledger.UpdateStatus(ctx, e.ID, status, at)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update ledger status: %w", err))
		}
		if !moved {
			q.log.Debug().Str("entry_id", e.ID.String()).Str("status", string(e.Status)).Msg("ledger entry already terminal")
		}
	}
	return nil
}
