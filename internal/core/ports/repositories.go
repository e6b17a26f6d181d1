package ports

import (
	"context"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
)

// KeyStore persists sealed identity keys.
type KeyStore interface {
	// Get returns nil, nil when no key exists for the identity.
	Get(ctx context.Context, identityID string) (*domain.StoredKey, error)
	// CreateIfAbsent stores key unless one already exists, and returns the
	// key that is stored afterwards (the existing one on a lost race).
	CreateIfAbsent(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error)
}

// JournalRepository is the durable write-ahead journal.
type JournalRepository interface {
	// Append must be durable before it returns.
	Append(ctx context.Context, entry *domain.JournalEntry) error
	Get(ctx context.Context, journalID uuid.UUID) (*domain.JournalEntry, error)
	// CompareAndSetState moves an entry from one state to another. It returns
	// false without error when the entry is not in the expected state.
	CompareAndSetState(ctx context.Context, journalID uuid.UUID, from, to domain.JournalState) (bool, error)
	// ListIncomplete returns pending and applied entries, oldest first.
	ListIncomplete(ctx context.Context, identityID string) ([]domain.JournalEntry, error)
	// ListIncompleteIdentities returns every identity with a pending or applied entry.
	ListIncompleteIdentities(ctx context.Context) ([]string, error)
}

// LedgerRepository is the append-only transaction log.
type LedgerRepository interface {
	// Append is a no-op when an entry with the same ID already exists.
	Append(ctx context.Context, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	ListByJournalID(ctx context.Context, journalID uuid.UUID) ([]domain.LedgerEntry, error)
	// Remove deletes the entry only if it was appended by journalID, so a
	// rolled back transaction never removes another journal's record.
	Remove(ctx context.Context, id, journalID uuid.UUID) error
	// UpdateStatus only moves queued entries. Returns false if the entry was not queued.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LedgerStatus, settledAt *time.Time) (bool, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// Stats aggregates an identity's entries, optionally only those since a point in time.
	Stats(ctx context.Context, identityID string, since *time.Time) (*LedgerStats, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	IdentityID string
	Status     *domain.LedgerStatus
	Direction  *domain.Direction
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// LedgerStats holds aggregated ledger figures for one identity.
type LedgerStats struct {
	Total    int64 `json:"total"`
	Queued   int64 `json:"queued"`
	Settled  int64 `json:"settled"`
	Failed   int64 `json:"failed"`
	Debited  int64 `json:"debited"`  // sum of debit amounts
	Credited int64 `json:"credited"` // sum of credit amounts
}

// AccountRepository holds main and offline balances. Every balance change
// goes through it atomically.
type AccountRepository interface {
	Get(ctx context.Context, identityID string) (*domain.Account, error)
	// Ensure creates a zero-balance account if none exists.
	Ensure(ctx context.Context, identityID string) (*domain.Account, error)
	// ApplyMutation applies mutation and records it under journalID in one atomic
	// step. Applying the same journalID twice is a no-op.
	ApplyMutation(ctx context.Context, identityID string, journalID uuid.UUID, mutation domain.BalanceMutation) (*domain.Account, error)
	// RevertMutation undoes the mutation recorded under journalID, if any.
	RevertMutation(ctx context.Context, identityID string, journalID uuid.UUID) (*domain.Account, error)
	MutationApplied(ctx context.Context, journalID uuid.UUID) (bool, error)
	// Update runs fn on a locked copy of the account and persists the result
	// if fn returns nil.
	Update(ctx context.Context, identityID string, fn func(acc *domain.Account) error) (*domain.Account, error)
}

// SyncQueueRepository is the durable outbox.
type SyncQueueRepository interface {
	// Enqueue is a no-op if an item for the same journal already exists.
	Enqueue(ctx context.Context, item *domain.SyncQueueItem) error
	Get(ctx context.Context, journalID uuid.UUID) (*domain.SyncQueueItem, error)
	Delete(ctx context.Context, journalID uuid.UUID) error
	// ListPending returns unparked items, oldest first. An empty identityID
	// lists every identity.
	ListPending(ctx context.Context, identityID string, limit int) ([]domain.SyncQueueItem, error)
	RecordAttempt(ctx context.Context, journalID uuid.UUID, at time.Time, lastErr string) error
	Park(ctx context.Context, journalID uuid.UUID, at time.Time, reason string) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
