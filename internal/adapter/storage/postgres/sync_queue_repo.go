package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `journal_id, identity_id, payload, signature, public_key, nonce,
	attempts, last_attempt_at, last_error, parked_at, created_at`

// SyncQueueRepo implements ports.SyncQueueRepository on the sync_outbox table.
type SyncQueueRepo struct {
	pool Pool
}

// NewSyncQueueRepo creates a new SyncQueueRepo.
func NewSyncQueueRepo(pool Pool) *SyncQueueRepo {
	return &SyncQueueRepo{pool: pool}
}

// Enqueue inserts an item. A second item for the same journal is ignored.
func (r *SyncQueueRepo) Enqueue(ctx context.Context, it *domain.SyncQueueItem) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_outbox (`+outboxColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (journal_id) DO NOTHING`,
		it.JournalID, it.IdentityID, it.Payload, it.Signature, it.PublicKey, it.Nonce,
		it.Attempts, it.LastAttemptAt, it.LastError, it.ParkedAt, it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox item: %w", err)
	}
	return nil
}

// Get fetches an item. Returns nil, nil if absent.
func (r *SyncQueueRepo) Get(ctx context.Context, journalID uuid.UUID) (*domain.SyncQueueItem, error) {
	it, err := scanOutbox(r.pool.QueryRow(ctx,
		`SELECT `+outboxColumns+` FROM sync_outbox WHERE journal_id = $1`, journalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get outbox item: %w", err)
	}
	return it, nil
}

// Delete removes a confirmed item.
func (r *SyncQueueRepo) Delete(ctx context.Context, journalID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sync_outbox WHERE journal_id = $1`, journalID); err != nil {
		return fmt.Errorf("delete outbox item: %w", err)
	}
	return nil
}

// ListPending returns unparked items, oldest first. An empty identityID
// lists every identity.
func (r *SyncQueueRepo) ListPending(ctx context.Context, identityID string, limit int) ([]domain.SyncQueueItem, error) {
	query := `SELECT ` + outboxColumns + ` FROM sync_outbox
		WHERE parked_at IS NULL AND ($1 = '' OR identity_id = $1)
		ORDER BY created_at ASC`
	args := []any{identityID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox items: %w", err)
	}
	defer rows.Close()

	var items []domain.SyncQueueItem
	for rows.Next() {
		it, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return items, nil
}

// RecordAttempt bumps the attempt counter after a failed submission.
func (r *SyncQueueRepo) RecordAttempt(ctx context.Context, journalID uuid.UUID, at time.Time, lastErr string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_outbox SET attempts = attempts + 1, last_attempt_at = $2,
			last_error = COALESCE(NULLIF($3, ''), last_error)
		 WHERE journal_id = $1`,
		journalID, at, lastErr,
	)
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	return nil
}

// Park excludes an item from further automatic attempts.
func (r *SyncQueueRepo) Park(ctx context.Context, journalID uuid.UUID, at time.Time, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_outbox SET attempts = attempts + 1, last_attempt_at = $2, last_error = $3, parked_at = $2
		 WHERE journal_id = $1`,
		journalID, at, reason,
	)
	if err != nil {
		return fmt.Errorf("park outbox item: %w", err)
	}
	return nil
}

func scanOutbox(row pgx.Row) (*domain.SyncQueueItem, error) {
	it := &domain.SyncQueueItem{}
	err := row.Scan(
		&it.JournalID, &it.IdentityID, &it.Payload, &it.Signature, &it.PublicKey, &it.Nonce,
		&it.Attempts, &it.LastAttemptAt, &it.LastError, &it.ParkedAt, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return it, nil
}
