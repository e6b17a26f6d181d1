package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const journalColumns = `journal_id, identity_id, intent, state, created_at, updated_at`

// JournalRepo implements ports.JournalRepository. The intent is stored as
// JSONB so recovery can re-drive it without any other table.
type JournalRepo struct {
	pool Pool
}

// NewJournalRepo creates a new JournalRepo.
func NewJournalRepo(pool Pool) *JournalRepo {
	return &JournalRepo{pool: pool}
}

// Append inserts a journal entry. The INSERT is committed when it returns.
func (r *JournalRepo) Append(ctx context.Context, e *domain.JournalEntry) error {
	intent, err := json.Marshal(e.Intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO journal_entries (`+journalColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.JournalID, e.IdentityID, intent, string(e.State), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Get fetches a journal entry by id. Returns nil, nil if absent.
func (r *JournalRepo) Get(ctx context.Context, journalID uuid.UUID) (*domain.JournalEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+journalColumns+` FROM journal_entries WHERE journal_id = $1`, journalID)

	e, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return e, nil
}

// CompareAndSetState moves the entry from one state to another in a single
// conditional UPDATE.
func (r *JournalRepo) CompareAndSetState(ctx context.Context, journalID uuid.UUID, from, to domain.JournalState) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE journal_entries SET state = $3, updated_at = $4 WHERE journal_id = $1 AND state = $2`,
		journalID, string(from), string(to), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("update journal state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListIncomplete returns the identity's pending and applied entries, oldest first.
func (r *JournalRepo) ListIncomplete(ctx context.Context, identityID string) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+journalColumns+` FROM journal_entries
		 WHERE identity_id = $1 AND state IN ('pending', 'applied')
		 ORDER BY created_at ASC`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list incomplete journal entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

// ListIncompleteIdentities returns every identity that still has a pending or
// applied entry.
func (r *JournalRepo) ListIncompleteIdentities(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT identity_id FROM journal_entries
		 WHERE state IN ('pending', 'applied')
		 ORDER BY identity_id`)
	if err != nil {
		return nil, fmt.Errorf("list identities with incomplete journal entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity rows: %w", err)
	}
	return ids, nil
}

func scanJournal(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		e      domain.JournalEntry
		intent []byte
		state  string
	)
	if err := row.Scan(&e.JournalID, &e.IdentityID, &intent, &state, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(intent, &e.Intent); err != nil {
		return nil, fmt.Errorf("unmarshal intent: %w", err)
	}
	e.State = domain.JournalState(state)
	return &e, nil
}
