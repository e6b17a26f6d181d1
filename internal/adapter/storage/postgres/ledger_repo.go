package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, identity_id, journal_id, counterparty_address, amount, direction,
	status, mode, nonce, intent_label, timestamp, settled_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry. Replaying the same id is a no-op.
func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.IdentityID, e.JournalID, e.CounterpartyAddress, e.Amount, string(e.Direction),
		string(e.Status), string(e.Mode), e.Nonce, e.IntentLabel, e.Timestamp, e.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches an entry by UUID. Returns nil, nil if absent.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	e, err := scanLedger(r.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByJournalID returns every entry written for one journal record.
func (r *LedgerRepo) ListByJournalID(ctx context.Context, journalID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE journal_id = $1`, journalID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by journal: %w", err)
	}
	return collectLedger(rows)
}

// Remove deletes an entry written by a rolled back transaction. Entries
// written by any other journal are left alone.
func (r *LedgerRepo) Remove(ctx context.Context, id, journalID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1 AND journal_id = $2`, id, journalID); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	return nil
}

// UpdateStatus moves a queued entry to settled or failed.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LedgerStatus, settledAt *time.Time) (bool, error) {
	if status != domain.LedgerStatusSettled && status != domain.LedgerStatusFailed {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE ledger_entries SET status = $2, settled_at = COALESCE($3, settled_at)
		 WHERE id = $1 AND status = 'queued'`,
		id, string(status), settledAt,
	)
	if err != nil {
		return false, fmt.Errorf("update ledger status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches entries with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("identity_id = $%d", argIdx))
	args = append(args, params.IdentityID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}
	if params.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIdx))
		args = append(args, string(*params.Direction))
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	entries, err := collectLedger(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Stats aggregates an identity's entries. Failed entries are counted but
// excluded from the sums.
func (r *LedgerRepo) Stats(ctx context.Context, identityID string, since *time.Time) (*ports.LedgerStats, error) {
	args := []any{identityID}
	condition := "identity_id = $1"
	if since != nil {
		condition += " AND timestamp >= $2"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'queued') AS queued,
		COUNT(*) FILTER (WHERE status = 'settled') AS settled,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'debit' AND status <> 'failed'), 0) AS debited,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'credit' AND status <> 'failed'), 0) AS credited
		FROM ledger_entries WHERE %s`, condition)

	stats := &ports.LedgerStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Queued, &stats.Settled, &stats.Failed,
		&stats.Debited, &stats.Credited,
	)
	if err != nil {
		return nil, fmt.Errorf("get ledger stats: %w", err)
	}
	return stats, nil
}

func collectLedger(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

func scanLedger(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e                       domain.LedgerEntry
		direction, status, mode string
	)
	err := row.Scan(
		&e.ID, &e.IdentityID, &e.JournalID, &e.CounterpartyAddress, &e.Amount, &direction,
		&status, &mode, &e.Nonce, &e.IntentLabel, &e.Timestamp, &e.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	e.Direction = domain.Direction(direction)
	e.Status = domain.LedgerStatus(status)
	e.Mode = domain.LedgerMode(mode)
	return &e, nil
}
