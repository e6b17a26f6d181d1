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

const accountColumns = `identity_id, main_balance, offline_loaded, offline_balance, offline_initial,
	offline_loaded_at, offline_last_reset, updated_at`

// AccountRepo implements ports.AccountRepository. Every balance change runs
// in one transaction holding the account row lock, together with the
// balance_mutations record that makes it idempotent per journal entry.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Get fetches an account without locking. Returns nil, nil if absent.
func (r *AccountRepo) Get(ctx context.Context, identityID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE identity_id = $1`
	acc, err := scanAccount(r.pool.QueryRow(ctx, query, identityID))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// Ensure creates a zero-balance account if none exists and returns it.
func (r *AccountRepo) Ensure(ctx context.Context, identityID string) (*domain.Account, error) {
	query := `INSERT INTO accounts (identity_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (identity_id) DO UPDATE SET identity_id = EXCLUDED.identity_id
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, identityID, time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return acc, nil
}

// ApplyMutation applies m under the row lock and records it for journalID.
func (r *AccountRepo) ApplyMutation(ctx context.Context, identityID string, journalID uuid.UUID, m domain.BalanceMutation) (*domain.Account, error) {
	var result *domain.Account
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, identityID)
		if err != nil {
			return err
		}

		var applied bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM balance_mutations WHERE journal_id = $1)`, journalID,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check mutation: %w", err)
		}
		if applied {
			result = acc
			return nil
		}

		next, err := m.ApplyTo(*acc)
		if err != nil {
			return fmt.Errorf("apply mutation for journal %s: %w", journalID, err)
		}
		next.UpdatedAt = time.Now().UTC()
		if err := writeAccount(ctx, tx, &next); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO balance_mutations (journal_id, identity_id, main_delta, offline_delta, applied_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			journalID, identityID, m.MainDelta, m.OfflineDelta, next.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert mutation: %w", err)
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RevertMutation undoes the mutation recorded for journalID, if any.
func (r *AccountRepo) RevertMutation(ctx context.Context, identityID string, journalID uuid.UUID) (*domain.Account, error) {
	var result *domain.Account
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, identityID)
		if err != nil {
			return err
		}

		var owner string
		var m domain.BalanceMutation
		err = tx.QueryRow(ctx,
			`SELECT identity_id, main_delta, offline_delta FROM balance_mutations WHERE journal_id = $1 FOR UPDATE`,
			journalID,
		).Scan(&owner, &m.MainDelta, &m.OfflineDelta)
		if errors.Is(err, pgx.ErrNoRows) {
			result = acc
			return nil
		}
		if err != nil {
			return fmt.Errorf("get mutation: %w", err)
		}
		if owner != identityID {
			return fmt.Errorf("journal %s belongs to %s", journalID, owner)
		}

		next, err := m.Inverse().ApplyTo(*acc)
		if err != nil {
			return fmt.Errorf("revert mutation for journal %s: %w", journalID, err)
		}
		next.UpdatedAt = time.Now().UTC()
		if err := writeAccount(ctx, tx, &next); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM balance_mutations WHERE journal_id = $1`, journalID); err != nil {
			return fmt.Errorf("delete mutation: %w", err)
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MutationApplied reports whether a mutation is recorded for journalID.
func (r *AccountRepo) MutationApplied(ctx context.Context, journalID uuid.UUID) (bool, error) {
	var applied bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM balance_mutations WHERE journal_id = $1)`, journalID,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("check mutation: %w", err)
	}
	return applied, nil
}

// Update runs fn on the locked account and writes the result back.
func (r *AccountRepo) Update(ctx context.Context, identityID string, fn func(acc *domain.Account) error) (*domain.Account, error) {
	var result *domain.Account
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, identityID)
		if err != nil {
			return err
		}
		if err := fn(acc); err != nil {
			return err
		}
		acc.UpdatedAt = time.Now().UTC()
		if err := writeAccount(ctx, tx, acc); err != nil {
			return err
		}
		result = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockAccount fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func lockAccount(ctx context.Context, tx pgx.Tx, identityID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE identity_id = $1 FOR UPDATE`
	acc, err := scanAccount(tx.QueryRow(ctx, query, identityID))
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("account %s not found", identityID)
	}
	return acc, nil
}

func writeAccount(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET main_balance = $2, offline_loaded = $3, offline_balance = $4,
			offline_initial = $5, offline_loaded_at = $6, offline_last_reset = $7, updated_at = $8
		 WHERE identity_id = $1`,
		a.IdentityID, a.MainBalance, a.Offline.Loaded, a.Offline.Balance,
		a.Offline.InitialLoadAmount, a.Offline.LoadedAt, a.Offline.LastReset, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", a.IdentityID)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.IdentityID, &a.MainBalance, &a.Offline.Loaded, &a.Offline.Balance,
		&a.Offline.InitialLoadAmount, &a.Offline.LoadedAt, &a.Offline.LastReset, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
