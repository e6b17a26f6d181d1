package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"

	"github.com/google/uuid"
)

// LedgerRepo implements ports.LedgerRepository in memory.
type LedgerRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]domain.LedgerEntry
}

// NewLedgerRepo creates an empty LedgerRepo.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{entries: make(map[uuid.UUID]domain.LedgerEntry)}
}

func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; ok {
		return nil
	}
	r.entries[e.ID] = copyLedger(*e)
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	c := copyLedger(e)
	return &c, nil
}

func (r *LedgerRepo) ListByJournalID(ctx context.Context, journalID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.JournalID == journalID {
			result = append(result, copyLedger(e))
		}
	}
	return result, nil
}

func (r *LedgerRepo) Remove(ctx context.Context, id, journalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && e.JournalID == journalID {
		delete(r.entries, id)
	}
	return nil
}

func (r *LedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LedgerStatus, settledAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || !e.CanTransitionTo(status) {
		return false, nil
	}
	e.Status = status
	if settledAt != nil {
		t := *settledAt
		e.SettledAt = &t
	}
	r.entries[id] = e
	return true, nil
}

func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.IdentityID != params.IdentityID {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.Direction != nil && e.Direction != *params.Direction {
			continue
		}
		if params.From != nil && e.Timestamp.Before(*params.From) {
			continue
		}
		if params.To != nil && e.Timestamp.After(*params.To) {
			continue
		}
		result = append(result, copyLedger(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *LedgerRepo) Stats(ctx context.Context, identityID string, since *time.Time) (*ports.LedgerStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.LedgerStats{}
	for _, e := range r.entries {
		if e.IdentityID != identityID || (since != nil && e.Timestamp.Before(*since)) {
			continue
		}
		stats.Total++
		switch e.Status {
		case domain.LedgerStatusQueued:
			stats.Queued++
		case domain.LedgerStatusSettled:
			stats.Settled++
		case domain.LedgerStatusFailed:
			stats.Failed++
		}
		if e.Status == domain.LedgerStatusFailed {
			continue
		}
		if e.Direction == domain.DirectionDebit {
			stats.Debited += e.Amount
		} else {
			stats.Credited += e.Amount
		}
	}
	return stats, nil
}

func copyLedger(e domain.LedgerEntry) domain.LedgerEntry {
	if e.SettledAt != nil {
		t := *e.SettledAt
		e.SettledAt = &t
	}
	return e
}
