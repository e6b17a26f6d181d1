package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
)

// JournalRepo implements ports.JournalRepository in memory.
type JournalRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]domain.JournalEntry
}

// NewJournalRepo creates an empty JournalRepo.
func NewJournalRepo() *JournalRepo {
	return &JournalRepo{entries: make(map[uuid.UUID]domain.JournalEntry)}
}

func (r *JournalRepo) Append(ctx context.Context, e *domain.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.JournalID]; ok {
		return fmt.Errorf("journal entry %s already exists", e.JournalID)
	}
	r.entries[e.JournalID] = copyJournal(*e)
	return nil
}

func (r *JournalRepo) Get(ctx context.Context, journalID uuid.UUID) (*domain.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[journalID]
	if !ok {
		return nil, nil
	}
	c := copyJournal(e)
	return &c, nil
}

func (r *JournalRepo) CompareAndSetState(ctx context.Context, journalID uuid.UUID, from, to domain.JournalState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[journalID]
	if !ok || e.State != from {
		return false, nil
	}
	e.State = to
	e.UpdatedAt = time.Now().UTC()
	r.entries[journalID] = e
	return true, nil
}

func (r *JournalRepo) ListIncomplete(ctx context.Context, identityID string) ([]domain.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.JournalEntry
	for _, e := range r.entries {
		if e.IdentityID != identityID || e.State.IsTerminal() {
			continue
		}
		result = append(result, copyJournal(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *JournalRepo) ListIncompleteIdentities(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []string
	for _, e := range r.entries {
		if e.State.IsTerminal() {
			continue
		}
		if _, ok := seen[e.IdentityID]; !ok {
			seen[e.IdentityID] = struct{}{}
			result = append(result, e.IdentityID)
		}
	}
	sort.Strings(result)
	return result, nil
}

func copyJournal(e domain.JournalEntry) domain.JournalEntry {
	e.Intent.Proof = append([]byte(nil), e.Intent.Proof...)
	e.Intent.Entry = copyLedger(e.Intent.Entry)
	return e
}
