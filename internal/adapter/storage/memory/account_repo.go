package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
)

type appliedMutation struct {
	identityID string
	mutation   domain.BalanceMutation
}

// AccountRepo implements ports.AccountRepository in memory. A single mutex
// makes every balance change and its mutation record atomic.
type AccountRepo struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account
	mutations map[uuid.UUID]appliedMutation
}

// NewAccountRepo creates an empty AccountRepo.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		accounts:  make(map[string]domain.Account),
		mutations: make(map[uuid.UUID]appliedMutation),
	}
}

func (r *AccountRepo) Get(ctx context.Context, identityID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identityID]
	if !ok {
		return nil, nil
	}
	return copyAccount(a), nil
}

func (r *AccountRepo) Ensure(ctx context.Context, identityID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identityID]
	if !ok {
		a = domain.Account{IdentityID: identityID, UpdatedAt: time.Now().UTC()}
		r.accounts[identityID] = a
	}
	return copyAccount(a), nil
}

func (r *AccountRepo) ApplyMutation(ctx context.Context, identityID string, journalID uuid.UUID, m domain.BalanceMutation) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identityID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", identityID)
	}
	if _, done := r.mutations[journalID]; done {
		return copyAccount(a), nil
	}
	next, err := m.ApplyTo(a)
	if err != nil {
		return nil, fmt.Errorf("apply mutation for journal %s: %w", journalID, err)
	}
	next.UpdatedAt = time.Now().UTC()
	r.accounts[identityID] = next
	r.mutations[journalID] = appliedMutation{identityID: identityID, mutation: m}
	return copyAccount(next), nil
}

func (r *AccountRepo) RevertMutation(ctx context.Context, identityID string, journalID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identityID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", identityID)
	}
	rec, done := r.mutations[journalID]
	if !done {
		return copyAccount(a), nil
	}
	if rec.identityID != identityID {
		return nil, fmt.Errorf("journal %s belongs to %s", journalID, rec.identityID)
	}
	next, err := rec.mutation.Inverse().ApplyTo(a)
	if err != nil {
		return nil, fmt.Errorf("revert mutation for journal %s: %w", journalID, err)
	}
	next.UpdatedAt = time.Now().UTC()
	r.accounts[identityID] = next
	delete(r.mutations, journalID)
	return copyAccount(next), nil
}

func (r *AccountRepo) MutationApplied(ctx context.Context, journalID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.mutations[journalID]
	return ok, nil
}

func (r *AccountRepo) Update(ctx context.Context, identityID string, fn func(acc *domain.Account) error) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identityID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", identityID)
	}
	working := copyAccount(a)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	r.accounts[identityID] = *copyAccount(*working)
	return working, nil
}

func copyAccount(a domain.Account) *domain.Account {
	if a.Offline.LoadedAt != nil {
		t := *a.Offline.LoadedAt
		a.Offline.LoadedAt = &t
	}
	if a.Offline.LastReset != nil {
		t := *a.Offline.LastReset
		a.Offline.LastReset = &t
	}
	return &a
}
