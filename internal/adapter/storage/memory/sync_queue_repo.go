package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
)

// SyncQueueRepo implements ports.SyncQueueRepository in memory.
type SyncQueueRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.SyncQueueItem
}

// NewSyncQueueRepo creates an empty SyncQueueRepo.
func NewSyncQueueRepo() *SyncQueueRepo {
	return &SyncQueueRepo{items: make(map[uuid.UUID]domain.SyncQueueItem)}
}

func (r *SyncQueueRepo) Enqueue(ctx context.Context, item *domain.SyncQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.JournalID]; ok {
		return nil
	}
	r.items[item.JournalID] = copyItem(*item)
	return nil
}

func (r *SyncQueueRepo) Get(ctx context.Context, journalID uuid.UUID) (*domain.SyncQueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[journalID]
	if !ok {
		return nil, nil
	}
	c := copyItem(it)
	return &c, nil
}

func (r *SyncQueueRepo) Delete(ctx context.Context, journalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, journalID)
	return nil
}

func (r *SyncQueueRepo) ListPending(ctx context.Context, identityID string, limit int) ([]domain.SyncQueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.SyncQueueItem
	for _, it := range r.items {
		if it.IsParked() {
			continue
		}
		if identityID != "" && it.IdentityID != identityID {
			continue
		}
		result = append(result, copyItem(it))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *SyncQueueRepo) RecordAttempt(ctx context.Context, journalID uuid.UUID, at time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[journalID]
	if !ok {
		return nil
	}
	it.Attempts++
	it.LastAttemptAt = &at
	if lastErr != "" {
		it.LastError = &lastErr
	}
	r.items[journalID] = it
	return nil
}

func (r *SyncQueueRepo) Park(ctx context.Context, journalID uuid.UUID, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[journalID]
	if !ok {
		return nil
	}
	it.Attempts++
	it.LastAttemptAt = &at
	it.LastError = &reason
	it.ParkedAt = &at
	r.items[journalID] = it
	return nil
}

func copyItem(it domain.SyncQueueItem) domain.SyncQueueItem {
	it.Payload = append([]byte(nil), it.Payload...)
	if it.LastAttemptAt != nil {
		t := *it.LastAttemptAt
		it.LastAttemptAt = &t
	}
	if it.LastError != nil {
		s := *it.LastError
		it.LastError = &s
	}
	if it.ParkedAt != nil {
		t := *it.ParkedAt
		it.ParkedAt = &t
	}
	return it
}
