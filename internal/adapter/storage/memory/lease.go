package memory

import (
	"context"
	"sync"

	"offline-payment-engine/internal/core/ports"
)

// LeaseManager implements ports.LeaseManager for a single process with one
// buffered channel per identity used as a binary semaphore.
type LeaseManager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLeaseManager creates a LeaseManager.
func NewLeaseManager() *LeaseManager {
	return &LeaseManager{slots: make(map[string]chan struct{})}
}

// Acquire blocks until the identity's lease is free or ctx is done.
func (m *LeaseManager) Acquire(ctx context.Context, identityID string) (ports.Lease, error) {
	slot := m.slot(identityID)
	select {
	case slot <- struct{}{}:
		return &lease{slot: slot}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *LeaseManager) slot(identityID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[identityID]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[identityID] = s
	}
	return s
}

type lease struct {
	slot chan struct{}
	once sync.Once
}

func (l *lease) Release(ctx context.Context) error {
	l.once.Do(func() { <-l.slot })
	return nil
}
