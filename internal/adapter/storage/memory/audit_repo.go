package memory

import (
	"context"
	"sync"

	"offline-payment-engine/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository in memory.
type AuditRepo struct {
	mu   sync.RWMutex
	logs []domain.AuditLog
}

// NewAuditRepo creates an empty AuditRepo.
func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// All returns a snapshot of every recorded entry.
func (r *AuditRepo) All() []domain.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.logs...)
}
