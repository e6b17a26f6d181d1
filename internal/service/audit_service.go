package service

import (
	"context"
	"sync"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditServiceImpl writes audit entries to the log and, when a repository is
// configured, persists them in the background.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log.With().Str("component", "audit").Logger()}
}

// Log records an audit entry asynchronously. Missing ID, timestamp and client
// address are filled in.
func (s *AuditServiceImpl) Log(ctx context.Context, entry *domain.AuditLog) {
	rec := *entry
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.IPAddress == "" {
		rec.IPAddress = domain.ClientIPFrom(ctx)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().
			Str("identity_id", rec.IdentityID).
			Str("action", string(rec.Action)).
			Str("resource_type", rec.ResourceType).
			Str("resource_id", rec.ResourceID).
			Str("ip", rec.IPAddress).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.WithoutCancel(ctx), &rec); err != nil {
				s.log.Warn().Err(err).Str("action", string(rec.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}

// Wait blocks until every pending audit write has finished.
func (s *AuditServiceImpl) Wait() {
	s.wg.Wait()
}
