package service

import (
	"context"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	ledger   ports.LedgerRepository
	accounts ports.AccountRepository
	now      func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(ledger ports.LedgerRepository, accounts ports.AccountRepository) ports.ReportingService {
	return &reportingService{
		ledger:   ledger,
		accounts: accounts,
		now:      time.Now,
	}
}

// Summary returns aggregated ledger figures for the identity.
func (s *reportingService) Summary(ctx context.Context, session domain.Session, period string) (*ports.LedgerStats, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}

	var since *time.Time
	switch period {
	case "day":
		t := s.now().AddDate(0, 0, -1)
		since = &t
	case "week":
		t := s.now().AddDate(0, 0, -7)
		since = &t
	case "month":
		t := s.now().AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.ledger.Stats(ctx, session.IdentityID, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// ListTransactions returns a page of ledger entries, newest first.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.IdentityID == "" {
		return nil, 0, apperror.Validation("session does not name an identity")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	entries, total, err := s.ledger.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// GetAccount returns the identity's balances.
func (s *reportingService) GetAccount(ctx context.Context, session domain.Session) (*domain.Account, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}
	acc, err := s.accounts.Get(ctx, session.IdentityID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if acc == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return acc, nil
}
