package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// OfflineWalletServiceImpl implements ports.OfflineWalletService. Loads and
// unloads take the same identity lease as the executor so they never
// interleave with an in-flight payment.
type OfflineWalletServiceImpl struct {
	accounts    ports.AccountRepository
	leases      ports.LeaseManager
	auditSvc    ports.AuditService
	waitTimeout time.Duration
	log         zerolog.Logger
}

// NewOfflineWalletService creates a new OfflineWalletServiceImpl.
func NewOfflineWalletService(
	accounts ports.AccountRepository,
	leases ports.LeaseManager,
	auditSvc ports.AuditService,
	waitTimeout time.Duration,
	log zerolog.Logger,
) *OfflineWalletServiceImpl {
	return &OfflineWalletServiceImpl{
		accounts:    accounts,
		leases:      leases,
		auditSvc:    auditSvc,
		waitTimeout: waitTimeout,
		log:         log.With().Str("component", "offline_wallet").Logger(),
	}
}

// State returns the account, creating an empty one on first use.
func (s *OfflineWalletServiceImpl) State(ctx context.Context, session domain.Session) (*domain.Account, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}
	acc, err := s.accounts.Ensure(ctx, session.IdentityID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load account: %w", err))
	}
	return acc, nil
}

func (s *OfflineWalletServiceImpl) CanSpend(ctx context.Context, session domain.Session, amount int64) (bool, error) {
	acc, err := s.State(ctx, session)
	if err != nil {
		return false, err
	}
	return acc.Offline.CanSpend(amount), nil
}

// Load earmarks amount of the available main balance for offline spending.
func (s *OfflineWalletServiceImpl) Load(ctx context.Context, session domain.Session, amount int64) (*domain.Account, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if _, err := s.State(ctx, session); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	acc, err := s.accounts.Update(ctx, session.IdentityID, func(a *domain.Account) error {
		return a.LoadOffline(amount, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientMainBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		if errors.Is(err, domain.ErrOfflineAllowanceExceeded) {
			return nil, apperror.ErrInvalidAmount()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load offline wallet: %w", err))
	}

	s.log.Info().
		Str("identity_id", session.IdentityID).
		Int64("amount", amount).
		Int64("offline_balance", acc.Offline.Balance).
		Msg("offline wallet loaded")

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionOfflineLoad,
		ResourceType: "offline_wallet",
		Details:      fmt.Sprintf(`{"amount":%d}`, amount),
	})
	return acc, nil
}

// Unload releases the whole remaining pool and returns how much was released.
func (s *OfflineWalletServiceImpl) Unload(ctx context.Context, session domain.Session) (int64, error) {
	if _, err := s.State(ctx, session); err != nil {
		return 0, err
	}

	release, err := s.acquire(ctx, session.IdentityID)
	if err != nil {
		return 0, err
	}
	defer release()

	var returned int64
	_, err = s.accounts.Update(ctx, session.IdentityID, func(a *domain.Account) error {
		if !a.Offline.Loaded {
			return apperror.ErrOfflineWalletNotLoaded()
		}
		returned = a.UnloadOffline(time.Now().UTC())
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return 0, appErr
		}
		return 0, apperror.ErrDatabaseError(fmt.Errorf("unload offline wallet: %w", err))
	}

	s.log.Info().
		Str("identity_id", session.IdentityID).
		Int64("returned", returned).
		Msg("offline wallet unloaded")

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionOfflineUnload,
		ResourceType: "offline_wallet",
		Details:      fmt.Sprintf(`{"returned":%d}`, returned),
	})
	return returned, nil
}

func (s *OfflineWalletServiceImpl) acquire(ctx context.Context, identityID string) (func(), error) {
	return acquireLease(ctx, s.leases, identityID, s.waitTimeout, s.log)
}

// acquireLease takes the identity lease, bounded by timeout when it is
// positive. The returned func releases it and never fails the caller.
func acquireLease(ctx context.Context, leases ports.LeaseManager, identityID string, timeout time.Duration, log zerolog.Logger) (func(), error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lease, err := leases.Acquire(waitCtx, identityID)
	if err != nil {
		log.Warn().Err(err).Str("identity_id", identityID).Msg("lease acquisition failed")
		return nil, apperror.ErrLeaseTimeout(fmt.Errorf("acquire lease for %s: %w", identityID, err))
	}

	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("identity_id", identityID).Msg("lease release failed")
		}
	}, nil
}
