package service

import (
	"context"
	"fmt"
	"strings"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxReferenceLen = 128

// FundingServiceImpl implements ports.FundingService. Deposits go through the
// executor like any payment, but land settled and never enter the outbox.
type FundingServiceImpl struct {
	executor ports.TransactionExecutor
	auditSvc ports.AuditService
	log      zerolog.Logger
}

// NewFundingService creates a new FundingServiceImpl.
func NewFundingService(executor ports.TransactionExecutor, auditSvc ports.AuditService, log zerolog.Logger) *FundingServiceImpl {
	return &FundingServiceImpl{
		executor: executor,
		auditSvc: auditSvc,
		log:      log.With().Str("component", "funding").Logger(),
	}
}

// Deposit credits the main balance with a transfer settled upstream.
func (s *FundingServiceImpl) Deposit(ctx context.Context, session domain.Session, in ports.DepositInput) (*domain.LedgerEntry, error) {
	if in.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	ref := strings.TrimSpace(in.Reference)
	if ref == "" || len(ref) > maxReferenceLen {
		return nil, apperror.Validation(fmt.Sprintf("reference must be 1 to %d bytes", maxReferenceLen))
	}

	entry, err := s.executor.Execute(ctx, session, ports.ExecutionPlan{
		Draft: domain.LedgerEntry{
			ID:                  depositEntryID(session.IdentityID, ref),
			CounterpartyAddress: in.Source,
			Amount:              in.Amount,
			Direction:           domain.DirectionCredit,
			Mode:                domain.LedgerModeOnline,
			Status:              domain.LedgerStatusSettled,
			Nonce:               ref,
			IntentLabel:         "deposit",
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("identity_id", session.IdentityID).
		Str("reference", ref).
		Int64("amount", entry.Amount).
		Msg("deposit booked")

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionDeposit,
		ResourceType: "ledger_entry",
		ResourceID:   entry.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"reference":%q}`, entry.Amount, ref),
	})
	return entry, nil
}

func depositEntryID(identityID, reference string) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte("deposit|"+identityID+"|"+reference))
}
