package service

import (
	"context"
	"fmt"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// RecoveryService finishes or undoes journal entries left incomplete by a
// crash. It must run before the API starts serving.
type RecoveryService struct {
	journal  ports.JournalService
	accounts ports.AccountRepository
	executor *Executor
	auditSvc ports.AuditService
	log      zerolog.Logger
}

// NewRecoveryService creates a new RecoveryService. It re-drives entries
// through the same steps the executor uses.
func NewRecoveryService(
	journal ports.JournalService,
	accounts ports.AccountRepository,
	executor *Executor,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *RecoveryService {
	return &RecoveryService{
		journal:  journal,
		accounts: accounts,
		executor: executor,
		auditSvc: auditSvc,
		log:      log.With().Str("component", "recovery").Logger(),
	}
}

// Run resolves every incomplete journal entry of session:
//   - pending without a recorded mutation: rolled back (discarded)
//   - pending with a recorded mutation: treated as applied
//   - applied: steps 4-6 re-driven to committed (recovered)
//   - re-drive failure: compensated and rolled back (failed)
//   - compensation failure: left as-is and reported unresolved
func (r *RecoveryService) Run(ctx context.Context, session domain.Session) (ports.RecoveryReport, error) {
	report := ports.RecoveryReport{IdentityID: session.IdentityID}

	release, err := acquireLease(ctx, r.executor.leases, session.IdentityID, r.executor.waitTimeout, r.log)
	if err != nil {
		return report, err
	}
	defer release()

	entries, err := r.journal.ScanIncomplete(ctx, session)
	if err != nil {
		return report, err
	}
	report.Scanned = len(entries)

	for i := range entries {
		e := &entries[i]
		elog := r.log.With().Str("journal_id", e.JournalID.String()).Str("state", string(e.State)).Logger()

		switch outcome := r.executor.resolve(ctx, session, e); outcome {
		case outcomeRecovered:
			report.Recovered++
			elog.Info().Msg("journal entry recovered")
		case outcomeDiscarded:
			report.Discarded++
			elog.Info().Msg("journal entry discarded")
		case outcomeFailed:
			report.Failed++
			elog.Warn().Msg("journal entry rolled back after failed re-drive")
		default:
			report.Unresolved = append(report.Unresolved, e.JournalID)
			elog.Error().Msg("journal entry unresolved, manual review required")
		}
	}

	if report.Scanned > 0 {
		r.log.Info().
			Str("identity_id", session.IdentityID).
			Int("scanned", report.Scanned).
			Int("recovered", report.Recovered).
			Int("discarded", report.Discarded).
			Int("failed", report.Failed).
			Int("unresolved", len(report.Unresolved)).
			Msg("recovery pass complete")

		r.auditSvc.Log(ctx, &domain.AuditLog{
			IdentityID:   session.IdentityID,
			Action:       domain.AuditActionRecovery,
			ResourceType: "journal",
			Details: fmt.Sprintf(`{"scanned":%d,"recovered":%d,"discarded":%d,"failed":%d,"unresolved":%d}`,
				report.Scanned, report.Recovered, report.Discarded, report.Failed, len(report.Unresolved)),
		})
	}
	return report, nil
}

// RunAll runs recovery for the configured identities plus every identity the
// journal still holds incomplete entries for. A failing identity does not stop
// the others; the first error is returned alongside every report.
func (r *RecoveryService) RunAll(ctx context.Context, identities []string) ([]ports.RecoveryReport, error) {
	pending, err := r.journal.IncompleteIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities to recover: %w", err)
	}

	seen := make(map[string]struct{}, len(identities)+len(pending))
	all := make([]string, 0, len(identities)+len(pending))
	for _, id := range append(append([]string{}, identities...), pending...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		all = append(all, id)
	}

	reports := make([]ports.RecoveryReport, 0, len(all))
	var firstErr error
	for _, id := range all {
		report, err := r.Run(ctx, domain.NewSession(id))
		if err != nil {
			r.log.Error().Err(err).Str("identity_id", id).Msg("recovery pass failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("recover %s: %w", id, err)
			}
		}
		reports = append(reports, report)
	}
	return reports, firstErr
}

type recoveryOutcome int

const (
	outcomeUnresolved recoveryOutcome = iota
	outcomeRecovered
	outcomeDiscarded
	outcomeFailed
)

func (o recoveryOutcome) String() string {
	switch o {
	case outcomeRecovered:
		return "recovered"
	case outcomeDiscarded:
		return "discarded"
	case outcomeFailed:
		return "failed"
	default:
		return "unresolved"
	}
}
