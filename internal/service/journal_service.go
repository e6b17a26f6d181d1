package service

import (
	"context"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JournalServiceImpl implements ports.JournalService. Every state change is a
// compare-and-swap on the expected prior state, so concurrent or replayed
// transitions cannot move an entry backwards.
type JournalServiceImpl struct {
	repo ports.JournalRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewJournalService creates a new JournalServiceImpl.
func NewJournalService(repo ports.JournalRepository, log zerolog.Logger) *JournalServiceImpl {
	return &JournalServiceImpl{
		repo: repo,
		log:  log.With().Str("component", "journal").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Append durably records intent as pending and returns its journal id.
func (s *JournalServiceImpl) Append(ctx context.Context, session domain.Session, intent domain.JournalIntent) (uuid.UUID, error) {
	if !session.Valid() {
		return uuid.Nil, apperror.Validation("session does not name an identity")
	}

	now := s.now()
	entry := &domain.JournalEntry{
		JournalID:  uuid.New(),
		IdentityID: session.IdentityID,
		Intent:     intent,
		State:      domain.JournalStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	entry.Intent.Entry.JournalID = entry.JournalID

	if err := s.repo.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("identity_id", session.IdentityID).Msg("journal append failed")
		return uuid.Nil, apperror.ErrJournalWriteFailure(fmt.Errorf("append journal: %w", err))
	}
	return entry.JournalID, nil
}

func (s *JournalServiceImpl) MarkApplied(ctx context.Context, journalID uuid.UUID) error {
	return s.transition(ctx, journalID, domain.JournalStateApplied)
}

func (s *JournalServiceImpl) MarkCommitted(ctx context.Context, journalID uuid.UUID) error {
	return s.transition(ctx, journalID, domain.JournalStateCommitted)
}

func (s *JournalServiceImpl) MarkRolledBack(ctx context.Context, journalID uuid.UUID) error {
	return s.transition(ctx, journalID, domain.JournalStateRolledBack)
}

// ScanIncomplete returns the session's pending and applied entries, oldest first.
func (s *JournalServiceImpl) ScanIncomplete(ctx context.Context, session domain.Session) ([]domain.JournalEntry, error) {
	if !session.Valid() {
		return nil, apperror.Validation("session does not name an identity")
	}
	entries, err := s.repo.ListIncomplete(ctx, session.IdentityID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list incomplete journal: %w", err))
	}
	return entries, nil
}

func (s *JournalServiceImpl) IncompleteIdentities(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListIncompleteIdentities(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list identities with incomplete journal: %w", err))
	}
	return ids, nil
}

func (s *JournalServiceImpl) Get(ctx context.Context, journalID uuid.UUID) (*domain.JournalEntry, error) {
	entry, err := s.repo.Get(ctx, journalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get journal entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("Journal entry")
	}
	return entry, nil
}

func (s *JournalServiceImpl) transition(ctx context.Context, journalID uuid.UUID, to domain.JournalState) error {
	current, err := s.Get(ctx, journalID)
	if err != nil {
		return err
	}

	if !current.State.CanTransitionTo(to) {
		s.log.Error().
			Str("journal_id", journalID.String()).
			Str("from", string(current.State)).
			Str("to", string(to)).
			Msg("illegal journal transition")
		return apperror.ErrIllegalJournalTransition(string(current.State), string(to))
	}

	ok, err := s.repo.CompareAndSetState(ctx, journalID, current.State, to)
	if err != nil {
		s.log.Error().Err(err).Str("journal_id", journalID.String()).Str("to", string(to)).Msg("journal state write failed")
		return apperror.ErrJournalWriteFailure(fmt.Errorf("set journal state %s: %w", to, err))
	}
	if !ok {
		// Someone else moved the entry between our read and write.
		s.log.Error().
			Str("journal_id", journalID.String()).
			Str("expected", string(current.State)).
			Str("to", string(to)).
			Msg("journal state changed concurrently")
		return apperror.ErrIllegalJournalTransition(string(current.State), string(to))
	}
	return nil
}
