package service

import (
	"context"
	"errors"
	"testing"

	"offline-payment-engine/internal/adapter/storage/memory"
	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports/mocks"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleIntent(amount int64) domain.JournalIntent {
	return domain.JournalIntent{
		Entry: domain.LedgerEntry{
			ID:        uuid.New(),
			Amount:    amount,
			Direction: domain.DirectionDebit,
			Status:    domain.LedgerStatusQueued,
			Mode:      domain.LedgerModeOffline,
			Nonce:     "nonce-0001",
		},
		Mutation:                 domain.BalanceMutation{MainDelta: -amount, OfflineDelta: -amount},
		ConsumesOfflineAllowance: true,
	}
}

func TestJournal_AppendWritesPending(t *testing.T) {
	repo := memory.NewJournalRepo()
	svc := NewJournalService(repo, newTestLogger())
	ctx := context.Background()

	id, err := svc.Append(ctx, domain.NewSession("alice"), sampleIntent(100))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JournalStatePending, entry.State)
	assert.Equal(t, "alice", entry.IdentityID)
	assert.Equal(t, id, entry.Intent.Entry.JournalID)
	assert.Equal(t, int64(-100), entry.Intent.Mutation.MainDelta)
}

func TestJournal_AppendInvalidSession(t *testing.T) {
	svc := NewJournalService(memory.NewJournalRepo(), newTestLogger())
	_, err := svc.Append(context.Background(), domain.NewSession(" "), sampleIntent(1))
	assertAppError(t, err, apperror.CodeInvalidAmount)
}

func TestJournal_AppendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJournalRepository(ctrl)
	repo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	svc := NewJournalService(repo, newTestLogger())
	_, err := svc.Append(context.Background(), domain.NewSession("alice"), sampleIntent(1))
	assertAppError(t, err, apperror.CodeJournalWriteFailure)
}

func TestJournal_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []domain.JournalState
		illegal domain.JournalState
	}{
		{"committed cannot be re-applied", []domain.JournalState{domain.JournalStateApplied, domain.JournalStateCommitted}, domain.JournalStateApplied},
		{"committed cannot roll back", []domain.JournalState{domain.JournalStateApplied, domain.JournalStateCommitted}, domain.JournalStateRolledBack},
		{"rolled back is terminal", []domain.JournalState{domain.JournalStateRolledBack}, domain.JournalStateCommitted},
		{"pending cannot skip to committed", nil, domain.JournalStateCommitted},
		{"applied twice", []domain.JournalState{domain.JournalStateApplied}, domain.JournalStateApplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewJournalService(memory.NewJournalRepo(), newTestLogger())
			ctx := context.Background()
			id, err := svc.Append(ctx, domain.NewSession("alice"), sampleIntent(10))
			require.NoError(t, err)

			for _, st := range tt.path {
				require.NoError(t, svc.transition(ctx, id, st))
			}
			before, err := svc.Get(ctx, id)
			require.NoError(t, err)

			err = svc.transition(ctx, id, tt.illegal)
			assertAppError(t, err, apperror.CodeIllegalJournalTransition)

			after, err := svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before.State, after.State)
		})
	}
}

func TestJournal_LegalEdges(t *testing.T) {
	svc := NewJournalService(memory.NewJournalRepo(), newTestLogger())
	ctx := context.Background()
	session := domain.NewSession("alice")

	a, _ := svc.Append(ctx, session, sampleIntent(1))
	require.NoError(t, svc.MarkApplied(ctx, a))
	require.NoError(t, svc.MarkCommitted(ctx, a))

	b, _ := svc.Append(ctx, session, sampleIntent(2))
	require.NoError(t, svc.MarkRolledBack(ctx, b))

	c, _ := svc.Append(ctx, session, sampleIntent(3))
	require.NoError(t, svc.MarkApplied(ctx, c))
	require.NoError(t, svc.MarkRolledBack(ctx, c))

	incomplete, err := svc.ScanIncomplete(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestJournal_ScanIncomplete(t *testing.T) {
	svc := NewJournalService(memory.NewJournalRepo(), newTestLogger())
	ctx := context.Background()
	alice := domain.NewSession("alice")

	pending, _ := svc.Append(ctx, alice, sampleIntent(1))
	applied, _ := svc.Append(ctx, alice, sampleIntent(2))
	require.NoError(t, svc.MarkApplied(ctx, applied))
	done, _ := svc.Append(ctx, alice, sampleIntent(3))
	require.NoError(t, svc.MarkRolledBack(ctx, done))
	_, _ = svc.Append(ctx, domain.NewSession("bob"), sampleIntent(4))

	entries, err := svc.ScanIncomplete(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := []uuid.UUID{entries[0].JournalID, entries[1].JournalID}
	assert.ElementsMatch(t, []uuid.UUID{pending, applied}, ids)
}

func TestJournal_GetMissing(t *testing.T) {
	svc := NewJournalService(memory.NewJournalRepo(), newTestLogger())
	_, err := svc.Get(context.Background(), uuid.New())
	assertAppError(t, err, apperror.CodeNotFound)
}

func TestJournal_LostCompareAndSwap(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJournalRepository(ctrl)
	id := uuid.New()

	repo.EXPECT().Get(gomock.Any(), id).Return(&domain.JournalEntry{JournalID: id, State: domain.JournalStatePending}, nil)
	repo.EXPECT().CompareAndSetState(gomock.Any(), id, domain.JournalStatePending, domain.JournalStateApplied).Return(false, nil)

	svc := NewJournalService(repo, newTestLogger())
	err := svc.MarkApplied(context.Background(), id)
	assertAppError(t, err, apperror.CodeIllegalJournalTransition)
}

func TestJournal_StateWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJournalRepository(ctrl)
	id := uuid.New()

	repo.EXPECT().Get(gomock.Any(), id).Return(&domain.JournalEntry{JournalID: id, State: domain.JournalStateApplied}, nil)
	repo.EXPECT().CompareAndSetState(gomock.Any(), id, domain.JournalStateApplied, domain.JournalStateCommitted).Return(false, errors.New("io"))

	svc := NewJournalService(repo, newTestLogger())
	err := svc.MarkCommitted(context.Background(), id)
	assertAppError(t, err, apperror.CodeJournalWriteFailure)
}

func TestJournal_IncompleteIdentitiesFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJournalRepository(ctrl)
	repo.EXPECT().ListIncompleteIdentities(gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := NewJournalService(repo, newTestLogger()).IncompleteIdentities(context.Background())
	assertAppError(t, err, apperror.CodeInternal)
}
