package service

import (
	"context"
	"errors"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SyncWorkerConfig tunes the background hand-off to the upstream ledger.
type SyncWorkerConfig struct {
	Interval      time.Duration
	BatchSize     int
	RatePerSecond float64
	Timeout       time.Duration
}

// SyncWorker drains the outbox to the upstream ledger on a fixed interval.
// It runs beside the executor and never blocks a commit.
type SyncWorker struct {
	queue    *SyncQueue
	journal  ports.JournalService
	upstream ports.UpstreamClient
	limiter  *rate.Limiter
	cfg      SyncWorkerConfig
	log      zerolog.Logger
}

// NewSyncWorker creates a new SyncWorker.
func NewSyncWorker(queue *SyncQueue, journal ports.JournalService, upstream ports.UpstreamClient, cfg SyncWorkerConfig, log zerolog.Logger) *SyncWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &SyncWorker{
		queue:    queue,
		journal:  journal,
		upstream: upstream,
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
		log:      log.With().Str("component", "sync_worker").Logger(),
	}
}

// Run syncs once immediately and then on every tick until ctx is done.
func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.cfg.Interval).Msg("sync worker started")
	for {
		if _, err := w.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn().Err(err).Msg("sync pass failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info().Msg("sync worker stopped")
			return
		case <-ticker.C:
		}
	}
}

type syncOutcome int

const (
	syncConfirmed syncOutcome = iota
	syncRetry
	syncRejected
	syncHeld   // journal still in flight, item stays queued
	syncParked // journal gone or rolled back, item leaves the queue
)

// SyncOnce submits up to BatchSize pending items and returns how many were
// confirmed upstream. Items that cannot be sent yet do not take a slot, so a
// stuck transaction never starves the ones behind it.
func (w *SyncWorker) SyncOnce(ctx context.Context) (int, error) {
	visited := make(map[uuid.UUID]struct{})
	confirmed, attempted, kept := 0, 0, 0

	for attempted < w.cfg.BatchSize {
		// Items still queued from this pass sit ahead of the unseen ones.
		limit := kept + w.cfg.BatchSize - attempted
		items, err := w.queue.Pending(ctx, domain.Session{}, limit)
		if err != nil {
			return confirmed, err
		}

		fresh := 0
		for i := range items {
			if attempted >= w.cfg.BatchSize {
				break
			}
			if _, ok := visited[items[i].JournalID]; ok {
				continue
			}
			visited[items[i].JournalID] = struct{}{}
			fresh++

			outcome, err := w.submit(ctx, &items[i])
			if err != nil {
				return confirmed, err
			}
			switch outcome {
			case syncConfirmed:
				confirmed++
				attempted++
			case syncRejected:
				attempted++
			case syncRetry:
				attempted++
				kept++
			case syncHeld:
				kept++
			}
		}
		if fresh == 0 || len(items) < limit {
			break
		}
	}
	return confirmed, nil
}

// submit reports what happened to item. Only storage errors are returned;
// upstream failures are recorded on the item.
func (w *SyncWorker) submit(ctx context.Context, item *domain.SyncQueueItem) (syncOutcome, error) {
	ilog := w.log.With().Str("journal_id", item.JournalID.String()).Int("attempts", item.Attempts).Logger()

	// An item whose transaction is still being compensated must not leave the device.
	entry, err := w.journal.Get(ctx, item.JournalID)
	if apperror.HasCode(err, apperror.CodeNotFound) {
		ilog.Error().Msg("sync item has no journal entry, parking")
		return syncParked, w.queue.Park(ctx, item.JournalID, "journal entry missing")
	}
	if err != nil {
		return syncHeld, err
	}
	switch entry.State {
	case domain.JournalStateCommitted:
	case domain.JournalStateRolledBack:
		ilog.Warn().Msg("sync item belongs to a rolled back transaction, parking")
		return syncParked, w.queue.Park(ctx, item.JournalID, "transaction rolled back")
	default:
		ilog.Debug().Str("state", string(entry.State)).Msg("holding uncommitted sync item")
		return syncHeld, nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return syncHeld, err
	}

	submitCtx := ctx
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	err = w.upstream.Submit(submitCtx, ports.UpstreamSubmission{
		Payload:   item.Payload,
		Signature: item.Signature,
		PublicKey: item.PublicKey,
		Nonce:     item.Nonce,
		Timestamp: item.CreatedAt,
	})
	switch {
	case err == nil:
		if err := w.queue.DequeueConfirmed(ctx, item.JournalID); err != nil {
			return syncRetry, err
		}
		ilog.Info().Msg("sync item confirmed upstream")
		return syncConfirmed, nil
	case errors.Is(err, ports.ErrUpstreamRejected):
		ilog.Warn().Err(err).Msg("upstream rejected sync item")
		return syncRejected, w.queue.Reject(ctx, item.JournalID, err)
	default:
		ilog.Warn().Err(err).Msg("sync submission failed, will retry")
		return syncRetry, w.queue.RecordFailure(ctx, item.JournalID, err)
	}
}
