package main

import (
	"context"
	"fmt"
	"time"

	"offline-payment-engine/config"
	"offline-payment-engine/internal/adapter/storage/filekeystore"
	"offline-payment-engine/internal/adapter/storage/memory"
	pgStorage "offline-payment-engine/internal/adapter/storage/postgres"
	redisStorage "offline-payment-engine/internal/adapter/storage/redis"
	"offline-payment-engine/internal/core/ports"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// storage is the set of adapters selected by configuration.
type storage struct {
	accounts   ports.AccountRepository
	journal    ports.JournalRepository
	ledger     ports.LedgerRepository
	outbox     ports.SyncQueueRepository
	audit      ports.AuditRepository
	keys       ports.KeyStore
	nonces     ports.NonceStore
	leases     ports.LeaseManager
	rateLimits ports.RateLimitStore
	health     []ports.HealthChecker

	pool *pgxpool.Pool
	rdb  *goredis.Client
}

func (s *storage) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	st := &storage{}

	if cfg.Storage.Driver == "postgres" || cfg.Keystore.Driver == "postgres" {
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		st.pool = pool
		st.health = append(st.health, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL connected")

		if cfg.Database.EnsureSchema {
			if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
				st.Close()
				return nil, err
			}
		}
	}

	switch cfg.Storage.Driver {
	case "postgres":
		st.accounts = pgStorage.NewAccountRepo(st.pool)
		st.journal = pgStorage.NewJournalRepo(st.pool)
		st.ledger = pgStorage.NewLedgerRepo(st.pool)
		st.outbox = pgStorage.NewSyncQueueRepo(st.pool)
		st.audit = pgStorage.NewAuditRepo(st.pool)
	default:
		log.Warn().Msg("Using in-memory storage, balances and journal are lost on exit")
		st.accounts = memory.NewAccountRepo()
		st.journal = memory.NewJournalRepo()
		st.ledger = memory.NewLedgerRepo()
		st.outbox = memory.NewSyncQueueRepo()
		st.audit = memory.NewAuditRepo()
	}

	switch cfg.Keystore.Driver {
	case "file":
		ks, err := filekeystore.New(cfg.Keystore.Dir)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open keystore: %w", err)
		}
		st.keys = ks
	case "postgres":
		st.keys = pgStorage.NewKeyStore(st.pool)
	default:
		st.keys = memory.NewKeyStore()
	}

	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.rdb = rdb
		st.health = append(st.health, redisStorage.NewHealthCheck(rdb))
		st.nonces = redisStorage.NewNonceStore(rdb)
		st.rateLimits = redisStorage.NewRateLimitStore(rdb)
		log.Info().Msg("Redis connected")
	} else {
		st.nonces = memory.NewNonceStore()
		st.rateLimits = memory.NewRateLimitStore()
	}

	if cfg.Lease.Driver == "redis" {
		st.leases = redisStorage.NewLeaseManager(st.rdb, leaseTTL(cfg.Lease))
	} else {
		st.leases = memory.NewLeaseManager()
	}

	return st, nil
}

func leaseTTL(cfg config.LeaseConfig) time.Duration {
	if cfg.TTL <= 0 {
		return 30 * time.Second
	}
	return cfg.TTL
}
