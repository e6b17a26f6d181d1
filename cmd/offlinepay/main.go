package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offline-payment-engine/config"
	"offline-payment-engine/internal/adapter/codec"
	httpHandler "offline-payment-engine/internal/adapter/http/handler"
	"offline-payment-engine/internal/adapter/upstream"
	"offline-payment-engine/internal/service"
	"offline-payment-engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./config/config.yaml)")
	issueToken := flag.String("issue-token", "", "print a session token for the given identity and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret (OPE_JWT_SECRET) is required")
		os.Exit(1)
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	if *issueToken != "" {
		token, expiry, err := tokenSvc.Generate(*issueToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n# expires %s\n", token, expiry.Format(time.RFC3339))
		return
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("keystore", cfg.Keystore.Driver).
		Str("lease", cfg.Lease.Driver).
		Msg("Starting Offline Payment Engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.Close()

	// Keys are sealed with a KEK derived from the keystore passphrase.
	salt := cfg.Keystore.Salt
	if salt == "" && cfg.Keystore.Driver == "memory" {
		if salt, err = service.NewKeystoreSalt(); err != nil {
			log.Fatal().Err(err).Msg("Failed to generate keystore salt")
		}
	}
	kek, err := service.DeriveKeystoreKey(cfg.Keystore.Passphrase, salt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to derive keystore key")
	}
	encSvc, err := service.NewAESEncryptionService(kek)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Core services
	auditSvc := service.NewAuditService(st.audit, log)
	identities := service.NewIdentityService(st.keys, encSvc, cfg.Identity.AddressDomain, log)
	signatures := service.NewEd25519SignatureService(identities)
	hsCodec := codec.New()
	journalSvc := service.NewJournalService(st.journal, log)
	walletSvc := service.NewOfflineWalletService(st.accounts, st.leases, auditSvc, cfg.Lease.WaitTimeout, log)
	executor := service.NewExecutor(st.accounts, st.ledger, st.outbox, journalSvc, identities, st.leases, cfg.Lease.WaitTimeout, log)
	recovery := service.NewRecoveryService(journalSvc, st.accounts, executor, auditSvc, log)
	handshakeSvc := service.NewHandshakeService(
		identities, signatures, hsCodec, st.nonces, executor, walletSvc, auditSvc,
		service.HandshakeConfig{RequestTTL: cfg.Handshake.RequestTTL, MaxRequestTTL: cfg.Handshake.MaxRequestTTL},
		log,
	)
	reportingSvc := service.NewReportingService(st.ledger, st.accounts)
	fundingSvc := service.NewFundingService(executor, auditSvc, log)

	// Nothing may serve until every journal entry left by a crash is resolved.
	reports, err := recovery.RunAll(ctx, cfg.Identity.Identities)
	for _, r := range reports {
		if len(r.Unresolved) > 0 {
			log.Error().Str("identity_id", r.IdentityID).Int("unresolved", len(r.Unresolved)).Msg("Unresolved journal entries need manual review")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Startup recovery failed")
	}

	// Upstream sync runs beside the API and stops with it.
	var syncDone chan struct{}
	if cfg.Sync.Enabled {
		client := upstream.NewClient(cfg.Sync.Endpoint, nil, cfg.Sync.Timeout, log)
		worker := service.NewSyncWorker(
			service.NewSyncQueue(st.outbox, st.ledger, log),
			journalSvc,
			client,
			service.SyncWorkerConfig{
				Interval:      cfg.Sync.Interval,
				BatchSize:     cfg.Sync.BatchSize,
				RatePerSecond: cfg.Sync.RatePerSecond,
				Timeout:       cfg.Sync.Timeout,
			},
			log,
		)
		syncDone = make(chan struct{})
		go func() {
			defer close(syncDone)
			worker.Run(ctx)
		}()
		log.Info().Str("endpoint", cfg.Sync.Endpoint).Dur("interval", cfg.Sync.Interval).Msg("Sync worker started")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IdentitySvc:    identities,
		HandshakeSvc:   handshakeSvc,
		Codec:          hsCodec,
		QRSize:         cfg.Handshake.QRSize,
		OfflineSvc:     walletSvc,
		FundingSvc:     fundingSvc,
		ReportingSvc:   reportingSvc,
		JournalSvc:     journalSvc,
		Recovery:       recovery,
		TokenSvc:       tokenSvc,
		RateLimitStore: st.rateLimits,
		HealthCheckers: st.health,
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if syncDone != nil {
		<-syncDone
	}
	auditSvc.Wait()

	log.Info().Msg("Server exited")
}
