package handler

import (
	"offline-payment-engine/internal/adapter/http/middleware"
	"offline-payment-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IdentitySvc    ports.IdentityService
	HandshakeSvc   ports.HandshakeService
	Codec          ports.HandshakeCodec
	QRSize         int
	OfflineSvc     ports.OfflineWalletService
	FundingSvc     ports.FundingService
	ReportingSvc   ports.ReportingService
	JournalSvc     ports.JournalService
	Recovery       ports.RecoveryRunner // nil = no on-demand recovery route
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(64 << 10))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Every API route acts on the identity named by the bearer token.
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	if deps.AuditSvc != nil {
		v1.Use(middleware.AuditLog(deps.AuditSvc))
	}

	identityHandler := NewIdentityHandler(deps.IdentitySvc)
	v1.GET("/identity", rl("read"), identityHandler.Get)

	handshakeHandler := NewHandshakeHandler(deps.HandshakeSvc, deps.Codec, deps.QRSize)
	v1.POST("/requests", rl("handshake"), handshakeHandler.IssueRequest)
	v1.POST("/requests/accept", rl("handshake"), handshakeHandler.AcceptRequest)
	v1.POST("/receipts/confirm", rl("handshake"), handshakeHandler.ConfirmReceipt)

	walletHandler := NewWalletHandler(deps.ReportingSvc, deps.OfflineSvc, deps.FundingSvc)
	wallet := v1.Group("/wallet")
	{
		wallet.GET("", rl("read"), walletHandler.Get)
		wallet.POST("/deposit", rl("wallet"), walletHandler.Deposit)
		wallet.POST("/offline/load", rl("wallet"), walletHandler.LoadOffline)
		wallet.POST("/offline/unload", rl("wallet"), walletHandler.UnloadOffline)
	}

	transactionHandler := NewTransactionHandler(deps.ReportingSvc)
	transactions := v1.Group("/transactions")
	{
		transactions.GET("", rl("read"), transactionHandler.List)
		transactions.GET("/summary", rl("read"), transactionHandler.Summary)
	}

	journalHandler := NewJournalHandler(deps.JournalSvc, deps.Recovery)
	journal := v1.Group("/journal")
	{
		journal.GET("/incomplete", rl("read"), journalHandler.ListIncomplete)
		if deps.Recovery != nil {
			journal.POST("/recover", rl("journal"), journalHandler.Recover)
		}
	}

	return r
}
