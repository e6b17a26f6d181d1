package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const nonceBytes = 16

// entryNamespace scopes the deterministic ledger entry ids derived from a
// request's issuer key and nonce.
var entryNamespace = uuid.MustParse("7d1c3f4e-2b8a-4f6d-9e0c-5a1b2c3d4e5f")

// HandshakeConfig bounds request lifetimes.
type HandshakeConfig struct {
	RequestTTL    time.Duration
	MaxRequestTTL time.Duration
}

// HandshakeServiceImpl implements ports.HandshakeService.
type HandshakeServiceImpl struct {
	identities ports.IdentityService
	signatures ports.SignatureService
	codec      ports.HandshakeCodec
	nonces     ports.NonceStore
	executor   ports.TransactionExecutor
	wallet     ports.OfflineWalletService
	auditSvc   ports.AuditService
	cfg        HandshakeConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewHandshakeService creates a new HandshakeServiceImpl.
func NewHandshakeService(
	identities ports.IdentityService,
	signatures ports.SignatureService,
	codec ports.HandshakeCodec,
	nonces ports.NonceStore,
	executor ports.TransactionExecutor,
	wallet ports.OfflineWalletService,
	auditSvc ports.AuditService,
	cfg HandshakeConfig,
	log zerolog.Logger,
) *HandshakeServiceImpl {
	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = 5 * time.Minute
	}
	if cfg.MaxRequestTTL < cfg.RequestTTL {
		cfg.MaxRequestTTL = cfg.RequestTTL
	}
	return &HandshakeServiceImpl{
		identities: identities,
		signatures: signatures,
		codec:      codec,
		nonces:     nonces,
		executor:   executor,
		wallet:     wallet,
		auditSvc:   auditSvc,
		cfg:        cfg,
		log:        log.With().Str("component", "handshake").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssueRequest creates, signs and encodes a payment request on the payee side.
func (s *HandshakeServiceImpl) IssueRequest(ctx context.Context, session domain.Session, in ports.IssueRequestInput) (*domain.PaymentRequest, string, error) {
	if in.Amount <= 0 {
		return nil, "", apperror.ErrInvalidAmount()
	}
	if len(in.IssuerName) > 128 || len(in.IntentLabel) > 256 {
		return nil, "", apperror.Validation("issuer name or intent label too long")
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = s.cfg.RequestTTL
	}
	if ttl < 0 || ttl > s.cfg.MaxRequestTTL {
		return nil, "", apperror.Validation(fmt.Sprintf("ttl must be between 0 and %s", s.cfg.MaxRequestTTL))
	}

	identity, err := s.identities.GetOrCreate(ctx, session)
	if err != nil {
		return nil, "", err
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("generate nonce: %w", err))
	}

	issuedAt := s.now().Truncate(time.Millisecond)
	req := &domain.PaymentRequest{
		Version:       domain.ProtocolVersion,
		IssuerAddress: identity.Address,
		IssuerName:    in.IssuerName,
		Amount:        in.Amount,
		IntentLabel:   in.IntentLabel,
		Nonce:         nonce,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(ttl),
		IssuerPubKey:  identity.PublicKeyHex(),
	}
	if err := s.signatures.SignRequest(ctx, session, req); err != nil {
		return nil, "", err
	}
	encoded, err := s.codec.Encode(domain.RequestMessage(req))
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("encode request: %w", err))
	}

	s.log.Info().
		Str("identity_id", session.IdentityID).
		Str("nonce", nonce).
		Int64("amount", in.Amount).
		Time("expires_at", req.ExpiresAt).
		Msg("payment request issued")

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionIssueRequest,
		ResourceType: "payment_request",
		ResourceID:   nonce,
		Details:      fmt.Sprintf(`{"amount":%d}`, in.Amount),
	})
	return req, encoded, nil
}

// AcceptRequest verifies an encoded request, debits the payer and returns the
// counter-signed receipt.
func (s *HandshakeServiceImpl) AcceptRequest(ctx context.Context, session domain.Session, in ports.AcceptRequestInput) (*ports.AcceptResult, error) {
	msg := s.codec.Decode(in.Encoded)
	if msg.Kind != domain.MessageKindRequest {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("expected payment request, got %s", msg.Kind))
	}
	req := msg.Request
	if req.Version > domain.ProtocolVersion {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("unsupported request version %d", req.Version))
	}
	if err := verificationError(s.signatures.VerifyRequest(req)); err != nil {
		s.log.Warn().Str("nonce", req.Nonce).Err(err).Msg("request verification failed")
		return nil, err
	}
	if req.IsExpired(s.now()) {
		return nil, apperror.ErrExpired()
	}

	payer, err := s.identities.GetOrCreate(ctx, session)
	if err != nil {
		return nil, err
	}
	if req.IssuerPubKey == payer.PublicKeyHex() {
		return nil, apperror.Validation("cannot accept a request issued by this identity")
	}

	// Cheap pre-check so a short balance fails before anything is signed. The
	// executor checks again under the lease.
	if err := s.precheckFunds(ctx, session, req.Amount, in.Offline); err != nil {
		return nil, err
	}

	receipt := &domain.PaymentReceipt{
		OriginalRequest: domain.ToUnsigned(*req),
		IssuerSignature: req.Signature,
		PayerAddress:    payer.Address,
		PayerName:       in.PayerName,
		PayerPubKey:     payer.PublicKeyHex(),
		ApprovedAt:      s.now().Truncate(time.Millisecond),
	}
	if err := s.signatures.SignReceipt(ctx, session, receipt); err != nil {
		return nil, err
	}
	encoded, err := s.codec.Encode(domain.ReceiptMessage(receipt))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode receipt: %w", err))
	}

	entry, err := s.executor.Execute(ctx, session, ports.ExecutionPlan{
		Draft: domain.LedgerEntry{
			ID:                  entryID(domain.DirectionDebit, req),
			CounterpartyAddress: req.IssuerAddress,
			Direction:           domain.DirectionDebit,
			Nonce:               req.Nonce,
			IntentLabel:         req.IntentLabel,
		},
		DeductAmount:             req.Amount,
		ConsumesOfflineAllowance: in.Offline,
		Proof:                    []byte(encoded),
		// The nonce is consumed under the lease, once funds are confirmed.
		Guard: func(ctx context.Context) error {
			return s.consumeNonce(ctx, req)
		},
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionAcceptRequest,
		ResourceType: "ledger_entry",
		ResourceID:   entry.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"offline":%t,"counterparty":%q}`, req.Amount, in.Offline, req.IssuerAddress),
	})
	return &ports.AcceptResult{Receipt: receipt, Encoded: encoded, Entry: entry}, nil
}

// ConfirmReceipt verifies a receipt against a request this identity issued and
// optionally books the credit. Crediting the same receipt twice is a no-op.
func (s *HandshakeServiceImpl) ConfirmReceipt(ctx context.Context, session domain.Session, in ports.ConfirmReceiptInput) (*ports.ConfirmResult, error) {
	msg := s.codec.Decode(in.Encoded)
	if msg.Kind != domain.MessageKindReceipt {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("expected payment receipt, got %s", msg.Kind))
	}
	receipt := msg.Receipt
	if err := verificationError(s.signatures.VerifyReceipt(receipt)); err != nil {
		s.log.Warn().Str("nonce", receipt.OriginalRequest.Nonce).Err(err).Msg("receipt verification failed")
		return nil, err
	}

	payee, err := s.identities.GetOrCreate(ctx, session)
	if err != nil {
		return nil, err
	}
	if receipt.OriginalRequest.IssuerPubKey != payee.PublicKeyHex() {
		return nil, apperror.ErrReceiptNotForTerminal()
	}
	if receipt.ApprovedAt.After(receipt.OriginalRequest.ExpiresAt) {
		return nil, apperror.ErrExpired()
	}

	result := &ports.ConfirmResult{Receipt: receipt}
	if in.Credit {
		req := receipt.Request()
		entry, err := s.executor.Execute(ctx, session, ports.ExecutionPlan{
			Draft: domain.LedgerEntry{
				ID:                  entryID(domain.DirectionCredit, &req),
				CounterpartyAddress: receipt.PayerAddress,
				Amount:              req.Amount,
				Direction:           domain.DirectionCredit,
				Mode:                domain.LedgerModeOffline,
				Nonce:               req.Nonce,
				IntentLabel:         req.IntentLabel,
			},
			Proof: []byte(in.Encoded),
		})
		if err != nil {
			return nil, err
		}
		result.Entry = entry
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		IdentityID:   session.IdentityID,
		Action:       domain.AuditActionConfirmReceipt,
		ResourceType: "payment_receipt",
		ResourceID:   receipt.OriginalRequest.Nonce,
		Details:      fmt.Sprintf(`{"credited":%t,"payer":%q}`, in.Credit, receipt.PayerAddress),
	})
	return result, nil
}

func (s *HandshakeServiceImpl) consumeNonce(ctx context.Context, req *domain.PaymentRequest) error {
	fresh, err := s.nonces.CheckAndSet(ctx, req.IssuerPubKey, req.Nonce, req.ExpiresAt)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("nonce check: %w", err))
	}
	if !fresh {
		s.log.Warn().Str("nonce", req.Nonce).Str("issuer", req.IssuerAddress).Msg("nonce replay rejected")
		return apperror.ErrNonceReplayed()
	}
	return nil
}

func (s *HandshakeServiceImpl) precheckFunds(ctx context.Context, session domain.Session, amount int64, offline bool) error {
	acc, err := s.wallet.State(ctx, session)
	if err != nil {
		return err
	}
	if offline {
		if !acc.Offline.CanSpend(amount) {
			return apperror.ErrInsufficientOfflineAllowance()
		}
		return nil
	}
	if acc.Available() < amount {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

func verificationError(v domain.Verification) error {
	if v.Valid {
		return nil
	}
	if v.Reason == domain.ReasonMalformedPayload {
		return apperror.ErrMalformedPayload(nil)
	}
	return apperror.ErrBadSignature()
}

// entryID derives the ledger entry id for one side of a request, so retries
// of the same handshake land on the same entry.
func entryID(direction domain.Direction, req *domain.PaymentRequest) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte(string(direction)+"|"+req.IssuerPubKey+"|"+req.Nonce))
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
