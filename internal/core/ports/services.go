package ports

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"offline-payment-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService seals secrets at rest with AES-256-GCM.
type EncryptionService interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// IdentityService owns local keypairs. Private keys never leave it.
type IdentityService interface {
	GetOrCreate(ctx context.Context, session domain.Session) (*domain.Identity, error)
	Sign(ctx context.Context, session domain.Session, msg []byte) ([]byte, error)
	Verify(pub ed25519.PublicKey, msg, sig []byte) bool
}

// SignatureService signs and verifies handshake messages over their
// canonical byte form.
type SignatureService interface {
	CanonicalRequest(r *domain.PaymentRequest) []byte
	CanonicalReceipt(r *domain.PaymentReceipt) []byte
	SignRequest(ctx context.Context, session domain.Session, r *domain.PaymentRequest) error
	VerifyRequest(r *domain.PaymentRequest) domain.Verification
	SignReceipt(ctx context.Context, session domain.Session, r *domain.PaymentReceipt) error
	VerifyReceipt(r *domain.PaymentReceipt) domain.Verification
}

// HandshakeCodec maps messages to and from the transport string.
type HandshakeCodec interface {
	Encode(msg domain.Message) (string, error)
	Decode(raw string) domain.Message
	RenderQR(encoded string, size int) ([]byte, error)
}

// TokenService handles device session tokens.
type TokenService interface {
	Generate(identityID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	IdentityID string
}

// NonceStore remembers consumed request nonces until the request expires.
type NonceStore interface {
	// CheckAndSet atomically records the nonce for issuer until expiresAt.
	// Returns true if the nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, issuer string, nonce string, expiresAt time.Time) (bool, error)
}

// LeaseManager serializes financial mutations per identity.
type LeaseManager interface {
	// Acquire blocks until the lease is held or ctx is done.
	Acquire(ctx context.Context, identityID string) (Lease, error)
}

// Lease is an exclusive hold on one identity's journal and balances.
type Lease interface {
	Release(ctx context.Context) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// ErrUpstreamRejected is returned by an UpstreamClient when the upstream
// ledger explicitly refuses a submission. Retrying will not help.
var ErrUpstreamRejected = errors.New("upstream rejected submission")

// UpstreamClient submits settled intents to the upstream ledger.
type UpstreamClient interface {
	Submit(ctx context.Context, sub UpstreamSubmission) error
}

// UpstreamSubmission is the wire body sent upstream.
type UpstreamSubmission struct {
	Payload   []byte    `json:"payload"` // base64 in JSON
	Signature string    `json:"signature"`
	PublicKey string    `json:"publicKey"`
	Nonce     string    `json:"nonce"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// ExecutionPlan describes one logical payment for the executor.
type ExecutionPlan struct {
	Draft                    domain.LedgerEntry
	DeductAmount             int64
	ConsumesOfflineAllowance bool
	// Snapshot is read under the lease when nil.
	Snapshot *domain.Account
	Proof    []byte
	// Guard runs under the lease after the funds check and before anything
	// is journaled, and again when the entry turns out to be recorded already.
	// An error aborts the plan with nothing written.
	Guard func(ctx context.Context) error
}

// TransactionExecutor applies a plan all-or-nothing.
type TransactionExecutor interface {
	Execute(ctx context.Context, session domain.Session, plan ExecutionPlan) (*domain.LedgerEntry, error)
}

// JournalService is the state machine over the write-ahead journal.
type JournalService interface {
	Append(ctx context.Context, session domain.Session, intent domain.JournalIntent) (uuid.UUID, error)
	MarkApplied(ctx context.Context, journalID uuid.UUID) error
	MarkCommitted(ctx context.Context, journalID uuid.UUID) error
	MarkRolledBack(ctx context.Context, journalID uuid.UUID) error
	ScanIncomplete(ctx context.Context, session domain.Session) ([]domain.JournalEntry, error)
	// IncompleteIdentities lists every identity with a pending or applied entry.
	IncompleteIdentities(ctx context.Context) ([]string, error)
	Get(ctx context.Context, journalID uuid.UUID) (*domain.JournalEntry, error)
}

// OfflineWalletService manages the bounded offline pool.
type OfflineWalletService interface {
	State(ctx context.Context, session domain.Session) (*domain.Account, error)
	CanSpend(ctx context.Context, session domain.Session, amount int64) (bool, error)
	Load(ctx context.Context, session domain.Session, amount int64) (*domain.Account, error)
	Unload(ctx context.Context, session domain.Session) (int64, error)
}

// FundingService books money that reached the identity through an online
// channel and is already settled upstream.
type FundingService interface {
	Deposit(ctx context.Context, session domain.Session, in DepositInput) (*domain.LedgerEntry, error)
}

// DepositInput describes one settled incoming transfer.
type DepositInput struct {
	Amount int64
	// Reference is the upstream transfer id; a repeated reference is a no-op.
	Reference string
	Source    string
}

// HandshakeService runs the payee and payer sides of the exchange.
type HandshakeService interface {
	IssueRequest(ctx context.Context, session domain.Session, in IssueRequestInput) (*domain.PaymentRequest, string, error)
	AcceptRequest(ctx context.Context, session domain.Session, in AcceptRequestInput) (*AcceptResult, error)
	ConfirmReceipt(ctx context.Context, session domain.Session, in ConfirmReceiptInput) (*ConfirmResult, error)
}

// IssueRequestInput holds what a payee chooses for a new request.
type IssueRequestInput struct {
	Amount      int64
	IntentLabel string
	IssuerName  string
	TTL         time.Duration // zero means the configured default
}

// AcceptRequestInput is the payer's approval of an encoded request.
type AcceptRequestInput struct {
	Encoded   string
	PayerName string
	// Offline spends from the bounded offline pool.
	Offline bool
}

// AcceptResult is returned to the payer.
type AcceptResult struct {
	Receipt *domain.PaymentReceipt
	Encoded string
	Entry   *domain.LedgerEntry
}

// ConfirmReceiptInput is the payee's check of an encoded receipt.
type ConfirmReceiptInput struct {
	Encoded string
	Credit  bool
}

// ConfirmResult is returned to the payee.
type ConfirmResult struct {
	Receipt *domain.PaymentReceipt
	Entry   *domain.LedgerEntry // nil unless credited
}

// ReportingService serves read-only views of the local books.
type ReportingService interface {
	ListTransactions(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	GetAccount(ctx context.Context, session domain.Session) (*domain.Account, error)
	// Summary aggregates the ledger over period: day, week, month or all.
	Summary(ctx context.Context, session domain.Session, period string) (*LedgerStats, error)
}

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	IdentityID string      `json:"identity_id"`
	Scanned    int         `json:"scanned"`
	Recovered  int         `json:"recovered"`
	Discarded  int         `json:"discarded"`
	Failed     int         `json:"failed"`
	Unresolved []uuid.UUID `json:"unresolved,omitempty"`
}

// RecoveryRunner resolves an identity's incomplete journal entries.
type RecoveryRunner interface {
	Run(ctx context.Context, session domain.Session) (RecoveryReport, error)
}
