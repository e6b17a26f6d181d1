package domain

import "time"

// ProtocolVersion is the handshake payload version written by this build.
const ProtocolVersion = 1

// PaymentRequest is issued and signed by the payee. Signature covers every
// other field.
type PaymentRequest struct {
	Version       int       `json:"version" validate:"required,gte=1"`
	IssuerAddress string    `json:"issuerAddress" validate:"required,max=128"`
	IssuerName    string    `json:"issuerName" validate:"max=128"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	IntentLabel   string    `json:"intentLabel" validate:"max=256"`
	Nonce         string    `json:"nonce" validate:"required,max=128"`
	IssuedAt      time.Time `json:"issuedAt" validate:"required"`
	ExpiresAt     time.Time `json:"expiresAt" validate:"required,gtfield=IssuedAt"`
	IssuerPubKey  string    `json:"issuerPubKey" validate:"required,hexadecimal,len=64"`
	Signature     string    `json:"signature,omitempty" validate:"required,hexadecimal,len=128"`
}

// Unsigned returns a copy of the request with the signature stripped.
func (r PaymentRequest) Unsigned() PaymentRequest {
	r.Signature = ""
	return r
}

// IsExpired reports whether the request's self-declared expiry has passed.
func (r *PaymentRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// UnsignedRequest is a PaymentRequest as carried inside a receipt. Its
// validation rules omit the signature, which travels separately.
type UnsignedRequest struct {
	Version       int       `json:"version" validate:"required,gte=1"`
	IssuerAddress string    `json:"issuerAddress" validate:"required,max=128"`
	IssuerName    string    `json:"issuerName" validate:"max=128"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	IntentLabel   string    `json:"intentLabel" validate:"max=256"`
	Nonce         string    `json:"nonce" validate:"required,max=128"`
	IssuedAt      time.Time `json:"issuedAt" validate:"required"`
	ExpiresAt     time.Time `json:"expiresAt" validate:"required,gtfield=IssuedAt"`
	IssuerPubKey  string    `json:"issuerPubKey" validate:"required,hexadecimal,len=64"`
}

// ToUnsigned drops the signature from a request.
func ToUnsigned(r PaymentRequest) UnsignedRequest {
	return UnsignedRequest{
		Version:       r.Version,
		IssuerAddress: r.IssuerAddress,
		IssuerName:    r.IssuerName,
		Amount:        r.Amount,
		IntentLabel:   r.IntentLabel,
		Nonce:         r.Nonce,
		IssuedAt:      r.IssuedAt,
		ExpiresAt:     r.ExpiresAt,
		IssuerPubKey:  r.IssuerPubKey,
	}
}

// WithSignature rebuilds the signed request.
func (u UnsignedRequest) WithSignature(sig string) PaymentRequest {
	return PaymentRequest{
		Version:       u.Version,
		IssuerAddress: u.IssuerAddress,
		IssuerName:    u.IssuerName,
		Amount:        u.Amount,
		IntentLabel:   u.IntentLabel,
		Nonce:         u.Nonce,
		IssuedAt:      u.IssuedAt,
		ExpiresAt:     u.ExpiresAt,
		IssuerPubKey:  u.IssuerPubKey,
		Signature:     sig,
	}
}

// PaymentReceipt is the payer's counter-signed acceptance of a request.
// A receipt that verifies is proof that both parties committed.
type PaymentReceipt struct {
	OriginalRequest UnsignedRequest `json:"originalRequest"`
	IssuerSignature string          `json:"issuerSignature" validate:"required,hexadecimal,len=128"`
	PayerAddress    string          `json:"payerAddress" validate:"required,max=128"`
	PayerName       string          `json:"payerName" validate:"max=128"`
	PayerPubKey     string          `json:"payerPubKey" validate:"required,hexadecimal,len=64"`
	PayerSignature  string          `json:"payerSignature,omitempty" validate:"required,hexadecimal,len=128"`
	ApprovedAt      time.Time       `json:"approvedAt" validate:"required"`
}

// Request returns the original signed request carried in the receipt.
func (r *PaymentReceipt) Request() PaymentRequest {
	return r.OriginalRequest.WithSignature(r.IssuerSignature)
}

// MessageKind discriminates decoded handshake messages.
type MessageKind string

const (
	MessageKindUnknown MessageKind = "unknown"
	MessageKindRequest MessageKind = "payment_request"
	MessageKindReceipt MessageKind = "payment_receipt"
)

// Message is the tagged union produced by the handshake decoder. Exactly one
// of Request/Receipt is set for the matching Kind; both are nil for unknown.
type Message struct {
	Kind    MessageKind
	Request *PaymentRequest
	Receipt *PaymentReceipt
}

// RequestMessage wraps a request.
func RequestMessage(r *PaymentRequest) Message {
	return Message{Kind: MessageKindRequest, Request: r}
}

// ReceiptMessage wraps a receipt.
func ReceiptMessage(r *PaymentReceipt) Message {
	return Message{Kind: MessageKindReceipt, Receipt: r}
}

// UnknownMessage is returned for anything that is not a well-formed handshake payload.
func UnknownMessage() Message {
	return Message{Kind: MessageKindUnknown}
}

// VerificationReason explains a failed verification.
type VerificationReason string

const (
	ReasonNone             VerificationReason = ""
	ReasonBadSignature     VerificationReason = "BadSignature"
	ReasonMalformedPayload VerificationReason = "MalformedPayload"
)

// Verification is the typed outcome of a signature check.
type Verification struct {
	Valid  bool               `json:"valid"`
	Reason VerificationReason `json:"reason,omitempty"`
}

// Verified is a successful verification.
func Verified() Verification { return Verification{Valid: true} }

// Rejected is a failed verification with a reason.
func Rejected(reason VerificationReason) Verification {
	return Verification{Valid: false, Reason: reason}
}
