package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
)

// canonicalTimeLayout is RFC 3339 with fixed millisecond precision.
const canonicalTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Ed25519SignatureService implements ports.SignatureService.
type Ed25519SignatureService struct {
	identities ports.IdentityService
}

// NewEd25519SignatureService creates a new signature service.
func NewEd25519SignatureService(identities ports.IdentityService) *Ed25519SignatureService {
	return &Ed25519SignatureService{identities: identities}
}

// canonicalWriter emits fields as name=<len>:<value> joined by '|'.
// The length prefix keeps values containing '|' or '=' unambiguous.
type canonicalWriter struct {
	buf bytes.Buffer
}

func (w *canonicalWriter) field(name, value string) {
	if w.buf.Len() > 0 {
		w.buf.WriteByte('|')
	}
	w.buf.WriteString(name)
	w.buf.WriteByte('=')
	w.buf.WriteString(strconv.Itoa(len(value)))
	w.buf.WriteByte(':')
	w.buf.WriteString(value)
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(canonicalTimeLayout)
}

func writeRequestFields(w *canonicalWriter, u domain.UnsignedRequest) {
	w.field("version", strconv.Itoa(u.Version))
	w.field("issuerAddress", u.IssuerAddress)
	w.field("issuerName", u.IssuerName)
	w.field("amount", strconv.FormatInt(u.Amount, 10))
	w.field("intentLabel", u.IntentLabel)
	w.field("nonce", u.Nonce)
	w.field("issuedAt", canonicalTime(u.IssuedAt))
	w.field("expiresAt", canonicalTime(u.ExpiresAt))
	w.field("issuerPubKey", u.IssuerPubKey)
}

// CanonicalRequest returns the signed byte form of a request: every field
// except the signature, in fixed order.
func (s *Ed25519SignatureService) CanonicalRequest(r *domain.PaymentRequest) []byte {
	w := &canonicalWriter{}
	w.field("type", string(domain.MessageKindRequest))
	writeRequestFields(w, domain.ToUnsigned(*r))
	return w.buf.Bytes()
}

// CanonicalReceipt returns the signed byte form of a receipt: the original
// request, the issuer signature, and the payer fields, excluding the payer
// signature.
func (s *Ed25519SignatureService) CanonicalReceipt(r *domain.PaymentReceipt) []byte {
	w := &canonicalWriter{}
	w.field("type", string(domain.MessageKindReceipt))
	writeRequestFields(w, r.OriginalRequest)
	w.field("issuerSignature", r.IssuerSignature)
	w.field("payerAddress", r.PayerAddress)
	w.field("payerName", r.PayerName)
	w.field("payerPubKey", r.PayerPubKey)
	w.field("approvedAt", canonicalTime(r.ApprovedAt))
	return w.buf.Bytes()
}

// SignRequest fills r.Signature. r.IssuerPubKey must belong to the session.
func (s *Ed25519SignatureService) SignRequest(ctx context.Context, session domain.Session, r *domain.PaymentRequest) error {
	if err := s.checkOwnKey(ctx, session, r.IssuerPubKey); err != nil {
		return err
	}
	sig, err := s.identities.Sign(ctx, session, s.CanonicalRequest(r))
	if err != nil {
		return err
	}
	r.Signature = hex.EncodeToString(sig)
	return nil
}

// SignReceipt fills r.PayerSignature. r.PayerPubKey must belong to the session.
func (s *Ed25519SignatureService) SignReceipt(ctx context.Context, session domain.Session, r *domain.PaymentReceipt) error {
	if err := s.checkOwnKey(ctx, session, r.PayerPubKey); err != nil {
		return err
	}
	sig, err := s.identities.Sign(ctx, session, s.CanonicalReceipt(r))
	if err != nil {
		return err
	}
	r.PayerSignature = hex.EncodeToString(sig)
	return nil
}

// VerifyRequest checks the issuer signature. It never panics.
func (s *Ed25519SignatureService) VerifyRequest(r *domain.PaymentRequest) domain.Verification {
	if r == nil {
		return domain.Rejected(domain.ReasonMalformedPayload)
	}
	pub, sig, ok := decodeKeyAndSig(r.IssuerPubKey, r.Signature)
	if !ok {
		return domain.Rejected(domain.ReasonMalformedPayload)
	}
	if !s.identities.Verify(pub, s.CanonicalRequest(r), sig) {
		return domain.Rejected(domain.ReasonBadSignature)
	}
	return domain.Verified()
}

// VerifyReceipt checks both the carried issuer signature and the payer
// signature. It never panics.
func (s *Ed25519SignatureService) VerifyReceipt(r *domain.PaymentReceipt) domain.Verification {
	if r == nil {
		return domain.Rejected(domain.ReasonMalformedPayload)
	}
	req := r.Request()
	if v := s.VerifyRequest(&req); !v.Valid {
		return v
	}
	pub, sig, ok := decodeKeyAndSig(r.PayerPubKey, r.PayerSignature)
	if !ok {
		return domain.Rejected(domain.ReasonMalformedPayload)
	}
	if !s.identities.Verify(pub, s.CanonicalReceipt(r), sig) {
		return domain.Rejected(domain.ReasonBadSignature)
	}
	return domain.Verified()
}

func (s *Ed25519SignatureService) checkOwnKey(ctx context.Context, session domain.Session, pubHex string) error {
	id, err := s.identities.GetOrCreate(ctx, session)
	if err != nil {
		return err
	}
	if id.PublicKeyHex() != pubHex {
		return apperror.Validation(fmt.Sprintf("public key does not belong to identity %s", session.IdentityID))
	}
	return nil
}

func decodeKeyAndSig(pubHex, sigHex string) (ed25519.PublicKey, []byte, bool) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, nil, false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, nil, false
	}
	return pub, sig, true
}
