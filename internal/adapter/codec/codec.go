// Package codec converts handshake messages to and from the opaque string
// exchanged between devices over QR or a proximity channel.
//
// Wire form: base64url (no padding) of one flag byte followed by either the
// raw JSON envelope (flag 0) or its gzip compression (flag 1). The envelope is
// {"type": ..., "v": 1, "body": {...}}.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"offline-payment-engine/internal/core/domain"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
)

const (
	envelopeVersion = 1

	flagPlain byte = 0
	flagGzip  byte = 1

	// maxDecodedSize caps decompressed payloads; a receipt is well under 4KB.
	maxDecodedSize = 64 << 10
	// maxEncodedSize caps the transport string before any decoding.
	maxEncodedSize = 16 << 10
)

type envelope struct {
	Type string          `json:"type"`
	V    int             `json:"v"`
	Body json.RawMessage `json:"body"`
}

// HandshakeCodec implements ports.HandshakeCodec.
type HandshakeCodec struct {
	validate *validator.Validate
}

// New creates a HandshakeCodec.
func New() *HandshakeCodec {
	return &HandshakeCodec{validate: validator.New()}
}

// Encode serializes a request or receipt. Unknown messages cannot be encoded.
func (c *HandshakeCodec) Encode(msg domain.Message) (string, error) {
	var body any
	switch msg.Kind {
	case domain.MessageKindRequest:
		if msg.Request == nil {
			return "", fmt.Errorf("request message without request")
		}
		body = msg.Request
	case domain.MessageKindReceipt:
		if msg.Receipt == nil {
			return "", fmt.Errorf("receipt message without receipt")
		}
		body = msg.Receipt
	default:
		return "", fmt.Errorf("cannot encode message of kind %q", msg.Kind)
	}

	rawBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	raw, err := json.Marshal(envelope{Type: string(msg.Kind), V: envelopeVersion, Body: rawBody})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	packed, err := pack(raw)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(packed), nil
}

// Decode parses a transport string. It never fails: anything that is not a
// well-formed request or receipt comes back as an unknown message.
func (c *HandshakeCodec) Decode(raw string) domain.Message {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxEncodedSize {
		return domain.UnknownMessage()
	}
	packed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(packed) < 2 {
		return domain.UnknownMessage()
	}
	data, err := unpack(packed)
	if err != nil {
		return domain.UnknownMessage()
	}

	var env envelope
	if err := strictUnmarshal(data, &env); err != nil || env.V != envelopeVersion {
		return domain.UnknownMessage()
	}

	// The tag alone is not trusted: the body must also have the tagged shape.
	switch domain.MessageKind(env.Type) {
	case domain.MessageKindRequest:
		if req, ok := c.parseRequest(env.Body); ok {
			return domain.RequestMessage(req)
		}
	case domain.MessageKindReceipt:
		if rcpt, ok := c.parseReceipt(env.Body); ok {
			return domain.ReceiptMessage(rcpt)
		}
	}
	return domain.UnknownMessage()
}

// IsPaymentRequest reports whether body has the shape of a signed request.
func (c *HandshakeCodec) IsPaymentRequest(body []byte) bool {
	_, ok := c.parseRequest(body)
	return ok
}

// IsPaymentReceipt reports whether body has the shape of a signed receipt.
func (c *HandshakeCodec) IsPaymentReceipt(body []byte) bool {
	_, ok := c.parseReceipt(body)
	return ok
}

// RenderQR returns a PNG of the encoded payload for the display collaborator.
func (c *HandshakeCodec) RenderQR(encoded string, size int) ([]byte, error) {
	png, err := qrcode.Encode(encoded, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func (c *HandshakeCodec) parseRequest(body []byte) (*domain.PaymentRequest, bool) {
	var req domain.PaymentRequest
	if err := strictUnmarshal(body, &req); err != nil {
		return nil, false
	}
	if err := c.validate.Struct(&req); err != nil {
		return nil, false
	}
	return &req, true
}

func (c *HandshakeCodec) parseReceipt(body []byte) (*domain.PaymentReceipt, bool) {
	var rcpt domain.PaymentReceipt
	if err := strictUnmarshal(body, &rcpt); err != nil {
		return nil, false
	}
	if err := c.validate.Struct(&rcpt); err != nil {
		return nil, false
	}
	return &rcpt, true
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

// pack prefixes the flag byte and gzips when that makes the payload smaller.
func pack(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(flagGzip)
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	if buf.Len() < len(raw)+1 {
		return buf.Bytes(), nil
	}
	return append([]byte{flagPlain}, raw...), nil
}

func unpack(packed []byte) ([]byte, error) {
	switch packed[0] {
	case flagPlain:
		return packed[1:], nil
	case flagGzip:
		zr, err := gzip.NewReader(bytes.NewReader(packed[1:]))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		data, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxDecodedSize {
			return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecodedSize)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown flag byte %d", packed[0])
	}
}
