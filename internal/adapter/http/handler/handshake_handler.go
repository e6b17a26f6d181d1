package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"offline-payment-engine/internal/adapter/http/dto"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// HandshakeHandler handles the payee and payer sides of the exchange.
type HandshakeHandler struct {
	handshakeSvc ports.HandshakeService
	codec        ports.HandshakeCodec
	qrSize       int
}

// NewHandshakeHandler creates a new HandshakeHandler. qrSize is the PNG edge
// length in pixels for optional QR renderings.
func NewHandshakeHandler(handshakeSvc ports.HandshakeService, codec ports.HandshakeCodec, qrSize int) *HandshakeHandler {
	return &HandshakeHandler{handshakeSvc: handshakeSvc, codec: codec, qrSize: qrSize}
}

// IssueRequest handles POST /api/v1/requests.
func (h *HandshakeHandler) IssueRequest(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.IssueRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	issued, encoded, err := h.handshakeSvc.IssueRequest(c.Request.Context(), session, ports.IssueRequestInput{
		Amount:      req.Amount,
		IntentLabel: strings.TrimSpace(req.IntentLabel),
		IssuerName:  strings.TrimSpace(req.IssuerName),
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.IssueRequestResponse{
		Nonce:     issued.Nonce,
		Amount:    issued.Amount,
		ExpiresAt: issued.ExpiresAt.UTC().Format(time.RFC3339),
		Encoded:   encoded,
	}
	if req.QR {
		if resp.QRPNG, err = h.renderQR(encoded); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Created(c, resp)
}

// AcceptRequest handles POST /api/v1/requests/accept. The debit is final
// locally once this returns; upstream settlement follows asynchronously.
func (h *HandshakeHandler) AcceptRequest(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.AcceptRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.handshakeSvc.AcceptRequest(c.Request.Context(), session, ports.AcceptRequestInput{
		Encoded:   req.Encoded,
		PayerName: strings.TrimSpace(req.PayerName),
		Offline:   req.Offline,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.AcceptRequestResponse{
		Encoded:     result.Encoded,
		Transaction: dto.FromLedgerEntry(result.Entry),
	}
	if req.QR {
		if resp.QRPNG, err = h.renderQR(result.Encoded); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Created(c, resp)
}

// ConfirmReceipt handles POST /api/v1/receipts/confirm.
func (h *HandshakeHandler) ConfirmReceipt(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.ConfirmReceiptBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.handshakeSvc.ConfirmReceipt(c.Request.Context(), session, ports.ConfirmReceiptInput{
		Encoded: req.Encoded,
		Credit:  req.Credit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	receipt := result.Receipt
	resp := dto.ConfirmReceiptResponse{
		Nonce:        receipt.OriginalRequest.Nonce,
		Amount:       receipt.OriginalRequest.Amount,
		PayerAddress: receipt.PayerAddress,
		PayerName:    receipt.PayerName,
		ApprovedAt:   receipt.ApprovedAt.UTC().Format(time.RFC3339),
	}
	if result.Entry != nil {
		tx := dto.FromLedgerEntry(result.Entry)
		resp.Transaction = &tx
	}
	response.OK(c, resp)
}

func (h *HandshakeHandler) renderQR(encoded string) (string, error) {
	png, err := h.codec.RenderQR(encoded, h.qrSize)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("qr: %w", err))
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
