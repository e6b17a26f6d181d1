package handler

import (
	"strconv"
	"time"

	"offline-payment-engine/internal/adapter/http/dto"
	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves the local ledger.
type TransactionHandler struct {
	reportingSvc ports.ReportingService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reportingSvc ports.ReportingService) *TransactionHandler {
	return &TransactionHandler{reportingSvc: reportingSvc}
}

// List handles GET /api/v1/transactions.
// Filters: status, direction, from and to (unix seconds), page, page_size.
func (h *TransactionHandler) List(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.LedgerListParams{
		IdentityID: session.IdentityID,
		Page:       page,
		PageSize:   pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.LedgerStatus(s)
		switch status {
		case domain.LedgerStatusQueued, domain.LedgerStatusSettled, domain.LedgerStatusFailed:
		default:
			response.Error(c, apperror.Validation("invalid status: must be queued, settled, or failed"))
			return
		}
		params.Status = &status
	}
	if d := c.Query("direction"); d != "" {
		direction := domain.Direction(d)
		if direction != domain.DirectionDebit && direction != domain.DirectionCredit {
			response.Error(c, apperror.Validation("invalid direction: must be debit or credit"))
			return
		}
		params.Direction = &direction
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			t := time.Unix(v, 0).UTC()
			params.From = &t
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			ts := time.Unix(v, 0).UTC()
			params.To = &ts
		}
	}

	entries, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromLedgerPage(entries, total, page, pageSize))
}

// Summary handles GET /api/v1/transactions/summary?period=day|week|month|all.
func (h *TransactionHandler) Summary(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.Summary(c.Request.Context(), session, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromStats(period, stats))
}
