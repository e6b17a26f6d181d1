package handler

import (
	"offline-payment-engine/internal/adapter/http/dto"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles balance, deposit and offline pool endpoints.
type WalletHandler struct {
	reportingSvc ports.ReportingService
	offlineSvc   ports.OfflineWalletService
	fundingSvc   ports.FundingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(reportingSvc ports.ReportingService, offlineSvc ports.OfflineWalletService, fundingSvc ports.FundingService) *WalletHandler {
	return &WalletHandler{reportingSvc: reportingSvc, offlineSvc: offlineSvc, fundingSvc: fundingSvc}
}

// Get handles GET /api/v1/wallet.
func (h *WalletHandler) Get(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	account, err := h.reportingSvc.GetAccount(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.DepositBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.fundingSvc.Deposit(c.Request.Context(), session, ports.DepositInput{
		Amount:    req.Amount,
		Reference: req.Reference,
		Source:    req.Source,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromLedgerEntry(entry))
}

// LoadOffline handles POST /api/v1/wallet/offline/load.
func (h *WalletHandler) LoadOffline(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.LoadOfflineBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.offlineSvc.Load(c.Request.Context(), session, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// UnloadOffline handles POST /api/v1/wallet/offline/unload.
func (h *WalletHandler) UnloadOffline(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	released, err := h.offlineSvc.Unload(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.UnloadResponse{Released: released})
}
