package handler

import (
	"offline-payment-engine/internal/adapter/http/dto"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// JournalHandler exposes the write-ahead journal for operators.
type JournalHandler struct {
	journalSvc ports.JournalService
	recovery   ports.RecoveryRunner
}

// NewJournalHandler creates a new JournalHandler. recovery may be nil, in
// which case Recover is not routed.
func NewJournalHandler(journalSvc ports.JournalService, recovery ports.RecoveryRunner) *JournalHandler {
	return &JournalHandler{journalSvc: journalSvc, recovery: recovery}
}

// ListIncomplete handles GET /api/v1/journal/incomplete.
func (h *JournalHandler) ListIncomplete(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	entries, err := h.journalSvc.ScanIncomplete(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.JournalEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromJournalEntry(&entries[i]))
	}
	response.OK(c, items)
}

// Recover handles POST /api/v1/journal/recover.
func (h *JournalHandler) Recover(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	report, err := h.recovery.Run(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
