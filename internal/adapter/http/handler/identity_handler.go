package handler

import (
	"offline-payment-engine/internal/adapter/http/dto"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// IdentityHandler exposes the public half of the local keypair.
type IdentityHandler struct {
	identitySvc ports.IdentityService
}

// NewIdentityHandler creates a new IdentityHandler.
func NewIdentityHandler(identitySvc ports.IdentityService) *IdentityHandler {
	return &IdentityHandler{identitySvc: identitySvc}
}

// Get handles GET /api/v1/identity. The keypair is created on first use.
func (h *IdentityHandler) Get(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	identity, err := h.identitySvc.GetOrCreate(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromIdentity(identity))
}
