package handler

import (
	"offline-payment-engine/internal/adapter/http/middleware"
	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/pkg/apperror"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// requireSession writes AUTH_003 and returns false when no session is bound.
func requireSession(c *gin.Context) (domain.Session, bool) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Session{}, false
	}
	return session, true
}
