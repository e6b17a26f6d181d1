package middleware

import (
	"encoding/json"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditLog attaches the client address to the request context so that
// audit entries written by the services carry it. Handshake calls that end
// in a 4xx are audited here as rejections; successful ones are audited by
// the services themselves.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(domain.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()

		status := c.Writer.Status()
		if status < 400 || status >= 500 {
			return
		}
		resourceType := mapPathToResource(c.Request.URL.Path, c.Request.Method)
		if resourceType == "" {
			return
		}

		entry := &domain.AuditLog{
			Action:       domain.AuditActionRejected,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
		}
		if session, ok := SessionFrom(c); ok {
			entry.IdentityID = session.IdentityID
		}
		details, _ := json.Marshal(map[string]interface{}{
			"path":       c.Request.URL.Path,
			"status":     status,
			"error_code": c.GetString(response.CtxErrorCode),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapPathToResource(path, method string) string {
	if method != "POST" {
		return ""
	}
	switch path {
	case "/api/v1/requests/accept":
		return "payment_request"
	case "/api/v1/receipts/confirm":
		return "payment_receipt"
	}
	return ""
}
