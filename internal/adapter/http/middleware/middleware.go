package middleware

import (
	"net/http"
	"strings"
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/pkg/apperror"
	"offline-payment-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries a caller-supplied or generated request ID.
	HeaderRequestID = "X-Request-ID"

	// CtxSession holds the domain.Session selected by the bearer token.
	CtxSession = "session"

	maxRequestIDLen = 64
)

// RequestID reuses a sane X-Request-ID header or generates a new one and
// exposes it to handlers and the response envelope.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, " \r\n\t") {
			id = uuid.New().String()
		}
		c.Set(response.CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer token and binds the session it names.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(authHeader[7:])
		if err != nil {
			log.Debug().Err(err).Str("client_ip", c.ClientIP()).Msg("token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		session := domain.NewSession(claims.IdentityID)
		if !session.Valid() {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		c.Set(CtxSession, session)
		c.Next()
	}
}

// SessionFrom returns the session bound by JWTAuth.
func SessionFrom(c *gin.Context) (domain.Session, bool) {
	v, exists := c.Get(CtxSession)
	if !exists {
		return domain.Session{}, false
	}
	s, ok := v.(domain.Session)
	return s, ok && s.Valid()
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if session, ok := SessionFrom(c); ok {
			event = event.Str("identity_id", session.IdentityID)
		}
		if code := c.GetString(response.CtxErrorCode); code != "" {
			event = event.Str("error_code", code)
		}

		event.
			Str("request_id", c.GetString(response.CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
