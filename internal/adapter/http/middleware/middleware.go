package middleware

import (
	"net/http"
	"time"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxIdentity  = "identity"
	CtxRole      = "role"
	CtxRequestID = "request_id"
)

// RequestID assigns a request id to every request and echoes it back in the
// X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// JWTAuth creates a middleware that validates bearer tokens and exposes the
// caller's identity and role on the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxIdentity, claims.Identity)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// Identity returns the authenticated identity from the context.
func Identity(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Role returns the authenticated role from the context.
func Role(c *gin.Context) (domain.Role, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	r, ok := v.(domain.Role)
	return r, ok
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

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
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
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
