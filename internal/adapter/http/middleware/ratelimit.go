package middleware

import (
	"fmt"
	"strconv"
	"time"

	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a fixed-window rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the rate limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"auth_register": {Limit: 5, Window: time.Hour},
		"auth_login":    {Limit: 10, Window: time.Minute},
		"wallets":       {Limit: 60, Window: time.Minute},
		"transfers":     {Limit: 30, Window: time.Minute},
		"accounts":      {Limit: 60, Window: time.Minute},
		"status":        {Limit: 120, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Store errors fail open: an unreachable counter never blocks traffic.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		count, err := store.Increment(c.Request.Context(), key, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		remaining := rule.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		resetAt := windowReset(rule.Window)

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(rule.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if count > rule.Limit {
			retryAfter := resetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// windowReset returns the Unix timestamp at which the current fixed window
// rolls over. Window boundaries match the counter store's keying.
func windowReset(window time.Duration) int64 {
	sec := int64(window.Seconds())
	now := time.Now().Unix()
	return (now/sec + 1) * sec
}

// extractIdentifier determines the rate limit key source.
func extractIdentifier(c *gin.Context) string {
	if identity, ok := Identity(c); ok && identity != "" {
		return identity
	}
	return c.ClientIP()
}
