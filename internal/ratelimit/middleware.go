package ratelimit

import (
	"net/http"

	"callrelay/internal/auth"
	"callrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware caps request rates per authenticated user, falling back to
// the client IP before authentication. Limiter errors fail open: signaling
// availability wins over throttling precision.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := auth.UserID(c.Request.Context())
		if err != nil || key == "" {
			key = c.ClientIP()
		}

		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
