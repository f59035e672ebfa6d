package middleware

import (
	"context"
	"net/http"
	"strconv"

	"dealbroker/internal/redis"
	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (*redis.RateLimitResult, error)
}

// SubjectFunc picks who a request is counted against.
type SubjectFunc func(c *gin.Context) string

// ClientIP counts requests per remote address.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// OperatorSubject counts requests per operator, falling back to the client
// address before authentication.
func OperatorSubject(c *gin.Context) string {
	if id, ok := services.OperatorIDFromContext(c.Request.Context()); ok {
		return id
	}
	return c.ClientIP()
}

// RateLimit applies the scope's window to every request. A nil limiter
// disables limiting.
func RateLimit(limiter Limiter, scope string, subject SubjectFunc) gin.HandlerFunc {
	if subject == nil {
		subject = ClientIP
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), scope, subject(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", "INTERNAL_ERROR"))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(scope+" rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	if result.Remaining < 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int(result.ResetIn.Seconds())))
}
