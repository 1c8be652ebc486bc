package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/port"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a fixed-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimitedResponse is the 429 payload of the fixed-window limiter.
type RateLimitedResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// RateLimiter enforces fixed-window counters backed by a shared store. Store
// failures never reject a request.
type RateLimiter struct {
	store   port.RateLimitStore
	metrics *AuthMetrics
	logger  *zap.Logger
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, metrics *AuthMetrics, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, metrics: metrics, logger: logger}
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rule.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Identifier == nil {
		rule.Identifier = ClientIPIdentifier()
	}
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		if rl.store == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", rule.Name, identifier)
		count, err := rl.store.Increment(c.Request.Context(), key, rule.Window)
		if err != nil {
			rl.logger.Warn("rate limit store unavailable, allowing request",
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := rule.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rule.Limit {
			retrySeconds := int(math.Ceil(rule.Window.Seconds()))
			headers.Set("Retry-After", strconv.Itoa(retrySeconds))

			if rl.metrics != nil {
				rl.metrics.IncRateLimited(rule.Name)
			}

			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
				Success:    false,
				Message:    fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds),
				RetryAfter: retrySeconds,
			})
			return
		}

		c.Next()
	}
}
