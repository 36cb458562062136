package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// WindowCounter counts hits per key within a fixed window. Satisfied by
// *redisclient.Client.
type WindowCounter interface {
	CountInWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimiter enforces a fixed window per derived key, counted in Redis
// so the limit holds across restarts. Redis being down fails open.
type RateLimiter struct {
	rdb    WindowCounter
	log    *slog.Logger
	window time.Duration
	limit  int
}

func NewRateLimiter(rdb WindowCounter, log *slog.Logger, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		log:    log,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		count, ttl, err := rl.rdb.CountInWindow(ctx, "ratelimit:"+key, rl.window)

		if err != nil {
			rl.log.Warn("rate limiter unavailable, allowing request", "err", err)
			c.Next()
			return
		}

		if count > int64(rl.limit) {
			retryAfter := int(ttl.Seconds())

			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"statusCode": http.StatusTooManyRequests,
				"message":    "Too many requests. Please try again shortly.",
				"errors":     []string{},
				"success":    false,
			})
			return
		}

		c.Next()
	}
}

// KeyByIP rate limits unauthenticated endpoints by client address.
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	// Normalize a host:port form if one slips through.
	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
