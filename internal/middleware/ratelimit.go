package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRateLimiter(client *redis.Client, log *slog.Logger) *RateLimiter {
	return &RateLimiter{client: client, log: log}
}

// Limit allows limit requests per window under the named bucket. Redis errors
// let the request through.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", name, c.ClientIP())
		count, ttl, err := l.hit(c.Request.Context(), key, window)
		if err != nil {
			l.log.Warn("rate limiter unavailable", "bucket", name, "error", err)
			c.Next()
			return
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if int(count) > limit {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     message,
				"error":       "Too many requests",
				"retry_after": int(ttl.Seconds()),
			})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	d := ttl.Val()
	if d < 0 {
		d = window
	}
	return incr.Val(), d, nil
}
