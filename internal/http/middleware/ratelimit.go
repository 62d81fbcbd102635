package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// RedisRateLimiter is a fixed-window counter shared across instances, so
// the public slot-query surface stays limited no matter how many replicas
// serve it.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *logging.Logger
}

// NewRedisRateLimiter creates a limiter allowing limit requests per window
// per key.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, logger *logging.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow increments the caller's window counter and reports whether the
// request is within the limit. Redis outages fail open: availability of
// the public surface beats strict limiting.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := time.Now().Unix() / int64(rl.window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	pipe := rl.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error("rate limit counter unavailable", "error", err)
		return true
	}
	return count.Val() <= int64(rl.limit)
}

// RateLimit rejects requests over the per-IP limit with 429.
func (rl *RedisRateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		// Prefer X-Real-Ip set by chi's RealIP middleware.
		if xri := r.Header.Get("X-Real-Ip"); xri != "" {
			ip = xri
		}
		if !rl.Allow(r.Context(), ip) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
