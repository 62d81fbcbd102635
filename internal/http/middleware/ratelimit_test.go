package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisRateLimiter(client, limit, time.Minute, nil), mr
}

func hit(limiter *RedisRateLimiter, ip string) int {
	handler := limiter.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/availability/slots", nil)
	req.Header.Set("X-Real-Ip", ip)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitAllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(limiter, "10.0.0.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(limiter, "10.0.0.1"))
}

func TestRateLimitIsPerKey(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)

	assert.Equal(t, http.StatusOK, hit(limiter, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(limiter, "10.0.0.1"))
	// A different caller has its own counter.
	assert.Equal(t, http.StatusOK, hit(limiter, "10.0.0.2"))
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()

	assert.Equal(t, http.StatusOK, hit(limiter, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(limiter, "10.0.0.1"))
}
