package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("k"), "request %d", i)
	}
	assert.False(t, rl.Allow("k"), "budget exhausted")
	assert.True(t, rl.Allow("other"), "keys are independent")
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 600, // 10 per second
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	for rl.Allow("k") {
	}
	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.Allow("k"), "tokens refill as time passes")
}

func TestRateLimiterHandlerKeysOnClientIP(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})
	handler := rl.Handler(okHandler())

	r := httptest.NewRequest("GET", "/x", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected
	other := httptest.NewRequest("GET", "/x", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestDistributedRateLimiterCountsInRedis(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	rl := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := rl.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, rl.Reset(ctx, "k"))
	remaining, err = rl.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestDistributedRateLimiterFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	srv.Close()

	rl := NewDistributedRateLimiter(client, nil, "test")
	allowed, err := rl.Allow(context.Background(), "k")
	assert.True(t, allowed, "redis outages never block traffic")
	assert.Error(t, err)
}

func TestDistributedMiddlewareSetsHeaders(t *testing.T) {
	client := testRedis(t)
	m := NewDistributedRateLimitMiddleware(client)
	handler := m.Handler(okHandler())

	r := httptest.NewRequest("GET", "/x", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestDistributedMiddlewareHealthCheck(t *testing.T) {
	client := testRedis(t)
	m := NewDistributedRateLimitMiddleware(client)
	assert.NoError(t, m.HealthCheck(context.Background()))
}
