package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, time.Duration, error)
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return f.allowFn(ctx, key)
}

func limitedRouter(l middlewares.Limiter) *gin.Engine {
	r := gin.New()
	r.POST("/auth", middlewares.RateLimit(l, middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit_Returns429WithRetryAfter(t *testing.T) {
	r := limitedRouter(middlewares.NewRateLimiter(1, time.Minute))

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/auth", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first = %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/auth", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	r := limitedRouter(&fakeLimiter{
		allowFn: func(context.Context, string) (bool, time.Duration, error) {
			return false, 0, errors.New("redis unavailable")
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}

func TestRedisRateLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	prefix := "notehub:test:" + uuid.NewString() + ":"
	l := middlewares.NewRedisRateLimiter(rdb, prefix, 2, time.Minute)

	t.Cleanup(func() { rdb.Del(context.Background(), prefix+"ip:1") })

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "ip:1")
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i+1, ok, err)
		}
	}

	ok, retry, err := l.Allow(ctx, "ip:1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("third request should be limited")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("retryAfter = %s", retry)
	}
}
