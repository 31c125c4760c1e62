package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsiao/lamp-reservation/internal/config"
)

func setupLimiter(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.POST("/v1/reservations", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e, mr
}

func doRequest(e *echo.Echo) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_BlocksWhenBucketEmpty(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e, _ := setupLimiter(t, cfg)

	for i := 0; i < 3; i++ {
		rec := doRequest(e)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := doRequest(e)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e, mr := setupLimiter(t, cfg)

	require.Equal(t, http.StatusOK, doRequest(e).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(e).Code)

	// The script computes elapsed time from the wall clock it is passed,
	// not from miniredis's clock, so advancing real time is simulated by
	// resetting the stored refill timestamp.
	mr.FastForward(2 * time.Second)
	for _, key := range mr.Keys() {
		mr.HSet(key, "last_refill_ms", "0")
	}

	assert.Equal(t, http.StatusOK, doRequest(e).Code)
}

func TestTokenBucket_DisabledIsPassThrough(t *testing.T) {
	e, _ := setupLimiter(t, config.RateLimitConfig{Enabled: false})

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, doRequest(e).Code)
	}
}

func TestBuildRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	c.Set("user_id", uint64(42))

	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:203.0.113.7"},
		{"user", "rl:user:42"},
		{"route", "rl:route:POST /v1/reservations"},
		{"ip_user", "rl:ip:203.0.113.7:user:42"},
		{"anything_else", "rl:ip:203.0.113.7:user:42:route:POST /v1/reservations"},
	}
	for _, tc := range cases {
		t.Run(tc.strategy, func(t *testing.T) {
			cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}
			assert.Equal(t, tc.want, buildRateKey(cfg, c))
		})
	}
}
