package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsiao/lamp-reservation/internal/config"
)

func setupCache(t *testing.T, cfg config.CacheConfig) (*echo.Echo, *int64) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var hits int64
	e := echo.New()
	e.Use(NewRedisCache(cfg, rdb))
	e.GET("/v1/blocks/:id/summary", func(c echo.Context) error {
		atomic.AddInt64(&hits, 1)
		return c.JSON(http.StatusOK, map[string]int{"available": 3})
	})
	return e, &hits
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          15 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

func getSummary(e *echo.Echo) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/blocks/7/summary", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRedisCache_SecondRequestIsServedFromCache(t *testing.T) {
	e, hits := setupCache(t, cacheConfig())

	first := getSummary(e)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := getSummary(e)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), atomic.LoadInt64(hits))
}

func TestRedisCache_NonCachedMethodPassesThrough(t *testing.T) {
	cfg := cacheConfig()
	cfg.Methods = map[string]bool{} // nothing cacheable
	e, hits := setupCache(t, cfg)

	getSummary(e)
	getSummary(e)
	assert.Equal(t, int64(2), atomic.LoadInt64(hits))
}

func TestRedisCache_DisabledPassesThrough(t *testing.T) {
	cfg := cacheConfig()
	cfg.Enabled = false
	e, hits := setupCache(t, cfg)

	getSummary(e)
	getSummary(e)
	assert.Equal(t, int64(2), atomic.LoadInt64(hits))
}
