package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protectedEcho(capture *map[string]interface{}) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1")
	g.Use(JWTAuth(testSecret))
	g.Use(RequireRole("ADMIN", "MEMBER"))
	g.GET("/probe", func(c echo.Context) error {
		if capture != nil {
			(*capture)["user_id"] = c.Get("user_id")
			(*capture)["role"] = c.Get("role")
			(*capture)["tenant_id"] = c.Get("tenant_id")
		}
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestJWTAuth_ValidTokenInjectsClaims(t *testing.T) {
	captured := map[string]interface{}{}
	e := protectedEcho(&captured)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":       "42",
		"role":      "MEMBER",
		"tenant_id": float64(1),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", captured["user_id"])
	assert.Equal(t, "MEMBER", captured["role"])
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	e := protectedEcho(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_WrongSecretRejected(t *testing.T) {
	e := protectedEcho(nil)

	token := signToken(t, "some-other-secret", jwt.MapClaims{
		"sub": "42", "role": "MEMBER", "tenant_id": float64(1),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_ExpiredTokenRejected(t *testing.T) {
	e := protectedEcho(nil)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "42", "role": "MEMBER", "tenant_id": float64(1),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_UnknownRoleRejected(t *testing.T) {
	e := protectedEcho(nil)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "42", "role": "AUDITOR", "tenant_id": float64(1),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
