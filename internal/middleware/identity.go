package middleware

// identity.go provides the user identifier used for rate-limit keys.
// When no user is authenticated or the claims are missing, "guest" is
// returned so anonymous traffic still buckets sensibly.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts a user identifier from the values JWTAuth
// stored in context. The claim may arrive as a string or a JSON number.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "guest"
}
