package handler // handler defines http handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// ctxUint64 extracts a numeric claim stored in the echo context by the
// JWT middleware and converts it to uint64. Claims arrive as strings or
// JSON numbers depending on the issuer.
func ctxUint64(c echo.Context, key string) (uint64, error) {
	v := c.Get(key)
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid " + key + " in context")
}

// getUserID extracts the authenticated user's id from the context.
func getUserID(c echo.Context) (uint64, error) {
	return ctxUint64(c, "user_id")
}

// getTenantID extracts the tenant id from the context. Every service and
// repository call takes it as an explicit parameter from here on.
func getTenantID(c echo.Context) (uint64, error) {
	return ctxUint64(c, "tenant_id")
}

// actorName returns a printable identity for audit fields: the user id
// as issued by the identity service.
func actorName(c echo.Context) string {
	if id, err := getUserID(c); err == nil {
		return "user:" + strconv.FormatUint(id, 10)
	}
	return "unknown"
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// parseID parses a positive numeric id from a query parameter.
func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseExclude parses the comma-separated exclude query parameter into
// slot ids, silently dropping anything unparsable.
func parseExclude(raw string) []uint64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64); err == nil && n != 0 {
			ids = append(ids, n)
		}
	}
	return ids
}
