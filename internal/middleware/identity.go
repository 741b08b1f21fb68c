package middleware

// identity.go holds the accessors for the identity JWTAuth stores in the
// Echo context, shared by handlers and the rate limiter key builder.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id.  ok is false on routes
// without JWTAuth or when no identity was stored.
func UserID(c echo.Context) (id uint64, ok bool) {
	id, ok = c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Username returns the authenticated user's username, or "".
func Username(c echo.Context) string {
	s, _ := c.Get(ctxUsername).(string)
	return s
}

// rateKeyUser identifies the caller for rate limiting: the user id when
// authenticated, "anon" otherwise.
func rateKeyUser(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
