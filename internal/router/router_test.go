package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/chat"
	"github.com/iliyamo/podcast-live/internal/handler"
)

func TestRegisterLiveRoutes(t *testing.T) {
	e := echo.New()
	hub := chat.NewHub(4096, zap.NewNop())

	var limited int
	count := func(n *int) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				*n++
				return c.NoContent(http.StatusTeapot)
			}
		}
	}
	RegisterLive(e,
		handler.NewLiveHandler(nil, hub, nil),
		handler.NewChatHandler(hub, nil, zap.NewNop()),
		LiveOptions{JWTSecret: "s", RateLimit: count(&limited), Cache: nil},
	)

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /live/start", "POST /live/end/:id", "GET /live/mine",
		"POST /live/join/:id", "GET /live/active", "GET /live/:id", "GET /live/ws",
	} {
		assert.True(t, got[want], want)
	}

	// protected routes reject before reaching the limiter
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/live/start", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, limited)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live/active", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, limited)
}

func TestCompactSkipsNil(t *testing.T) {
	assert.Empty(t, compact(nil, nil))
	assert.Len(t, compact(nil, func(next echo.HandlerFunc) echo.HandlerFunc { return next }), 1)
}
