package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RoomStats is satisfied by the chat hub.
type RoomStats interface {
	Rooms() int
}

// HealthHandler backs /healthz.  With no DB it only reports liveness.
type HealthHandler struct {
	DB   Pinger
	Chat RoomStats
}

// Health returns 200 {"status":"ok"} when MySQL answers a ping, 503
// otherwise.  The number of open chat rooms is included for operators.
func (h *HealthHandler) Health(c echo.Context) error {
	body := echo.Map{"status": "ok"}
	if h.Chat != nil {
		body["chat_rooms"] = h.Chat.Rooms()
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	return c.JSON(http.StatusOK, body)
}
