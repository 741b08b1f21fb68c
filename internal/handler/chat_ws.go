package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/chat"
)

// ChatHandler upgrades GET /live/ws to a chat connection.
type ChatHandler struct {
	hub      *chat.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewChatHandler accepts browser origins listed in allowedOrigins ("*"
// allows any).  Requests without an Origin header (non-browser clients)
// are always accepted.
func NewChatHandler(hub *chat.Hub, allowedOrigins []string, log *zap.Logger) *ChatHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return &ChatHandler{
		hub: hub,
		log: log.Named("chat-ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			},
		},
	}
}

// Serve blocks for the lifetime of the connection.
func (h *ChatHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	h.hub.Serve(conn)
	return nil
}
