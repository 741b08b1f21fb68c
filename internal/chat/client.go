package chat

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Conn is the part of *websocket.Conn the relay uses.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one WebSocket participant.  room and closed are guarded by
// the hub's mutex.
type Client struct {
	hub    *Hub
	conn   Conn
	send   chan []byte
	room   string
	closed bool
}

func (c *Client) enqueueLocked(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Serve registers conn and runs its pumps until the peer disconnects.  It
// blocks; the caller's goroutine becomes the reader.
func (h *Hub) Serve(conn Conn) {
	c := h.Register(conn)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if err := c.dispatch(data); err != nil {
			c.sendError(err)
		}
	}
}

func (c *Client) dispatch(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errBadEnvelope
	}
	switch env.Event {
	case EventJoinLive:
		id, err := parseSessionID(env.Data)
		if err != nil {
			return err
		}
		c.hub.Join(c, id)
		return nil
	case EventSendMessage:
		var in inboundMessage
		if err := json.Unmarshal(env.Data, &in); err != nil {
			return errBadEnvelope
		}
		return c.hub.relayFrom(c, in)
	default:
		return errBadEnvelope
	}
}

func (c *Client) sendError(err error) {
	frame, encErr := encode(EventError, errorPayload{Message: err.Error()})
	if encErr != nil {
		return
	}
	c.hub.sendTo(c, frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
