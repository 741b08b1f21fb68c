package chat

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/model"
)

// Hub is the registry of chat rooms.  One instance is built at startup and
// shared by the WebSocket handler and the lifecycle manager, which closes a
// room when its session ends.
//
// A single mutex guards the room map, every client's room and the closed
// flag.  Sends into a client's buffer happen under the read lock and never
// block, so closing a buffer (under the write lock) cannot race a send.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	maxMsgSize int64
	log        *zap.Logger
	now        func() time.Time
}

// NewHub creates an empty hub.  maxMessageSize bounds a single inbound
// frame; zero disables the limit.
func NewHub(maxMessageSize int64, log *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		maxMsgSize: maxMessageSize,
		log:        log.Named("chat"),
		now:        time.Now,
	}
}

// Register adds a connection that is not yet in any room.
func (h *Hub) Register(conn Conn) *Client {
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	return &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
}

// Join moves c into the room of sessionID, leaving its previous room.
// Any connection may join any room.
func (h *Hub) Join(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed || c.room == sessionID {
		return
	}
	h.leaveLocked(c)
	m := h.rooms[sessionID]
	if m == nil {
		m = make(map[*Client]struct{})
		h.rooms[sessionID] = m
	}
	m[c] = struct{}{}
	c.room = sessionID
	h.log.Debug("client joined", zap.String("session_id", sessionID), zap.Int("room_size", len(m)))
}

// Relay stamps msg with the current time and delivers it as
// receive_message to every client in msg.SessionID's room, the sender
// included.  Clients whose buffer is full are skipped.  It returns the
// number of clients the message was queued for.
func (h *Hub) Relay(msg model.ChatMessage) int {
	msg.SentAt = h.now().UTC()
	frame, err := encode(EventReceiveMessage, msg)
	if err != nil {
		h.log.Error("encode chat message failed", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[msg.SessionID] {
		if c.enqueueLocked(frame) {
			delivered++
		} else {
			h.log.Warn("client send buffer full", zap.String("session_id", msg.SessionID))
		}
	}
	return delivered
}

// Unregister removes c from its room and closes its send buffer, which
// stops the writer.  It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	h.leaveLocked(c)
	c.closed = true
	close(c.send)
}

// CloseRoom tells every client in the room that the session ended and
// drops the room.  Connections stay open and may join another room.  It
// returns how many clients were notified.
func (h *Hub) CloseRoom(sessionID string) int {
	frame, err := encode(EventSessionEnded, sessionEnded{SessionID: sessionID})
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[sessionID]
	if !ok {
		return 0
	}
	delete(h.rooms, sessionID)
	n := 0
	for c := range m {
		c.room = ""
		if c.enqueueLocked(frame) {
			n++
		}
	}
	h.log.Info("chat room closed", zap.String("session_id", sessionID), zap.Int("notified", n))
	return n
}

// RoomSize returns the number of clients currently in the room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// sendTo queues one frame for a single client.
func (h *Hub) sendTo(c *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.enqueueLocked(frame)
}

func (h *Hub) roomOf(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.room
}

func (h *Hub) leaveLocked(c *Client) {
	if c.room == "" {
		return
	}
	if m, ok := h.rooms[c.room]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// relayFrom validates an inbound send_message from c and relays it.  A
// message without a session id goes to the room c is in.
func (h *Hub) relayFrom(c *Client, in inboundMessage) error {
	sessionID := ""
	if len(in.SessionID) > 0 && string(in.SessionID) != "null" {
		id, err := parseSessionID(in.SessionID)
		if err != nil {
			return err
		}
		sessionID = id
	} else if sessionID = h.roomOf(c); sessionID == "" {
		return errNotInRoom
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return errEmptyMessage
	}
	h.Relay(model.ChatMessage{
		SessionID: sessionID,
		UserID:    string(in.UserID),
		Username:  strings.TrimSpace(in.Username),
		Message:   text,
	})
	return nil
}
