package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/model"
)

func newTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(4096, zap.NewNop())
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func receive(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var env Envelope
	err := conn.ReadJSON(&env)
	assert.Error(t, err, "unexpected frame %q", env.Event)
}

func TestRelayStaysInsideRoom(t *testing.T) {
	hub, url := newTestServer(t)
	alice, bob, carol := dial(t, url), dial(t, url), dial(t, url)

	send(t, alice, EventJoinLive, "5")
	send(t, bob, EventJoinLive, 5)
	send(t, carol, EventJoinLive, map[string]any{"sessionId": "6"})
	require.Eventually(t, func() bool { return hub.RoomSize("5") == 2 && hub.RoomSize("6") == 1 },
		2*time.Second, 10*time.Millisecond)

	send(t, alice, EventSendMessage, map[string]any{
		"sessionId": "5", "message": "hello", "username": "alice", "userId": 7,
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := receive(t, conn)
		require.Equal(t, EventReceiveMessage, env.Event)
		var msg model.ChatMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, "5", msg.SessionID)
		assert.Equal(t, "hello", msg.Message)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "7", msg.UserID)
		assert.False(t, msg.SentAt.IsZero())
	}
	assertSilent(t, carol)
}

func TestMessageWithoutSessionGoesToCurrentRoom(t *testing.T) {
	hub, url := newTestServer(t)
	alice := dial(t, url)

	send(t, alice, EventJoinLive, "9")
	require.Eventually(t, func() bool { return hub.RoomSize("9") == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, alice, EventSendMessage, map[string]any{"message": "hi", "username": "alice"})
	env := receive(t, alice)
	assert.Equal(t, EventReceiveMessage, env.Event)
}

func TestCloseRoomNotifiesParticipants(t *testing.T) {
	hub, url := newTestServer(t)
	alice, bob := dial(t, url), dial(t, url)

	send(t, alice, EventJoinLive, "5")
	send(t, bob, EventJoinLive, "5")
	require.Eventually(t, func() bool { return hub.RoomSize("5") == 2 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, hub.CloseRoom("5"))
	assert.Equal(t, 0, hub.RoomSize("5"))
	assert.Equal(t, 0, hub.Rooms())

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := receive(t, conn)
		assert.Equal(t, EventSessionEnded, env.Event)
		assert.JSONEq(t, `{"sessionId":"5"}`, string(env.Data))
	}
	assert.Equal(t, 0, hub.CloseRoom("5"))
}

func TestPaddedSessionIDSharesRoom(t *testing.T) {
	hub, url := newTestServer(t)
	alice, bob := dial(t, url), dial(t, url)

	send(t, alice, EventJoinLive, "05")
	send(t, bob, EventJoinLive, 5)
	require.Eventually(t, func() bool { return hub.RoomSize("5") == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.Rooms())

	send(t, bob, EventSendMessage, map[string]any{"sessionId": "005", "message": "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		env := receive(t, conn)
		require.Equal(t, EventReceiveMessage, env.Event)
		assert.Contains(t, string(env.Data), `"sessionId":"5"`)
	}

	assert.Equal(t, 2, hub.CloseRoom("5"))
	for _, conn := range []*websocket.Conn{alice, bob} {
		assert.Equal(t, EventSessionEnded, receive(t, conn).Event)
	}
	assert.Equal(t, 0, hub.Rooms())
}

func TestProtocolErrors(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := receive(t, conn)
	assert.Equal(t, EventError, env.Event)

	send(t, conn, EventSendMessage, map[string]any{"message": "hi"})
	env = receive(t, conn)
	assert.Equal(t, EventError, env.Event)
	assert.Contains(t, string(env.Data), errNotInRoom.Error())

	send(t, conn, EventSendMessage, map[string]any{"sessionId": "5", "message": "   "})
	env = receive(t, conn)
	assert.Contains(t, string(env.Data), errEmptyMessage.Error())

	send(t, conn, EventJoinLive, "abc")
	env = receive(t, conn)
	assert.Contains(t, string(env.Data), errBadSessionID.Error())
}

func TestDisconnectLeavesRoom(t *testing.T) {
	hub, url := newTestServer(t)
	alice, bob := dial(t, url), dial(t, url)

	send(t, alice, EventJoinLive, "5")
	send(t, bob, EventJoinLive, "5")
	require.Eventually(t, func() bool { return hub.RoomSize("5") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool { return hub.RoomSize("5") == 1 }, 2*time.Second, 10*time.Millisecond)
}

type nopConn struct{}

func (nopConn) SetReadLimit(int64) {}
func (nopConn) SetReadDeadline(time.Time) error { return nil }
func (nopConn) SetWriteDeadline(time.Time) error { return nil }
func (nopConn) SetPongHandler(func(string) error) {}
func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, websocket.ErrCloseSent }
func (nopConn) WriteMessage(int, []byte) error { return nil }
func (nopConn) Close() error { return nil }

func TestRelaySkipsFullBuffers(t *testing.T) {
	hub := NewHub(0, zap.NewNop())
	slow, fast := hub.Register(nopConn{}), hub.Register(nopConn{})
	hub.Join(slow, "5")
	hub.Join(fast, "5")
	for i := 0; i < sendBuffer; i++ {
		slow.send <- []byte("x")
	}

	assert.Equal(t, 1, hub.Relay(model.ChatMessage{SessionID: "5", Message: "hi"}))
	assert.Len(t, fast.send, 1)

	hub.Unregister(slow)
	hub.Unregister(slow)
	assert.Equal(t, 1, hub.RoomSize("5"))
	assert.Equal(t, 1, hub.Relay(model.ChatMessage{SessionID: "5", Message: "again"}))
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	hub := NewHub(0, zap.NewNop())
	c := hub.Register(nopConn{})
	hub.Join(c, "1")
	hub.Join(c, "2")
	assert.Equal(t, 0, hub.RoomSize("1"))
	assert.Equal(t, 1, hub.RoomSize("2"))
	assert.Equal(t, 1, hub.Rooms())
}

func TestParseSessionID(t *testing.T) {
	for in, want := range map[string]string{
		`"5"`: "5", `5`: "5", `{"sessionId":12}`: "12", `" 7 "`: "7",
		`"05"`: "5", `{"sessionId":"0012"}`: "12",
	} {
		got, err := parseSessionID(json.RawMessage(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{``, `"abc"`, `-1`, `1.5`, `{}`, `null`, `0`, `"00"`} {
		_, err := parseSessionID(json.RawMessage(in))
		assert.ErrorIs(t, err, errBadSessionID, in)
	}
}
