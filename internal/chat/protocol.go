// Package chat relays text messages between the participants of a live
// session over WebSocket.  Rooms are keyed by session id and live only in
// memory; nothing is persisted.
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Event names carried in the envelope.
const (
	EventJoinLive       = "join_live"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventSessionEnded   = "session_ended"
	EventError          = "error"
)

var (
	errBadEnvelope  = errors.New("invalid message envelope")
	errBadSessionID = errors.New("invalid session id")
	errEmptyMessage = errors.New("message is empty")
	errNotInRoom    = errors.New("join a live session first")
)

// Envelope is the frame exchanged in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type sessionEnded struct {
	SessionID string `json:"sessionId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// parseSessionID accepts "5", 5 or {"sessionId": "5"|5}.
func parseSessionID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", errBadSessionID
	}
	if data[0] == '{' {
		var obj struct {
			SessionID json.RawMessage `json:"sessionId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", errBadSessionID
		}
		return parseSessionID(obj.SessionID)
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return "", errBadSessionID
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", errBadSessionID
		}
		s = n.String()
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return "", errBadSessionID
	}
	// canonical form, so "05" and 5 share the room End closes
	return strconv.FormatUint(n, 10), nil
}

// inboundMessage is the send_message payload.  Clients send ids either as
// strings or as numbers.
type inboundMessage struct {
	SessionID json.RawMessage `json:"sessionId"`
	UserID    flexString      `json:"userId"`
	Username  string          `json:"username"`
	Message   string          `json:"message"`
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
