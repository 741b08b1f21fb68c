package model

import "time"

// ChatMessage is relayed between the participants of one live session.  It
// is never persisted; SentAt is stamped by the relay.
type ChatMessage struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sentAt"`
}
