// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// LiveEndedQueue is the durable queue carrying archive requests for ended
// live sessions.
const LiveEndedQueue = "live.ended"

// LiveEndedEvent is published when a host ends a live session.  It carries
// everything the archive consumer needs to create the podcast row without
// reading the session back.
type LiveEndedEvent struct {
	SessionID   uint64    `json:"session_id"`
	HostID      uint64    `json:"host_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  *uint64   `json:"category_id,omitempty"`
	AudioURL    string    `json:"audio_url"`
	EndedAt     time.Time `json:"ended_at"`
}
