package model

import "time"

// LiveStatus is the state of a live session.  The only transition is
// LiveStatusLive → LiveStatusEnded; it never reverses.
type LiveStatus string

const (
	LiveStatusLive  LiveStatus = "live"
	LiveStatusEnded LiveStatus = "ended"
)

// LiveSession mirrors a row of the `live_sessions` table.
//
// Fields:
//
//	ID          – primary key identifier.
//	HostID      – user who owns the publishing rights.
//	Title       – required free text.
//	Description – optional free text (empty string when absent).
//	CategoryID  – optional category reference.
//	Status      – live or ended.
//	Viewers     – number of joins while live; never decremented.
//	Channel     – unique transport routing name shared by host and listeners.
//	StartedAt   – when the host started the session.
//	EndedAt     – set only by the end transition.
type LiveSession struct {
	ID          uint64     // live_sessions.id
	HostID      uint64     // live_sessions.host_id
	Title       string     // live_sessions.title
	Description string     // live_sessions.description
	CategoryID  *uint64    // live_sessions.category_id (nullable)
	Status      LiveStatus // live_sessions.status
	Viewers     uint32     // live_sessions.viewers
	Channel     string     // live_sessions.channel
	StartedAt   time.Time  // live_sessions.started_at
	EndedAt     *time.Time // live_sessions.ended_at (nullable)
}

// IsLive reports whether the session still accepts listeners.
func (s LiveSession) IsLive() bool { return s.Status == LiveStatusLive }

// LiveSessionView is the API representation of a session with host and
// category identity resolved for display.
type LiveSessionView struct {
	ID          uint64       `json:"id"`
	Host        UserRef      `json:"host"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    *CategoryRef `json:"category"`
	Status      LiveStatus   `json:"status"`
	Viewers     uint32       `json:"viewers"`
	Channel     string       `json:"channel"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
}
