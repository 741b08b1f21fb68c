package model

import "time"

// Podcast is a playable on-demand episode.  Rows created from an ended live
// session carry SourceSessionID and IsLiveArchive=true.
type Podcast struct {
	ID              uint64       `json:"id"`
	Owner           UserRef      `json:"owner"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        *CategoryRef `json:"category"`
	AudioURL        string       `json:"audio_url"`
	SourceSessionID *uint64      `json:"source_session_id,omitempty"`
	IsLiveArchive   bool         `json:"is_live_archive"`
	CreatedAt       time.Time    `json:"created_at"`
}
