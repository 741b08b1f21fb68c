package model

import "time"

// Category groups podcasts and live sessions for browsing.
type Category struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryRef is the compact form embedded in session and podcast views.
type CategoryRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
