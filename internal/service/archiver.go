package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/queue"
	"github.com/iliyamo/podcast-live/internal/repository"
)

// ArchiveRequest describes an ended live session to be kept as a podcast.
type ArchiveRequest struct {
	SessionID   uint64
	HostID      uint64
	Title       string
	Description string
	CategoryID  *uint64
	AudioURL    string
	EndedAt     time.Time
}

// Archiver turns ended sessions into podcasts.
type Archiver interface {
	Archive(ctx context.Context, req ArchiveRequest) error
}

// PodcastWriter is the storage used by DirectArchiver.
type PodcastWriter interface {
	CreateFromLive(ctx context.Context, a repository.LiveArchive) (uint64, error)
}

// DirectArchiver writes the podcast row in the calling goroutine.
type DirectArchiver struct {
	podcasts PodcastWriter
	log      *zap.Logger
}

func NewDirectArchiver(p PodcastWriter, log *zap.Logger) *DirectArchiver {
	return &DirectArchiver{podcasts: p, log: log.Named("archiver")}
}

func (a *DirectArchiver) Archive(ctx context.Context, req ArchiveRequest) error {
	id, err := a.podcasts.CreateFromLive(ctx, repository.LiveArchive{
		SessionID:   req.SessionID,
		OwnerID:     req.HostID,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		AudioURL:    req.AudioURL,
	})
	if err != nil {
		return fmt.Errorf("create podcast from live session %d: %w", req.SessionID, err)
	}
	a.log.Info("live session archived", zap.Uint64("session_id", req.SessionID), zap.Uint64("podcast_id", id))
	return nil
}

// HandleLiveEnded adapts DirectArchiver to the queue consumer.
func (a *DirectArchiver) HandleLiveEnded(ctx context.Context, ev queue.LiveEndedEvent) error {
	return a.Archive(ctx, ArchiveRequest{
		SessionID:   ev.SessionID,
		HostID:      ev.HostID,
		Title:       ev.Title,
		Description: ev.Description,
		CategoryID:  ev.CategoryID,
		AudioURL:    ev.AudioURL,
		EndedAt:     ev.EndedAt,
	})
}

// EventPublisher sends live.ended events.
type EventPublisher interface {
	PublishLiveEnded(ctx context.Context, ev queue.LiveEndedEvent) error
}

// QueueArchiver defers archival to the live.ended consumer.
type QueueArchiver struct {
	pub EventPublisher
}

func NewQueueArchiver(pub EventPublisher) *QueueArchiver { return &QueueArchiver{pub: pub} }

func (a *QueueArchiver) Archive(ctx context.Context, req ArchiveRequest) error {
	return a.pub.PublishLiveEnded(ctx, queue.LiveEndedEvent{
		SessionID:   req.SessionID,
		HostID:      req.HostID,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		AudioURL:    req.AudioURL,
		EndedAt:     req.EndedAt,
	})
}
