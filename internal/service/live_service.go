package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/model"
	"github.com/iliyamo/podcast-live/internal/repository"
	"github.com/iliyamo/podcast-live/internal/rtc"
	"github.com/iliyamo/podcast-live/internal/storage"
)

const maxTitleLen = 200

// SessionStore persists live sessions.  Implementations must make
// IncrementViewers and MarkEnded atomic; the service holds no locks.
type SessionStore interface {
	Start(ctx context.Context, s *model.LiveSession) (ended []uint64, err error)
	GetByID(ctx context.Context, id uint64) (model.LiveSession, error)
	GetView(ctx context.Context, id uint64) (model.LiveSessionView, error)
	IncrementViewers(ctx context.Context, id uint64) error
	MarkEnded(ctx context.Context, id uint64, at time.Time) (bool, error)
	ListActive(ctx context.Context) ([]model.LiveSessionView, error)
	ListByHost(ctx context.Context, hostID uint64) ([]model.LiveSessionView, error)
}

// CategoryChecker validates optional category references.
type CategoryChecker interface {
	Exists(ctx context.Context, id uint64) (bool, error)
}

// RoomCloser ends the chat room of a session.
type RoomCloser interface {
	CloseRoom(sessionID string) int
}

// TokenIssuer mints transport credentials.
type TokenIssuer interface {
	Issue(channel string, role rtc.Role) rtc.Credential
	AppID() string
}

// StartInput is what a host supplies to go live.
type StartInput struct {
	Title       string
	Description string
	CategoryID  *uint64
}

// RecordedAudio is the host's optional recording uploaded with end.
type RecordedAudio struct {
	Body        io.Reader
	Filename    string
	ContentType string
}

// Ticket is returned to a participant: the session plus the credential to
// connect to its channel.
type Ticket struct {
	Session    model.LiveSessionView
	Credential rtc.Credential
	AppID      string
}

// EndResult reports the outcome of End.  AlreadyEnded is true when the
// session had ended before this call, in which case nothing changed.
type EndResult struct {
	Session      model.LiveSessionView
	AlreadyEnded bool
	AudioURL     string
}

// LiveService is the session lifecycle manager.
type LiveService struct {
	store       SessionStore
	categories  CategoryChecker
	rooms       RoomCloser
	issuer      TokenIssuer
	archiver    Archiver
	audio       storage.Storage
	placeholder string
	log         *zap.Logger
	now         func() time.Time
}

// LiveDeps groups the collaborators of LiveService.  Audio may be nil, in
// which case uploaded recordings are ignored and the placeholder is used.
type LiveDeps struct {
	Store       SessionStore
	Categories  CategoryChecker
	Rooms       RoomCloser
	Issuer      TokenIssuer
	Archiver    Archiver
	Audio       storage.Storage
	Placeholder string
	Log         *zap.Logger
}

func NewLiveService(d LiveDeps) *LiveService {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &LiveService{
		store:       d.Store,
		categories:  d.Categories,
		rooms:       d.Rooms,
		issuer:      d.Issuer,
		archiver:    d.Archiver,
		audio:       d.Audio,
		placeholder: d.Placeholder,
		log:         log.Named("live"),
		now:         time.Now,
	}
}

// Start makes hostID go live.  Any session the host still has live is
// ended in the same transaction and its chat room closed.  The returned
// ticket carries a publisher credential; when none can be minted the
// session still starts and the ticket's credential explains why.
func (s *LiveService) Start(ctx context.Context, hostID uint64, in StartInput) (Ticket, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Ticket{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return Ticket{}, fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxTitleLen)
	}
	if in.CategoryID != nil {
		ok, err := s.categories.Exists(ctx, *in.CategoryID)
		if err != nil {
			return Ticket{}, fmt.Errorf("check category: %w", err)
		}
		if !ok {
			return Ticket{}, fmt.Errorf("%w: category %d does not exist", ErrValidation, *in.CategoryID)
		}
	}

	now := s.now().UTC()
	sess := &model.LiveSession{
		HostID:      hostID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Channel:     ChannelName(hostID, now),
		StartedAt:   now,
	}
	ended, err := s.store.Start(ctx, sess)
	if err != nil {
		return Ticket{}, fmt.Errorf("start live session: %w", err)
	}
	for _, id := range ended {
		s.rooms.CloseRoom(formatID(id))
		s.log.Info("previous live session force-ended",
			zap.Uint64("session_id", id), zap.Uint64("host_id", hostID))
	}

	view, err := s.store.GetView(ctx, sess.ID)
	if err != nil {
		return Ticket{}, fmt.Errorf("load live session: %w", err)
	}
	s.log.Info("live session started",
		zap.Uint64("session_id", sess.ID), zap.Uint64("host_id", hostID), zap.String("channel", sess.Channel))
	return s.ticket(view, rtc.RolePublisher), nil
}

// Join records one more viewer and returns a subscriber ticket.  It fails
// with ErrNotFound when the session does not exist or has ended.
func (s *LiveService) Join(ctx context.Context, sessionID uint64) (Ticket, error) {
	if err := s.store.IncrementViewers(ctx, sessionID); err != nil {
		return Ticket{}, mapStoreErr(err)
	}
	view, err := s.store.GetView(ctx, sessionID)
	if err != nil {
		return Ticket{}, mapStoreErr(err)
	}
	return s.ticket(view, rtc.RoleSubscriber), nil
}

// End performs the live → ended transition for the host.  Calling it again
// on an ended session succeeds with AlreadyEnded set and has no effect.
// The chat room is closed and the session archived as a podcast; failures
// of the recording upload or the archiver are logged and never fail End.
func (s *LiveService) End(ctx context.Context, sessionID, callerID uint64, audio *RecordedAudio) (EndResult, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return EndResult{}, mapStoreErr(err)
	}
	if sess.HostID != callerID {
		return EndResult{}, ErrForbidden
	}

	now := s.now().UTC()
	transitioned, err := s.store.MarkEnded(ctx, sessionID, now)
	if err != nil {
		return EndResult{}, fmt.Errorf("end live session: %w", err)
	}
	if !transitioned {
		view, err := s.store.GetView(ctx, sessionID)
		if err != nil {
			return EndResult{}, mapStoreErr(err)
		}
		return EndResult{Session: view, AlreadyEnded: true}, nil
	}

	notified := s.rooms.CloseRoom(formatID(sessionID))
	audioURL := s.saveRecording(ctx, sessionID, audio)
	req := ArchiveRequest{
		SessionID:   sessionID,
		HostID:      sess.HostID,
		Title:       sess.Title,
		Description: sess.Description,
		CategoryID:  sess.CategoryID,
		AudioURL:    audioURL,
		EndedAt:     now,
	}
	if err := s.archiver.Archive(ctx, req); err != nil {
		s.log.Warn("archive live session failed", zap.Uint64("session_id", sessionID), zap.Error(err))
	}

	view, err := s.store.GetView(ctx, sessionID)
	if err != nil {
		return EndResult{}, mapStoreErr(err)
	}
	s.log.Info("live session ended",
		zap.Uint64("session_id", sessionID), zap.Uint32("viewers", view.Viewers), zap.Int("chat_notified", notified))
	return EndResult{Session: view, AudioURL: audioURL}, nil
}

// ListActive returns the sessions currently live.
func (s *LiveService) ListActive(ctx context.Context) ([]model.LiveSessionView, error) {
	return s.store.ListActive(ctx)
}

// Get returns one session in any state.
func (s *LiveService) Get(ctx context.Context, sessionID uint64) (model.LiveSessionView, error) {
	v, err := s.store.GetView(ctx, sessionID)
	return v, mapStoreErr(err)
}

// History returns every session hosted by hostID.
func (s *LiveService) History(ctx context.Context, hostID uint64) ([]model.LiveSessionView, error) {
	return s.store.ListByHost(ctx, hostID)
}

func (s *LiveService) ticket(view model.LiveSessionView, role rtc.Role) Ticket {
	cred := s.issuer.Issue(view.Channel, role)
	if !cred.Issued() {
		s.log.Warn("no transport credential issued",
			zap.Uint64("session_id", view.ID), zap.String("role", string(role)), zap.String("reason", cred.Reason))
	}
	return Ticket{Session: view, Credential: cred, AppID: s.issuer.AppID()}
}

func (s *LiveService) saveRecording(ctx context.Context, sessionID uint64, audio *RecordedAudio) string {
	if audio == nil || audio.Body == nil || s.audio == nil {
		return s.placeholder
	}
	url, err := s.audio.Save(ctx, audio.Body, audio.Filename, audio.ContentType)
	if err != nil {
		s.log.Warn("save recording failed; using placeholder", zap.Uint64("session_id", sessionID), zap.Error(err))
		return s.placeholder
	}
	return url
}

// ChannelName derives the transport channel of a session from its host and
// start time.  The ULID keeps names unique even for one host starting twice
// within the same millisecond.
func ChannelName(hostID uint64, at time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy())
	return "live_" + strconv.FormatUint(hostID, 10) + "_" + id.String()
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
