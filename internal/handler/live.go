// Package handler exposes the HTTP handlers of the API.  This file covers
// the live-session lifecycle: start, join, end and the read-only listings.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podcast-live/internal/middleware"
	"github.com/iliyamo/podcast-live/internal/model"
	"github.com/iliyamo/podcast-live/internal/service"
)

// LiveManager is the lifecycle API the handlers drive.
type LiveManager interface {
	Start(ctx context.Context, hostID uint64, in service.StartInput) (service.Ticket, error)
	Join(ctx context.Context, sessionID uint64) (service.Ticket, error)
	End(ctx context.Context, sessionID, callerID uint64, audio *service.RecordedAudio) (service.EndResult, error)
	ListActive(ctx context.Context) ([]model.LiveSessionView, error)
	Get(ctx context.Context, sessionID uint64) (model.LiveSessionView, error)
	History(ctx context.Context, hostID uint64) ([]model.LiveSessionView, error)
}

// RoomCounter reports chat occupancy for the session detail view.
type RoomCounter interface {
	RoomSize(sessionID string) int
}

// CachePurger invalidates cached listings after a session starts or ends.
type CachePurger interface {
	Purge(ctx context.Context)
}

// LiveHandler serves /live.
type LiveHandler struct {
	Live  LiveManager
	Rooms RoomCounter
	Cache CachePurger // optional
}

func NewLiveHandler(live LiveManager, rooms RoomCounter, cache CachePurger) *LiveHandler {
	return &LiveHandler{Live: live, Rooms: rooms, Cache: cache}
}

type startReq struct {
	Title       string  `json:"title" form:"title"`
	Description string  `json:"description" form:"description"`
	CategoryID  *uint64 `json:"category_id" form:"category_id"`
}

// ticketResp keeps the agora_token field name existing clients read.
type ticketResp struct {
	Session   model.LiveSessionView `json:"session"`
	Token     string                `json:"agora_token"`
	ExpiresAt *time.Time            `json:"token_expires_at,omitempty"`
	AppID     string                `json:"app_id"`
}

func newTicketResp(t service.Ticket) ticketResp {
	r := ticketResp{Session: t.Session, Token: t.Credential.Token, AppID: t.AppID}
	if t.Credential.Issued() {
		exp := t.Credential.ExpiresAt
		r.ExpiresAt = &exp
	}
	return r
}

// Start: POST /live/start (JWT).  The caller becomes the host.
func (h *LiveHandler) Start(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req startReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	t, err := h.Live.Start(ctx, uid, service.StartInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return writeError(c, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, newTicketResp(t))
}

// Join: POST /live/join/:id.  Listeners need no account.
func (h *LiveHandler) Join(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	t, err := h.Live.Join(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newTicketResp(t))
}

// End: POST /live/end/:id (JWT, host only).  An optional multipart file
// field "audio" carries the host's recording.
func (h *LiveHandler) End(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	var audio *service.RecordedAudio
	fh, err := c.FormFile("audio")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable audio upload"})
		}
		defer f.Close()
		audio = &service.RecordedAudio{
			Body:        f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid multipart body"})
	}

	// Uploads can be large; give the whole end flow more room than reads.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()
	res, err := h.Live.End(ctx, id, uid, audio)
	if err != nil {
		return writeError(c, err)
	}
	msg := "Live session ended"
	if res.AlreadyEnded {
		msg = "Live session already ended"
	} else {
		h.purge(ctx)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       msg,
		"session":       res.Session,
		"already_ended": res.AlreadyEnded,
	})
}

// Active: GET /live/active.
func (h *LiveHandler) Active(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Live.ListActive(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get: GET /live/:id, with the current chat occupancy.
func (h *LiveHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	v, err := h.Live.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, struct {
		model.LiveSessionView
		ChatParticipants int `json:"chat_participants"`
	}{v, h.Rooms.RoomSize(strconv.FormatUint(id, 10))})
}

// Mine: GET /live/mine (JWT), the caller's sessions in any state.
func (h *LiveHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Live.History(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *LiveHandler) purge(ctx context.Context) {
	if h.Cache != nil {
		h.Cache.Purge(ctx)
	}
}
