package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/podcast-live/internal/model"
)

// LiveSessionRepo stores live broadcast sessions.  Every state change is a
// single conditional statement (or one transaction for Start) so concurrent
// handlers never need an application-level lock: the viewer counter is
// incremented in place and the end transition only matches live rows.
type LiveSessionRepo struct {
	db *sql.DB
}

// NewLiveSessionRepo returns a LiveSessionRepo bound to the given database.
func NewLiveSessionRepo(db *sql.DB) *LiveSessionRepo { return &LiveSessionRepo{db: db} }

const liveSessionColumns = `id, host_id, title, description, category_id, status, viewers, channel, started_at, ended_at`

// liveViewSelect resolves host and category for display.  Callers append a
// WHERE clause.
const liveViewSelect = `SELECT ls.id, ls.host_id, u.username, ls.title, ls.description,
       ls.category_id, c.name, ls.status, ls.viewers, ls.channel, ls.started_at, ls.ended_at
  FROM live_sessions ls
  JOIN users u ON u.id = ls.host_id
  LEFT JOIN categories c ON c.id = ls.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// Start force-ends every live session owned by s.HostID and inserts s as the
// host's new live session, all in one transaction.  On success s.ID is
// populated and the IDs of the sessions that were force-ended are returned.
func (r *LiveSessionRepo) Start(ctx context.Context, s *model.LiveSession) (ended []uint64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock the host's live rows so two concurrent starts serialise here.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM live_sessions WHERE host_id = ? AND status = 'live' FOR UPDATE`, s.HostID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uint64
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ended = append(ended, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	if len(ended) > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE live_sessions SET status = 'ended', ended_at = ? WHERE host_id = ? AND status = 'live'`,
			s.StartedAt, s.HostID); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO live_sessions (host_id, title, description, category_id, status, viewers, channel, started_at)
		 VALUES (?, ?, ?, ?, 'live', 0, ?, ?)`,
		s.HostID, s.Title, s.Description, nullableID(s.CategoryID), s.Channel, s.StartedAt)
	if err != nil {
		if isDuplicate(err) {
			err = ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	s.ID = uint64(id)
	s.Status = model.LiveStatusLive
	s.Viewers = 0
	s.EndedAt = nil
	return ended, nil
}

// GetByID returns the raw session row or ErrNotFound.
func (r *LiveSessionRepo) GetByID(ctx context.Context, id uint64) (model.LiveSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+liveSessionColumns+` FROM live_sessions WHERE id = ?`, id)
	s, err := scanLiveSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// GetView returns the display form of a session or ErrNotFound.
func (r *LiveSessionRepo) GetView(ctx context.Context, id uint64) (model.LiveSessionView, error) {
	row := r.db.QueryRowContext(ctx, liveViewSelect+` WHERE ls.id = ?`, id)
	v, err := scanLiveView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// IncrementViewers adds one viewer to a live session.  It returns
// ErrNotFound when the session does not exist or has already ended.
func (r *LiveSessionRepo) IncrementViewers(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE live_sessions SET viewers = viewers + 1 WHERE id = ? AND status = 'live'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEnded performs the live → ended transition.  It reports false when the
// session was not live, which lets a second end call be a no-op.
func (r *LiveSessionRepo) MarkEnded(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE live_sessions SET status = 'ended', ended_at = ? WHERE id = ? AND status = 'live'`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListActive returns every live session, newest first.
func (r *LiveSessionRepo) ListActive(ctx context.Context) ([]model.LiveSessionView, error) {
	return r.listViews(ctx, liveViewSelect+` WHERE ls.status = 'live' ORDER BY ls.started_at DESC, ls.id DESC`)
}

// ListByHost returns a host's sessions in any state, newest first.
func (r *LiveSessionRepo) ListByHost(ctx context.Context, hostID uint64) ([]model.LiveSessionView, error) {
	return r.listViews(ctx, liveViewSelect+` WHERE ls.host_id = ? ORDER BY ls.started_at DESC, ls.id DESC`, hostID)
}

func (r *LiveSessionRepo) listViews(ctx context.Context, query string, args ...any) ([]model.LiveSessionView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.LiveSessionView, 0)
	for rows.Next() {
		v, err := scanLiveView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanLiveSession(row rowScanner) (model.LiveSession, error) {
	var (
		s        model.LiveSession
		category sql.NullInt64
		status   string
		endedAt  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.HostID, &s.Title, &s.Description, &category,
		&status, &s.Viewers, &s.Channel, &s.StartedAt, &endedAt)
	if err != nil {
		return s, err
	}
	s.Status = model.LiveStatus(status)
	if category.Valid {
		id := uint64(category.Int64)
		s.CategoryID = &id
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

func scanLiveView(row rowScanner) (model.LiveSessionView, error) {
	var (
		v            model.LiveSessionView
		categoryID   sql.NullInt64
		categoryName sql.NullString
		status       string
		endedAt      sql.NullTime
	)
	err := row.Scan(&v.ID, &v.Host.ID, &v.Host.Username, &v.Title, &v.Description,
		&categoryID, &categoryName, &status, &v.Viewers, &v.Channel, &v.StartedAt, &endedAt)
	if err != nil {
		return v, err
	}
	v.Status = model.LiveStatus(status)
	if categoryID.Valid {
		v.Category = &model.CategoryRef{ID: uint64(categoryID.Int64), Name: categoryName.String}
	}
	if endedAt.Valid {
		t := endedAt.Time
		v.EndedAt = &t
	}
	return v, nil
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}
