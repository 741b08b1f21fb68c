package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/podcast-live/internal/model"
)

// PodcastRepo reads podcasts and writes the archive rows produced when a
// live session ends.
type PodcastRepo struct{ DB *sql.DB }

func NewPodcastRepo(db *sql.DB) *PodcastRepo { return &PodcastRepo{DB: db} }

// LiveArchive is the data needed to turn an ended live session into a
// podcast.
type LiveArchive struct {
	SessionID   uint64
	OwnerID     uint64
	Title       string
	Description string
	CategoryID  *uint64
	AudioURL    string
}

const podcastSelect = `SELECT p.id, p.owner_id, u.username, p.title, p.description,
       p.category_id, c.name, p.audio_url, p.source_session_id, p.is_live_archive, p.created_at
  FROM podcasts p
  JOIN users u ON u.id = p.owner_id
  LEFT JOIN categories c ON c.id = p.category_id`

// CreateFromLive inserts the archive podcast for a live session.  A second
// call for the same session leaves the existing row untouched and returns
// its id, so redelivered queue messages do not duplicate podcasts.
func (r *PodcastRepo) CreateFromLive(ctx context.Context, a LiveArchive) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO podcasts (owner_id, title, description, category_id, audio_url, source_session_id, is_live_archive)
		 VALUES (?, ?, ?, ?, ?, ?, 1)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		a.OwnerID, a.Title, a.Description, nullableID(a.CategoryID), a.AudioURL, a.SessionID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// List returns podcasts newest first, optionally filtered by category.
func (r *PodcastRepo) List(ctx context.Context, categoryID *uint64, limit, offset int) ([]model.Podcast, error) {
	q := podcastSelect
	args := []any{}
	if categoryID != nil {
		q += ` WHERE p.category_id = ?`
		args = append(args, *categoryID)
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Podcast, 0)
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID returns one podcast or ErrNotFound.
func (r *PodcastRepo) GetByID(ctx context.Context, id uint64) (model.Podcast, error) {
	p, err := scanPodcast(r.DB.QueryRowContext(ctx, podcastSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func scanPodcast(row rowScanner) (model.Podcast, error) {
	var (
		p            model.Podcast
		categoryID   sql.NullInt64
		categoryName sql.NullString
		sourceID     sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Owner.ID, &p.Owner.Username, &p.Title, &p.Description,
		&categoryID, &categoryName, &p.AudioURL, &sourceID, &p.IsLiveArchive, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	if categoryID.Valid {
		p.Category = &model.CategoryRef{ID: uint64(categoryID.Int64), Name: categoryName.String}
	}
	if sourceID.Valid {
		id := uint64(sourceID.Int64)
		p.SourceSessionID = &id
	}
	return p, nil
}
