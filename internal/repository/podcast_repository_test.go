package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFromLiveIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPodcastRepo(db)

	q := regexp.QuoteMeta("ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)")
	a := LiveArchive{SessionID: 5, OwnerID: 7, Title: "Weekly Chat", AudioURL: "/uploads/a.webm"}
	mock.ExpectExec(q).WithArgs(7, "Weekly Chat", "", nil, "/uploads/a.webm", 5).
		WillReturnResult(sqlmock.NewResult(20, 1))
	// MySQL reports two affected rows for an update via ON DUPLICATE KEY.
	mock.ExpectExec(q).WithArgs(7, "Weekly Chat", "", nil, "/uploads/a.webm", 5).
		WillReturnResult(sqlmock.NewResult(20, 0))

	id, err := repo.CreateFromLive(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), id)

	id, err = repo.CreateFromLive(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPodcastListFiltersByCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPodcastRepo(db)
	cols := []string{"id", "owner_id", "username", "title", "description", "category_id", "name", "audio_url", "source_session_id", "is_live_archive", "created_at"}
	cat := uint64(2)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.category_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?")).
		WithArgs(2, 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(20, 7, "alice", "Weekly Chat", "", 2, "Technology", "/uploads/a.webm", 5, true, time.Now()))

	got, err := repo.List(context.Background(), &cat, 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsLiveArchive)
	require.NotNil(t, got[0].SourceSessionID)
	assert.Equal(t, uint64(5), *got[0].SourceSessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPodcastGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WHERE p.id = ").WithArgs(99).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = NewPodcastRepo(db).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCategoryRepo(db)

	mock.ExpectQuery("SELECT 1 FROM categories").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM categories").WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	ok, err := repo.Exists(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserCreateDuplicateMapsToConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice@example.com", "alice", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = NewUserRepo(db).Create(context.Background(), " Alice@Example.com ", "alice", "secret123", 4)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.ErrorIs(t, err, ErrConflict)
}
