package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/podcast-live/internal/config"
	"github.com/iliyamo/podcast-live/internal/middleware"
	"github.com/iliyamo/podcast-live/internal/model"
	"github.com/iliyamo/podcast-live/internal/repository"
	"github.com/iliyamo/podcast-live/internal/utils"
)

type memUsers struct {
	mu    sync.Mutex
	next  uint64
	users map[uint64]model.User
}

func (m *memUsers) Create(_ context.Context, email, username, password string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return 0, repository.ErrEmailExists
		}
	}
	m.next++
	m.users[m.next] = model.User{ID: m.next, Email: email, Username: username, PasswordHash: hash, IsActive: true}
	return m.next, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type refreshRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*refreshRow
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[hash] = &refreshRow{userID: userID, exp: exp}
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[hash]
	if !ok || r.revoked || time.Now().After(r.exp) {
		return 0, errors.New("invalid refresh")
	}
	return r.userID, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}

func newAuthEcho() *echo.Echo {
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	h := NewAuthHandler(cfg,
		&memUsers{users: map[uint64]model.User{}},
		&memTokens{rows: map[string]*refreshRow{}},
	)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/refresh-access", h.RefreshAccess)
	e.POST("/auth/logout", h.Logout)
	e.GET("/me", h.Me, middleware.JWTAuth(testSecret))
	return e
}

func decodeAuth(t *testing.T, body string) authResp {
	t.Helper()
	var r authResp
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	require.NotEmpty(t, r.Access.Token)
	require.NotEmpty(t, r.Refresh.Token)
	return r
}

func refreshBody(token string) string {
	b, _ := json.Marshal(refreshReq{RefreshToken: token})
	return string(b)
}

func TestRegisterLoginRefreshRoundTrip(t *testing.T) {
	e := newAuthEcho()

	rec := serve(e, jsonReq(http.MethodPost, "/auth/register",
		`{"email":" Host@Example.com ","username":"host","password":"longenough"}`, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeAuth(t, rec.Body.String())
	assert.Equal(t, userPart{ID: 1, Email: "host@example.com", Username: "host"}, reg.User)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/login",
		`{"email":"host@example.com","password":"wrong-password"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/login",
		`{"email":"HOST@example.com","password":"longenough"}`, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeAuth(t, rec.Body.String())

	rec = serve(e, jsonReq(http.MethodGet, "/me", "", "Bearer "+login.Access.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":1,"username":"host"}`, rec.Body.String())

	rec = serve(e, jsonReq(http.MethodPost, "/auth/refresh", refreshBody(login.Refresh.Token), ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeAuth(t, rec.Body.String())
	assert.NotEqual(t, login.Refresh.Token, rotated.Refresh.Token)

	// rotation revokes the old refresh token
	rec = serve(e, jsonReq(http.MethodPost, "/auth/refresh", refreshBody(login.Refresh.Token), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/refresh-access", refreshBody(rotated.Refresh.Token), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access"`)
	assert.NotContains(t, rec.Body.String(), `"refresh"`)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/logout", "", "Bearer "+rotated.Access.Token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e, jsonReq(http.MethodPost, "/auth/refresh", refreshBody(rotated.Refresh.Token), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// register's token belonged to the same user
	rec = serve(e, jsonReq(http.MethodPost, "/auth/refresh", refreshBody(reg.Refresh.Token), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejects(t *testing.T) {
	e := newAuthEcho()

	rec := serve(e, jsonReq(http.MethodPost, "/auth/register",
		`{"email":"a@b.c","username":"a","password":"short"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password too short")

	rec = serve(e, jsonReq(http.MethodPost, "/auth/register", `{"email":"a@b.c","password":"longenough"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/register",
		`{"email":"a@b.c","username":"a","password":"longenough"}`, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = serve(e, jsonReq(http.MethodPost, "/auth/register",
		`{"email":"A@B.C","username":"other","password":"longenough"}`, ""))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogoutWithRefreshToken(t *testing.T) {
	e := newAuthEcho()
	rec := serve(e, jsonReq(http.MethodPost, "/auth/register",
		`{"email":"a@b.c","username":"a","password":"longenough"}`, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decodeAuth(t, rec.Body.String())

	rec = serve(e, jsonReq(http.MethodPost, "/auth/logout", refreshBody(reg.Refresh.Token), ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e, jsonReq(http.MethodPost, "/auth/logout", refreshBody(reg.Refresh.Token), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, jsonReq(http.MethodPost, "/auth/logout", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "refresh_token"))
}

func TestErrorHandlerRendersEchoErrors(t *testing.T) {
	var h echo.HTTPErrorHandler = ErrorHandler
	e := echo.New()
	e.HTTPErrorHandler = h

	rec := serve(e, jsonReq(http.MethodGet, "/nowhere", "", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}
