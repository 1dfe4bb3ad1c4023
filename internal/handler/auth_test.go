package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mfreitas/stockholder-portal/internal/auth"
	"github.com/mfreitas/stockholder-portal/internal/config"
	"github.com/mfreitas/stockholder-portal/internal/middleware"
	"github.com/mfreitas/stockholder-portal/internal/model"
)

// ----- in-memory stores backing the auth service -----

type memUsers struct{ byEmail map[string]model.User }

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = ""
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	for k, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			m.byEmail[k] = u
			return nil
		}
	}
	return sql.ErrNoRows
}

type memStamp struct {
	key string
	at  time.Time
}

type memAttempts struct{ recs []memStamp }

func (m *memAttempts) Record(_ context.Context, origin string, at time.Time) error {
	m.recs = append(m.recs, memStamp{origin, at})
	return nil
}

func (m *memAttempts) CountSince(_ context.Context, origin string, since time.Time) (int, error) {
	n := 0
	for _, r := range m.recs {
		if r.key == origin && r.at.After(since) {
			n++
		}
	}
	return n, nil
}

type memFailures struct{ recs []memStamp }

func (m *memFailures) RecordFailure(_ context.Context, email, _ string, at time.Time) error {
	m.recs = append(m.recs, memStamp{email, at})
	return nil
}

func (m *memFailures) CountSince(_ context.Context, email string, since time.Time) (int, error) {
	n := 0
	for _, r := range m.recs {
		if r.key == email && r.at.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memFailures) Clear(_ context.Context, email string) error {
	kept := m.recs[:0]
	for _, r := range m.recs {
		if r.key != email {
			kept = append(kept, r)
		}
	}
	m.recs = kept
	return nil
}

type memRevocations struct{ at map[uint64]time.Time }

func (m *memRevocations) Revoke(_ context.Context, userID uint64, at time.Time, _ string) error {
	if m.at == nil {
		m.at = map[uint64]time.Time{}
	}
	m.at[userID] = at
	return nil
}

func (m *memRevocations) RevokedAt(_ context.Context, userID uint64) (time.Time, bool, error) {
	at, ok := m.at[userID]
	return at, ok, nil
}

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecretPass"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &memUsers{byEmail: map[string]model.User{
		"user@x.com": {ID: 7, Name: "Pat Example", Email: "user@x.com", PasswordHash: string(hash)},
	}}
	svc := auth.NewService(users, &memAttempts{}, &memFailures{}, &memRevocations{},
		zap.NewNop().Sugar(), bcrypt.MinCost)

	cfg := config.Config{Env: "test", SessionSecret: "test-secret", SessionTTLHours: 1}
	return NewAuthHandler(cfg, svc, nil)
}

func postLogin(h *AuthHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/v1/auth/login", h.Login)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.9:4711"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestLoginSuccessSetsSessionCookie(t *testing.T) {
	h := newAuthHandler(t)
	rec := postLogin(h, `{"email":"user@x.com","password":"Sup3r$ecretPass"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "user@x.com", user["email"])
	assert.Equal(t, false, user["is_admin"])

	var sess *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			sess = ck
		}
	}
	require.NotNil(t, sess, "login must set the session cookie")
	assert.NotEmpty(t, sess.Value)
	assert.True(t, sess.HttpOnly)
	assert.False(t, sess.Secure, "Secure only in prod")
}

func TestLoginValidatesInput(t *testing.T) {
	h := newAuthHandler(t)

	rec := postLogin(h, `{"email":"","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postLogin(h, `{"email":"user@x.com","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postLogin(h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailureShapeIsUniform(t *testing.T) {
	h := newAuthHandler(t)

	unknown := postLogin(h, `{"email":"ghost@x.com","password":"whatever"}`)
	wrong := postLogin(h, `{"email":"user@x.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String(),
		"an enumerating client must not tell the two apart")
}

func TestLoginDisclosesRemainingNearLockout(t *testing.T) {
	h := newAuthHandler(t)

	// first two failures: generic message only
	for i := 0; i < 2; i++ {
		body := decode(t, postLogin(h, `{"email":"user@x.com","password":"wrong"}`))
		assert.NotContains(t, body, "attempts_remaining")
	}

	// third failure crosses the disclosure threshold
	body := decode(t, postLogin(h, `{"email":"user@x.com","password":"wrong"}`))
	assert.EqualValues(t, 2, body["attempts_remaining"])
	assert.Contains(t, body["message"], "2 attempts remaining")
}

func TestLoginLockoutFlow(t *testing.T) {
	h := newAuthHandler(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < auth.MaxFailedAttempts; i++ {
		last = postLogin(h, `{"email":"user@x.com","password":"wrong"}`)
	}
	require.Equal(t, http.StatusUnauthorized, last.Code)
	assert.Contains(t, decode(t, last)["message"], "Account locked")

	// locked out even with the correct password
	rec := postLogin(h, `{"email":"user@x.com","password":"Sup3r$ecretPass"}`)
	assert.Equal(t, http.StatusLocked, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "account_locked", body["error"])
	assert.EqualValues(t, auth.LockoutMinutes, body["lockout_minutes"])
}

// ----- change password -----

func postChangePassword(h *AuthHandler, uid uint64, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/v1/auth/change-password", h.ChangePassword, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, uid)
			return next(c)
		}
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change-password", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChangePasswordValidation(t *testing.T) {
	h := newAuthHandler(t)

	rec := postChangePassword(h, 7,
		`{"current_password":"Sup3r$ecretPass","new_password":"NewSecret!234","confirm_password":"different"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postChangePassword(h, 7,
		`{"current_password":"Sup3r$ecretPass","new_password":"weak","confirm_password":"weak"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postChangePassword(h, 7,
		`{"current_password":"nope","new_password":"NewSecret!234","confirm_password":"NewSecret!234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Current password is incorrect")
}

func TestChangePasswordEndsSession(t *testing.T) {
	h := newAuthHandler(t)

	rec := postChangePassword(h, 7,
		`{"current_password":"Sup3r$ecretPass","new_password":"NewSecret!234","confirm_password":"NewSecret!234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "log in again")

	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	// old credential is dead, new one works
	rec2 := postLogin(h, `{"email":"user@x.com","password":"Sup3r$ecretPass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	rec2 = postLogin(h, `{"email":"user@x.com","password":"NewSecret!234"}`)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestLogout(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()
	e.POST("/v1/auth/logout", h.Logout)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
