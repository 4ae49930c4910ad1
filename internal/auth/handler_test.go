package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/paycycle/paycycle/internal/shared"
	_ "github.com/paycycle/paycycle/testing"
)

type fakeRepo struct {
	users    map[string]*User
	sessions map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[string]*User),
		sessions: make(map[string]int64),
	}
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (f *fakeRepo) CreateUser(_ context.Context, email, passwordHash string) (*User, error) {
	if _, ok := f.users[email]; ok {
		return nil, ErrEmailTaken
	}
	user := &User{
		ID:           int64(len(f.users) + 1),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	f.users[email] = user
	return user, nil
}

func (f *fakeRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	f.sessions[id] = userID
	return nil
}

func (f *fakeRepo) DeleteSession(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func newTestHandler(t *testing.T, repo Repository) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, NewService(repo), sessions, csrf), sessions
}

func seedUser(t *testing.T, repo *fakeRepo, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), email, string(hash))
	require.NoError(t, err)
	return user
}

func sessionRequest(t *testing.T, sessions *shared.SessionManager, method, target, body string) (*http.Request, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(t, repo, "payroll@practice.example", "correct horse battery")
	handler, sessions := newTestHandler(t, repo)

	req, sess := sessionRequest(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"payroll@practice.example","password":"correct horse battery"}`)
	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		UserID    int64  `json:"user_id"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, user.ID, resp.UserID)
	require.NotEmpty(t, resp.CSRFToken)
	require.Equal(t, "1", sess.User())
	require.Contains(t, repo.sessions, sess.ID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	seedUser(t, repo, "payroll@practice.example", "correct horse battery")
	handler, sessions := newTestHandler(t, repo)

	req, sess := sessionRequest(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"payroll@practice.example","password":"wrong password!"}`)
	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, sess.User())
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(t, repo, "payroll@practice.example", "correct horse battery")
	user.IsActive = false
	handler, sessions := newTestHandler(t, repo)

	req, _ := sessionRequest(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"payroll@practice.example","password":"correct horse battery"}`)
	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	handler, sessions := newTestHandler(t, newFakeRepo())

	req, _ := sessionRequest(t, sessions, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`)
	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := newFakeRepo()
	seedUser(t, repo, "payroll@practice.example", "correct horse battery")
	handler, sessions := newTestHandler(t, repo)

	req, sess := sessionRequest(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"payroll@practice.example","password":"correct horse battery"}`)
	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq = logoutReq.WithContext(shared.ContextWithSession(logoutReq.Context(), sess))
	rr = httptest.NewRecorder()
	handler.handleLogout(rr, logoutReq)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotContains(t, repo.sessions, sess.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	seedUser(t, repo, "payroll@practice.example", "correct horse battery")
	handler, sessions := newTestHandler(t, repo)

	req, _ := sessionRequest(t, sessions, http.MethodPost, "/users",
		`{"email":"payroll@practice.example","password":"another password"}`)
	rr := httptest.NewRecorder()
	handler.RegisterUser(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
}
