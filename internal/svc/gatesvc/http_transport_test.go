package gatesvc_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/repo/session"
	"github.com/mkrupp/kbchat/internal/repo/user"
	"github.com/mkrupp/kbchat/internal/svc/credsvc"
	"github.com/mkrupp/kbchat/internal/svc/gatesvc"
)

// brokenSessionRepository fails every call like an unreachable redis.
type brokenSessionRepository struct{}

func (brokenSessionRepository) Save(context.Context, *domain.Session) error {
	return errors.Join(domain.ErrStorageUnavailable, errors.New("connection refused"))
}

func (brokenSessionRepository) Get(context.Context, string) (*domain.Session, bool, error) {
	return nil, false, errors.Join(domain.ErrStorageUnavailable, errors.New("connection refused"))
}

func (brokenSessionRepository) Delete(context.Context, string) error {
	return errors.Join(domain.ErrStorageUnavailable, errors.New("connection refused"))
}

func (brokenSessionRepository) Close() error { return nil }

func newCredentialStore(t *testing.T) *credsvc.CredentialStore {
	t.Helper()

	repo, err := user.NewSQLiteUserRepository(context.Background(), user.SQLiteUserRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "users.db"),
	})
	require.NoError(t, err)

	store, err := credsvc.NewCredentialStoreWithRepo(repo, credsvc.CredentialConfig{BcryptCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))

	t.Cleanup(func() { _ = store.Close() })

	return store
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T, sessions *gatesvc.SessionService) *testClient {
	t.Helper()

	server := httptest.NewServer(gatesvc.SessionMiddleware(gatesvc.NewHTTPTransport(sessions), sessions))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{t: t, server: server, client: &http.Client{Jar: jar}}
}

func (c *testClient) post(path string, form url.Values) (int, string) {
	c.t.Helper()

	resp, err := c.client.PostForm(c.server.URL+path, form)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	return resp.StatusCode, string(body)
}

func (c *testClient) status() domain.SessionStatusResponse {
	c.t.Helper()

	resp, err := c.client.Get(c.server.URL + "/auth/status")
	require.NoError(c.t, err)
	defer resp.Body.Close()

	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	var status domain.SessionStatusResponse
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&status))

	return status
}

func (c *testClient) sessionCookie() string {
	c.t.Helper()

	u, err := url.Parse(c.server.URL)
	require.NoError(c.t, err)

	for _, cookie := range c.client.Jar.Cookies(u) {
		if cookie.Name == "kbchat_session" {
			return cookie.Value
		}
	}

	return ""
}

func credentials(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func TestHTTPTransport_Flow(t *testing.T) {
	t.Parallel()

	sessions := newSessionService(t, newCredentialStore(t), nil)
	c := newTestServer(t, sessions)

	assert.False(t, c.status().Authenticated)

	code, _ := c.post("/auth/register", credentials("alice", "s3cret"))
	assert.Equal(t, http.StatusCreated, code)
	assert.False(t, c.status().Authenticated, "register must not authenticate")

	code, body := c.post("/auth/register", credentials("alice", "other"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "username already exists")

	code, wrongPassword := c.post("/auth/login", credentials("alice", "other"))
	assert.Equal(t, http.StatusUnauthorized, code)

	code, unknownUser := c.post("/auth/login", credentials("bob", "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, wrongPassword, unknownUser, "unknown user and wrong password must look the same")
	assert.Contains(t, unknownUser, "invalid username or password")

	preLoginID := c.sessionCookie()

	code, body = c.post("/auth/login", credentials("alice", "s3cret"))
	require.Equal(t, http.StatusOK, code)

	var loggedIn domain.SessionStatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &loggedIn))
	assert.Equal(t, domain.SessionStatusResponse{Authenticated: true, Username: "alice"}, loggedIn)
	assert.NotEqual(t, preLoginID, c.sessionCookie(), "login must issue a fresh session id")

	assert.Equal(t, domain.SessionStatusResponse{Authenticated: true, Username: "alice"}, c.status())

	code, _ = c.post("/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.False(t, c.status().Authenticated)
}

func TestHTTPTransport_OldCookieAfterLogout(t *testing.T) {
	t.Parallel()

	sessions := newSessionService(t, newCredentialStore(t), nil)
	c := newTestServer(t, sessions)

	c.post("/auth/register", credentials("alice", "s3cret"))

	code, _ := c.post("/auth/login", credentials("alice", "s3cret"))
	require.Equal(t, http.StatusOK, code)

	stolen := c.sessionCookie()
	require.NotEmpty(t, stolen)

	code, _ = c.post("/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, code)

	req, err := http.NewRequest(http.MethodGet, c.server.URL+"/auth/status", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "kbchat_session", Value: stolen})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var status domain.SessionStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Authenticated)
}

func TestHTTPTransport_BadRequests(t *testing.T) {
	t.Parallel()

	sessions := newSessionService(t, newCredentialStore(t), nil)
	c := newTestServer(t, sessions)

	tests := []struct {
		name string
		path string
		form url.Values
	}{
		{name: "register without username", path: "/auth/register", form: credentials("", "pw")},
		{name: "register without password", path: "/auth/register", form: credentials("alice", "")},
		{
			name: "register with long password",
			path: "/auth/register",
			form: credentials("alice", strings.Repeat("x", credsvc.MaxPasswordLength+1)),
		},
		{name: "login without username", path: "/auth/login", form: credentials("", "pw")},
		{name: "login without password", path: "/auth/login", form: credentials("alice", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := c.post(tt.path, tt.form)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestHTTPTransport_CredentialStorageUnavailable(t *testing.T) {
	t.Parallel()

	creds := newFakeCredentials()
	creds.err = errors.Join(domain.ErrStorageUnavailable, errors.New("disk I/O error"))

	c := newTestServer(t, newSessionService(t, creds, nil))

	code, _ := c.post("/auth/register", credentials("alice", "s3cret"))
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = c.post("/auth/login", credentials("alice", "s3cret"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestSessionMiddleware_SessionStorageUnavailable(t *testing.T) {
	t.Parallel()

	sessions, err := gatesvc.NewSessionService(func() (session.Repository, error) {
		return brokenSessionRepository{}, nil
	}, newFakeCredentials(), testSessionConfig(), nil)
	require.NoError(t, err)

	handler := gatesvc.SessionMiddleware(gatesvc.NewHTTPTransport(sessions), sessions)

	// a valid looking cookie forces a lookup
	started, err := sessions.Start(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: "kbchat_session", Value: started.ID})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionMiddleware_SetsCookie(t *testing.T) {
	t.Parallel()

	sessions := newSessionService(t, newFakeCredentials(), nil)
	handler := gatesvc.SessionMiddleware(gatesvc.NewHTTPTransport(sessions), sessions)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "kbchat_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}
