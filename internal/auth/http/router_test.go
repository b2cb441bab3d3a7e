package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var (
	tokenSecret  = []byte("0123456789abcdef0123456789abcdef")
	cookieSecret = []byte("fedcba9876543210fedcba9876543210")
)

type testServer struct {
	router   *Router
	sessions *service.SessionService
}

func newTestServer(t *testing.T, refreshInBody bool) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	access, err := service.NewAccessTokenIssuer(tokenSecret, "storefront-test")
	require.NoError(t, err)
	sessions := service.NewSessionService(st, cryptox.NewHasher("pepper", 1), access)

	cookies, err := httpx.NewSignedCookies(cookieSecret, false)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(httpx.NewMemoryLimiter(), cookies, "test", logger)
	r.SessionService = sessions
	r.UserService = &service.UserService{Store: st}
	r.RefreshTokenInBody = refreshInBody
	r.ReadyChecks["database"] = st.Ping
	r.ApplyRoutes()

	return &testServer{router: r, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mods {
		m(req)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func fromIP(ip string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", RefreshCookieName)
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) register(t *testing.T, username, password string) (SessionResponse, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/users", RegisterRequest{
		FirstName: "Alice", LastName: "Liddell", Username: username, Password: password,
	}, fromIP("signup-"+username))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionResponse](t, rec), refreshCookie(t, rec)
}

func TestRegisterRefreshFlow(t *testing.T) {
	s := newTestServer(t, false)

	reg, cookie := s.register(t, "alice", "secret12")
	require.Equal(t, "alice", reg.User.Username)
	require.Equal(t, "Bearer", reg.TokenType)
	require.Equal(t, 360, reg.ExpiresIn)
	require.Empty(t, reg.RefreshToken, "refresh token must stay in the cookie")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	rec := s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	next := decode[SessionResponse](t, rec)
	require.NotEqual(t, reg.AccessToken, next.AccessToken)
	nextCookie := refreshCookie(t, rec)
	require.NotEqual(t, cookie.Value, nextCookie.Value)

	// The first cookie was used up by the rotation.
	rec = s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", nil, withCookie(cookie))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_refresh_token", decode[httpx.ErrorResponse](t, rec).Error)
}

func TestRefreshRejectsTamperedCookie(t *testing.T) {
	s := newTestServer(t, false)
	reg, cookie := s.register(t, "alice", "secret12")

	forged := *cookie
	forged.Value = "x" + cookie.Value
	rec := s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", nil, withCookie(&forged))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenInBodyDebugMode(t *testing.T) {
	s := newTestServer(t, true)
	reg, _ := s.register(t, "alice", "secret12")
	require.NotEmpty(t, reg.RefreshToken)

	rec := s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", RefreshRequest{RefreshToken: reg.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	next := decode[SessionResponse](t, rec)
	require.NotEmpty(t, next.RefreshToken)
	require.NotEqual(t, reg.RefreshToken, next.RefreshToken)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)
	s.register(t, "alice", "secret12")

	rec := s.do(t, http.MethodPost, "/v1/users/auth", LoginRequest{Username: "alice", Password: "secret12"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 600, decode[SessionResponse](t, rec).ExpiresIn)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = s.do(t, http.MethodPost, "/v1/users/auth", LoginRequest{Username: "alice", Password: "secret13"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "bad_credentials", decode[httpx.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/v1/users/auth", LoginRequest{Username: "nobody", Password: "secret12"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "no_such_user", decode[httpx.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/v1/users/auth", map[string]string{"user": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterValidationErrors(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/v1/users", RegisterRequest{Username: "alice", Password: "abcdefg"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[httpx.ErrorResponse](t, rec)
	require.Equal(t, "invalid_password", body.Error)
	require.NotContains(t, body.ErrorDescription, "validator")

	rec = s.do(t, http.MethodPost, "/v1/users", RegisterRequest{Username: "abcdefghijklmnopqrstuvwxyz12345", Password: "abcdefg1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_username", decode[httpx.ErrorResponse](t, rec).Error)
}

func TestSignupRateLimit(t *testing.T) {
	s := newTestServer(t, false)

	for i := range 5 {
		rec := s.do(t, http.MethodPost, "/v1/users", RegisterRequest{Username: "", Password: ""}, fromIP("192.0.2.1"))
		require.Equal(t, http.StatusBadRequest, rec.Code, "request %d", i)
	}
	rec := s.do(t, http.MethodPost, "/v1/users", RegisterRequest{}, fromIP("192.0.2.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(t, http.MethodPost, "/v1/users", RegisterRequest{}, fromIP("192.0.2.2"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	s := newTestServer(t, false)
	user, _ := s.register(t, "alice", "secret12")

	rec := s.do(t, http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	rec = s.do(t, http.MethodGet, "/v1/users", nil, bearer(user.AccessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", decode[httpx.ErrorResponse](t, rec).Error)

	_, err := s.sessions.EnsureAdmin(context.Background(), "root", "rootpass1")
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/v1/users/auth", LoginRequest{Username: "root", Password: "rootpass1"})
	require.Equal(t, http.StatusOK, rec.Code)
	admin := decode[SessionResponse](t, rec)

	rec = s.do(t, http.MethodGet, "/v1/users", nil, bearer(admin.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]map[string]any](t, rec)
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotContains(t, u, "password_hash")
		require.NotContains(t, u, "PasswordHash")
	}
}

func TestShowUser(t *testing.T) {
	s := newTestServer(t, false)
	alice, _ := s.register(t, "alice", "secret12")
	s.register(t, "bob", "secret34")

	rec := s.do(t, http.MethodGet, "/v1/users/bob", nil, bearer(alice.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "bob", decode[map[string]any](t, rec)["username"])

	rec = s.do(t, http.MethodGet, "/v1/users/carol", nil, bearer(alice.AccessToken))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/users/bob", nil, bearer(alice.AccessToken+"x"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_token", decode[httpx.ErrorResponse](t, rec).Error)
}

func TestUpdateAndDeleteOwnAccountOnly(t *testing.T) {
	s := newTestServer(t, false)
	alice, _ := s.register(t, "alice", "secret12")
	s.register(t, "bob", "secret34")

	rec := s.do(t, http.MethodDelete, "/v1/users/bob", DeleteUserRequest{Password: "secret34"}, bearer(alice.AccessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/users/alice", UpdateUserRequest{
		FirstName: "Al", LastName: "L", Username: "alice", OldPassword: "secret12", NewPassword: "secret99",
	}, bearer(alice.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/v1/users/alice", DeleteUserRequest{Password: "secret12"}, bearer(alice.AccessToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "bad_credentials", decode[httpx.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodDelete, "/v1/users/alice", DeleteUserRequest{Password: "secret99"}, bearer(alice.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/users/auth", LoginRequest{Username: "alice", Password: "secret99"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, false)
	reg, cookie := s.register(t, "alice", "secret12")

	rec := s.do(t, http.MethodPost, "/v1/users/logout", nil, withCookie(cookie))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, refreshCookie(t, rec).MaxAge)

	rec = s.do(t, http.MethodPost, "/v1/users/"+reg.User.ID+"/refresh", nil, withCookie(cookie))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/users/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[HealthResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]string{"database": "ok"}, decode[HealthResponse](t, rec).Checks)
}

func TestReadyzReportsFailures(t *testing.T) {
	h := ReadyzHandler(time.Now(), "test", map[string]Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")

	body := decode[HealthResponse](t, rec)
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "ok", body.Checks["database"])
	require.Equal(t, "error", body.Checks["redis"])
}
