package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var cookieSecret = []byte("cookie-secret-cookie-secret-0123")

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := httpx.BearerToken(req)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

func TestWriteBearerError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteBearerError(rec, http.StatusUnauthorized, "invalid_token", "token expired")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer error="invalid_token", error_description="token expired"`, rec.Header().Get("WWW-Authenticate"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_token","error_description":"token expired"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Username string `json:"username"`
	}

	decode := func(raw, contentType string) (body, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		var b body
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"username":"ada"}`, "application/json; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, "ada", b.Username)

	_, err = decode(`{"username":"ada","role":"admin"}`, "application/json")
	require.Error(t, err, "unknown fields are rejected")

	_, err = decode(`{"username":"ada"}{}`, "application/json")
	require.Error(t, err)

	_, err = decode(`username=ada`, "application/x-www-form-urlencoded")
	require.Error(t, err)
}

func TestUserContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := httpx.UserFromContext(req.Context())
	require.False(t, ok)

	u := jwtx.UserClaim{ID: "01HZY3M8C9V4Q2W6T0R5P7N1KX", Username: "ada", Role: "admin"}
	got, ok := httpx.UserFromContext(httpx.WithUser(req.Context(), u))
	require.True(t, ok)
	require.Equal(t, u, got)
}

func TestSignedCookies(t *testing.T) {
	_, err := httpx.NewSignedCookies([]byte("short"), true)
	require.ErrorIs(t, err, httpx.ErrWeakCookieKey)

	jar, err := httpx.NewSignedCookies(cookieSecret, true)
	require.NoError(t, err)

	expires := time.Now().Add(100 * 24 * time.Hour)
	rec := httptest.NewRecorder()
	require.NoError(t, jar.Set(rec, "refresh_token", "opaque-value", expires))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.WithinDuration(t, expires, c.Expires, time.Second)
	require.NotEqual(t, "opaque-value", c.Value)

	t.Run("round trip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(c)
		v, err := jar.Get(req, "refresh_token")
		require.NoError(t, err)
		require.Equal(t, "opaque-value", v)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := jar.Get(httptest.NewRequest(http.MethodPost, "/", nil), "refresh_token")
		require.ErrorIs(t, err, httpx.ErrNoCookie)
	})

	t.Run("tampered value", func(t *testing.T) {
		b := []byte(c.Value)
		i := len(b) / 2
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: string(b)})
		_, err := jar.Get(req, "refresh_token")
		require.ErrorIs(t, err, httpx.ErrBadCookieSig)
	})

	t.Run("moved to another cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: c.Value})
		_, err := jar.Get(req, "session")
		require.ErrorIs(t, err, httpx.ErrBadCookieSig)
	})

	t.Run("unsigned", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "opaque-value"})
		_, err := jar.Get(req, "refresh_token")
		require.ErrorIs(t, err, httpx.ErrBadCookieSig)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := httpx.NewSignedCookies([]byte("another-secret-another-secret-01"), true)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(c)
		_, err = other.Get(req, "refresh_token")
		require.ErrorIs(t, err, httpx.ErrBadCookieSig)
	})

	t.Run("clear", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar.Clear(rec, "refresh_token")
		cleared := rec.Result().Cookies()
		require.Len(t, cleared, 1)
		require.Equal(t, -1, cleared[0].MaxAge)
	})
}
