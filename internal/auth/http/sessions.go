package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// SessionsHandler serves registration, login, refresh and logout.
type SessionsHandler struct {
	Sessions *service.SessionService
	Cookies  *httpx.SignedCookies

	// RefreshTokenInBody also returns the refresh token in JSON and accepts
	// it from the request body. Debug and test use only.
	RefreshTokenInBody bool
}

// HandleRegister handles POST /v1/users
//
//	@Summary		Register
//	@Description	Creates a user account with an empty open order and starts a session.
//	@Description	The refresh token is set as an HttpOnly signed cookie.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest			true	"New account"
//	@Success		201		{object}	SessionResponse			"user, access_token, expires_in"
//	@Failure		400		{object}	httpx.ErrorResponse		"invalid_username, invalid_password, invalid_request"
//	@Failure		429		{object}	httpx.ErrorResponse		"rate_limit_exceeded"
//	@Failure		503		{object}	httpx.ErrorResponse		"storage_unavailable"
//	@Router			/v1/users [post].
func (h *SessionsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON in request body")
		return
	}

	sess, err := h.Sessions.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusCreated, sess)
}

// HandleLogin handles POST /v1/users/auth
//
//	@Summary		Log in
//	@Description	Verifies the credentials and starts a session. The access token lives 10 minutes.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest			true	"Credentials"
//	@Success		200		{object}	SessionResponse			"user, access_token, expires_in"
//	@Failure		400		{object}	httpx.ErrorResponse		"invalid_request"
//	@Failure		401		{object}	httpx.ErrorResponse		"bad_credentials"
//	@Failure		404		{object}	httpx.ErrorResponse		"no_such_user"
//	@Failure		429		{object}	httpx.ErrorResponse		"rate_limit_exceeded"
//	@Router			/v1/users/auth [post].
func (h *SessionsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON in request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	sess, err := h.Sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, sess)
}

// HandleRefresh handles POST /v1/users/{id}/refresh
//
//	@Summary		Refresh session
//	@Description	Rotates the refresh token cookie and returns a new access token.
//	@Description	A refresh token works once; on failure the client must log in again.
//	@Tags			Sessions
//	@Produce		json
//	@Param			id	path		string				true	"User ID"
//	@Success		200	{object}	SessionResponse		"user, access_token, expires_in"
//	@Failure		401	{object}	httpx.ErrorResponse	"invalid_refresh_token"
//	@Failure		429	{object}	httpx.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/users/{id}/refresh [post].
func (h *SessionsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	value, err := h.refreshValue(w, r)
	if err != nil {
		slogx.FromContext(r.Context()).Info("refresh token unreadable", "error", err)
		h.Cookies.Clear(w, RefreshCookieName)
		writeServiceError(w, r, service.ErrInvalidRefreshToken)
		return
	}

	sess, err := h.Sessions.Refresh(r.Context(), value, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			h.Cookies.Clear(w, RefreshCookieName)
		}
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, sess)
}

// HandleLogout handles POST /v1/users/logout
//
//	@Summary		Log out
//	@Description	Revokes the presented refresh token and clears the cookie. Unknown tokens are ignored.
//	@Tags			Sessions
//	@Success		204
//	@Failure		503	{object}	httpx.ErrorResponse	"storage_unavailable"
//	@Router			/v1/users/logout [post].
func (h *SessionsHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	value, _ := h.refreshValue(w, r)
	if err := h.Sessions.Logout(r.Context(), value); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.Clear(w, RefreshCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// refreshValue reads the refresh token from the signed cookie, falling back
// to the body when the debug switch is on.
func (h *SessionsHandler) refreshValue(w http.ResponseWriter, r *http.Request) (string, error) {
	value, err := h.Cookies.Get(r, RefreshCookieName)
	if err == nil || !h.RefreshTokenInBody || r.ContentLength == 0 {
		return value, err
	}

	var req RefreshRequest
	if derr := httpx.DecodeJSON(w, r, &req); derr != nil {
		return "", derr
	}
	if req.RefreshToken == "" {
		return "", err
	}
	return req.RefreshToken, nil
}

func (h *SessionsHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, sess domain.Session) {
	if err := h.Cookies.Set(w, RefreshCookieName, sess.RefreshToken, sess.RefreshExpiresAt); err != nil {
		writeServiceError(w, r, fmt.Errorf("encode refresh cookie: %w", err))
		return
	}

	resp := SessionResponse{
		User:        sess.User,
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(sess.AccessExpiresIn / time.Second),
	}
	if h.RefreshTokenInBody {
		resp.RefreshToken = sess.RefreshToken
	}
	httpx.WriteJSON(w, status, resp)
}
