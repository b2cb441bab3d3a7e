package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

// UsersHandler serves the account endpoints behind bearer authentication.
type UsersHandler struct {
	Users    *service.UserService
	Sessions *service.SessionService
	Cookies  *httpx.SignedCookies
}

// HandleList handles GET /v1/users
//
//	@Summary		List users
//	@Description	Lists every account. Admin only.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		domain.PublicUser
//	@Failure		401	{object}	httpx.ErrorResponse	"invalid_token"
//	@Failure		403	{object}	httpx.ErrorResponse	"forbidden"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

// HandleShow handles GET /v1/users/{username}
//
//	@Summary		Show user
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			username	path		string	true	"Username"
//	@Success		200			{object}	domain.PublicUser
//	@Failure		401			{object}	httpx.ErrorResponse	"invalid_token"
//	@Failure		404			{object}	httpx.ErrorResponse	"no_such_user"
//	@Router			/v1/users/{username} [get].
func (h *UsersHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// HandleUpdate handles PUT /v1/users/{username}
//
//	@Summary		Update account
//	@Description	Replaces names, username and password after checking the old password.
//	@Description	Every refresh token of the account is revoked.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			username	path		string				true	"Current username"
//	@Param			request		body		UpdateUserRequest	true	"New account fields"
//	@Success		200			{object}	domain.PublicUser
//	@Failure		400			{object}	httpx.ErrorResponse	"invalid_username, invalid_password"
//	@Failure		401			{object}	httpx.ErrorResponse	"bad_credentials, invalid_token"
//	@Failure		403			{object}	httpx.ErrorResponse	"forbidden"
//	@Router			/v1/users/{username} [put].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON in request body")
		return
	}

	user, err := h.Sessions.UpdateAccount(r.Context(), r.PathValue("username"), req.OldPassword, service.AccountUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.Clear(w, RefreshCookieName)
	httpx.WriteJSON(w, http.StatusOK, user)
}

// HandleDelete handles DELETE /v1/users/{username}
//
//	@Summary		Delete account
//	@Description	Deletes the account, its refresh tokens and orders after checking the password.
//	@Tags			Users
//	@Accept			json
//	@Security		BearerAuth
//	@Param			username	path	string				true	"Username"
//	@Param			request		body	DeleteUserRequest	true	"Password confirmation"
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorResponse	"bad_credentials, invalid_token"
//	@Failure		403	{object}	httpx.ErrorResponse	"forbidden"
//	@Router			/v1/users/{username} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON in request body")
		return
	}

	if err := h.Sessions.DeleteAccount(r.Context(), r.PathValue("username"), req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.Clear(w, RefreshCookieName)
	w.WriteHeader(http.StatusNoContent)
}
