package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

type errorMapping struct {
	status int
	desc   string
}

// Client facing descriptions are fixed per category; the underlying error
// only goes to the log.
var errorMappings = map[string]errorMapping{
	"bad_credentials":       {http.StatusUnauthorized, "Username or password is incorrect"},
	"no_such_user":          {http.StatusNotFound, "No such user"},
	"invalid_username":      {http.StatusBadRequest, "Username is required, at most 30 characters and must be unique"},
	"invalid_password":      {http.StatusBadRequest, "Password must be 7 to 30 characters and contain a digit"},
	"invalid_name":          {http.StatusBadRequest, "Names must be at most 100 characters"},
	"invalid_refresh_token": {http.StatusUnauthorized, "Refresh token is invalid or expired"},
	"invalid_signature":     {http.StatusUnauthorized, "Access token is invalid"},
	"token_expired":         {http.StatusUnauthorized, "Access token has expired"},
	"forbidden":             {http.StatusForbidden, "Insufficient role for this operation"},
	"storage_unavailable":   {http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// writeServiceError maps err onto a status and fixed description.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	code := service.ErrorCode(err)
	m, ok := errorMappings[code]
	if !ok {
		log.Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	if m.status >= http.StatusInternalServerError {
		log.Error("request failed", "code", code, "error", err)
	} else {
		log.Info("request rejected", "code", code, "error", err)
	}

	if errors.Is(err, service.ErrTokenExpired) || errors.Is(err, service.ErrInvalidSignature) {
		httpx.WriteBearerError(w, m.status, "invalid_token", m.desc)
		return
	}
	httpx.WriteError(w, m.status, code, m.desc)
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", desc)
}
