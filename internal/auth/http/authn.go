package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// RequireRole authenticates the bearer token through sessions.Authorize and
// stores the user snapshot in the request context.
func RequireRole(sessions *service.SessionService, role domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httpx.BearerToken(r)
			if !ok {
				httpx.WriteBearerError(w, http.StatusUnauthorized, "invalid_token", "Missing bearer token")
				return
			}

			user, err := sessions.Authorize(r.Context(), token, role)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			ctx := httpx.WithUser(r.Context(), jwtx.UserClaim{
				ID:        user.ID,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Username:  user.Username,
				Role:      user.Role.String(),
			})
			ctx = slogx.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireSubject rejects requests whose {username} path value is not the
// authenticated user.
func requireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := httpx.UserFromContext(r.Context())
		if !ok || u.Username != r.PathValue("username") {
			writeServiceError(w, r, service.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
