package httpx

import (
	"context"

	"github.com/aussiebroadwan/storefront/pkg/jwtx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// WithUser stores the authenticated user snapshot in ctx.
func WithUser(ctx context.Context, u jwtx.UserClaim) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext returns the snapshot stored by WithUser.
func UserFromContext(ctx context.Context) (jwtx.UserClaim, bool) {
	u, ok := ctx.Value(ctxKeyUser).(jwtx.UserClaim)
	return u, ok
}
