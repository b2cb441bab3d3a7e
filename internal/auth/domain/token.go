package domain

import "time"

// RefreshTokenMaxAge is how long a refresh token stays valid after it is
// created. Expiry is enforced lazily when the token is presented.
const RefreshTokenMaxAge = 100 * 24 * time.Hour

// RefreshToken models the stored refresh token record in the DB. Only the
// fingerprint of the opaque value is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	CreatedAt time.Time
}

// ExpiresAt is CreatedAt plus RefreshTokenMaxAge.
func (t RefreshToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(RefreshTokenMaxAge)
}

// Expired reports whether the token is older than RefreshTokenMaxAge at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// Session is what login, registration and refresh hand back to the caller.
type Session struct {
	User             PublicUser    `json:"user"`
	AccessToken      string        `json:"access_token"`
	AccessExpiresIn  time.Duration `json:"-"`
	RefreshToken     string        `json:"-"`
	RefreshExpiresAt time.Time     `json:"-"`
}
