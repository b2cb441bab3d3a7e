package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"user", "admin"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		require.Equal(t, s, r.String())
	}

	for _, s := range []string{"", "Admin", "root", "user "} {
		_, err := ParseRole(s)
		require.Error(t, err, s)
	}
}

func TestRoleSatisfies(t *testing.T) {
	require.True(t, RoleUser.Satisfies(RoleUser))
	require.False(t, RoleUser.Satisfies(RoleAdmin))
	require.True(t, RoleAdmin.Satisfies(RoleAdmin))
	require.True(t, RoleAdmin.Satisfies(RoleUser))
}

func TestRefreshTokenExpiry(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := RefreshToken{CreatedAt: created}

	require.Equal(t, created.AddDate(0, 0, 100), tok.ExpiresAt())
	require.False(t, tok.Expired(created.Add(99*24*time.Hour)))
	require.False(t, tok.Expired(tok.ExpiresAt().Add(-time.Nanosecond)))
	require.True(t, tok.Expired(tok.ExpiresAt()))
	require.True(t, tok.Expired(created.Add(101*24*time.Hour)))
}

func TestUserPublicOmitsDigest(t *testing.T) {
	u := User{ID: "1", FirstName: "Ada", LastName: "L", Username: "ada", PasswordHash: "$argon2id$...", Role: RoleUser}
	p := u.Public()
	require.Equal(t, PublicUser{ID: "1", FirstName: "Ada", LastName: "L", Username: "ada", Role: RoleUser}, p)
}
