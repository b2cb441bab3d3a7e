package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
)

// AccessTokenIssuer signs and checks the HS256 access tokens that carry a
// user snapshot.
type AccessTokenIssuer struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	Now      func() time.Time
}

// NewAccessTokenIssuer builds an issuer whose signer and verifier share
// secret.
func NewAccessTokenIssuer(secret []byte, issuer string, opts ...jwtx.VerifierOption) (*AccessTokenIssuer, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	verifier, err := jwtx.NewVerifierHS256(secret, issuer, opts...)
	if err != nil {
		return nil, err
	}
	return &AccessTokenIssuer{Signer: signer, Verifier: verifier, Issuer: issuer}, nil
}

func (a *AccessTokenIssuer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Issue signs a token for user that expires ttl from now.
func (a *AccessTokenIssuer) Issue(user domain.PublicUser, ttl time.Duration) (string, error) {
	claims := jwtx.NewAccessClaims(jwtx.UserClaim{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		Role:      user.Role.String(),
	}, a.Issuer, ttl, a.now())
	return a.Signer.Sign(claims)
}

// Verify returns the user snapshot embedded in token. Expired tokens fail
// with ErrTokenExpired and every other defect with ErrInvalidSignature.
func (a *AccessTokenIssuer) Verify(token string) (domain.PublicUser, error) {
	claims, err := a.Verifier.Verify(token)
	if errors.Is(err, jwtx.ErrExpired) {
		return domain.PublicUser{}, ErrTokenExpired
	}
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	role, err := domain.ParseRole(claims.User.Role)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return domain.PublicUser{
		ID:        claims.User.ID,
		FirstName: claims.User.FirstName,
		LastName:  claims.User.LastName,
		Username:  claims.User.Username,
		Role:      role,
	}, nil
}
