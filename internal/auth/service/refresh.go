package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/idx"
)

// RefreshTokenStore persists refresh tokens by fingerprint and enforces the
// maximum age and single use rotation.
type RefreshTokenStore struct {
	Store store.Store
	Now   func() time.Time
}

func (s *RefreshTokenStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue mints a refresh token for userID and persists it through q, which
// may be the root store or an open transaction. It returns the opaque value
// and when it stops being accepted.
func (s *RefreshTokenStore) Issue(ctx context.Context, q store.Queries, userID string) (string, time.Time, error) {
	now := s.now()
	value, err := cryptox.NewRefreshValue(now)
	if err != nil {
		return "", time.Time{}, err
	}

	rec := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(value),
		CreatedAt: now,
	}
	if err := q.RefreshTokens().CreateRefreshToken(ctx, rec); err != nil {
		return "", time.Time{}, storageErr(err)
	}
	return value, rec.ExpiresAt(), nil
}

// Validate looks value up. An unknown value fails with ErrRefreshNotFound;
// a value past its maximum age is deleted and fails with ErrRefreshExpired.
func (s *RefreshTokenStore) Validate(ctx context.Context, value string) (domain.RefreshToken, error) {
	hash := cryptox.FingerprintToken(value)

	rec, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.RefreshToken{}, ErrRefreshNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, storageErr(err)
	}

	if rec.Expired(s.now()) {
		if _, err := s.Store.RefreshTokens().DeleteRefreshTokenByHash(ctx, hash); err != nil {
			return domain.RefreshToken{}, storageErr(err)
		}
		return domain.RefreshToken{}, ErrRefreshExpired
	}
	return rec, nil
}

// Rotate replaces the (userID, oldValue) record with newValue in one
// transaction. When nothing matches oldValue, because it never existed or a
// concurrent caller already rotated it, nothing is inserted and
// ErrRotationFailed is returned.
func (s *RefreshTokenStore) Rotate(ctx context.Context, userID, oldValue, newValue string) (domain.RefreshToken, error) {
	now := s.now()
	next := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(newValue),
		CreatedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.RefreshTokens().DeleteRefreshToken(ctx, userID, cryptox.FingerprintToken(oldValue))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRotationFailed
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	if err != nil {
		return domain.RefreshToken{}, storageErr(err)
	}
	return next, nil
}

// Revoke deletes value if it exists.
func (s *RefreshTokenStore) Revoke(ctx context.Context, value string) error {
	_, err := s.Store.RefreshTokens().DeleteRefreshTokenByHash(ctx, cryptox.FingerprintToken(value))
	return storageErr(err)
}

// RevokeAll deletes every refresh token of userID through q.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, q store.Queries, userID string) (int64, error) {
	n, err := q.RefreshTokens().DeleteUserRefreshTokens(ctx, userID)
	return n, storageErr(err)
}
