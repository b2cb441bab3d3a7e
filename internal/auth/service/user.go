package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
)

// UserService serves read-only views of accounts. Digests never leave it.
type UserService struct {
	Store          store.Store
	StorageTimeout time.Duration
}

func (s *UserService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StorageTimeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// List returns every account, oldest first.
func (s *UserService) List(ctx context.Context) ([]domain.PublicUser, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetByUsername fetches one account.
func (s *UserService) GetByUsername(ctx context.Context, username string) (domain.PublicUser, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.PublicUser{}, ErrNoSuchUser
	}
	if err != nil {
		return domain.PublicUser{}, storageErr(err)
	}
	return u.Public(), nil
}
