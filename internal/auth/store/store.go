package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so that a transaction can only be opened from the root.
type Store interface {
	Queries

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Queries is the set of repositories reachable both from the root store and
// from inside a transaction.
type Queries interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Orders() Orders
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Queries
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used at login and for verified account changes.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// ListUsers returns every user ordered by creation (oldest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// A taken username yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser rewrites names, username and password_hash and bumps
	// updated_at. A taken username yields ErrAlreadyExists.
	UpdateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash swaps in a rehashed digest.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to refresh_tokens and orders (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteRefreshToken removes the (userID, hash) row and reports how many
	// rows went. Rotation relies on the count.
	DeleteRefreshToken(ctx context.Context, userID, hash string) (int64, error)

	// DeleteRefreshTokenByHash removes a token whoever owns it.
	DeleteRefreshTokenByHash(ctx context.Context, hash string) (int64, error)

	// DeleteUserRefreshTokens drops every token of a user (password change).
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	// DeleteRefreshTokensCreatedBefore purges tokens issued before cutoff.
	DeleteRefreshTokensCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, o domain.Order) error

	// ListUserOrders returns a user's orders, newest first.
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
}
