package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
	"github.com/aussiebroadwan/storefront/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newUser(username string) domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.User{
		ID:           idx.New().String(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Username:     username,
		PasswordHash: "$argon2id$stub",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByUsername(ctx, "ada")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, domain.RoleUser, got.Role)
	require.True(t, u.CreatedAt.Equal(got.CreatedAt))

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, got, byID)

	_, err = s.Users().GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := newUser("ada")
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	other := newUser("grace")
	require.NoError(t, s.Users().CreateUser(ctx, other))

	all, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got.Username = "grace"
	require.ErrorIs(t, s.Users().UpdateUser(ctx, got), store.ErrAlreadyExists)

	got.Username = "ada.l"
	got.FirstName = "Augusta"
	got.UpdatedAt = time.Now()
	require.NoError(t, s.Users().UpdateUser(ctx, got))

	renamed, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "ada.l", renamed.Username)
	require.Equal(t, "Augusta", renamed.FirstName)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "$argon2id$new"))
	require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	tok := domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: "fp-1", CreatedAt: created}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.True(t, created.Equal(got.CreatedAt), "created_at must round trip: %v", got.CreatedAt)

	// Wrong owner deletes nothing.
	n, err := s.RefreshTokens().DeleteRefreshToken(ctx, "someone-else", "fp-1")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.RefreshTokens().DeleteRefreshToken(ctx, u.ID, "fp-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	for _, fp := range []string{"a", "b", "c"} {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx,
			domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: fp, CreatedAt: created}))
	}
	n, err = s.RefreshTokens().DeleteRefreshTokenByHash(ctx, "a")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.RefreshTokens().DeleteUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// Tokens must point at a real user.
	err = s.RefreshTokens().CreateRefreshToken(ctx,
		domain.RefreshToken{ID: idx.New().String(), UserID: "ghost", TokenHash: "z", CreatedAt: created})
	require.Error(t, err)
}

func TestPurgeOldRefreshTokens(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	old := domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: "old", CreatedAt: cutoff.Add(-time.Minute)}
	fresh := domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: "fresh", CreatedAt: cutoff.Add(time.Minute)}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, old))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, fresh))

	n, err := s.RefreshTokens().DeleteRefreshTokensCreatedBefore(ctx, cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "fresh")
	require.NoError(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx,
		domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: "fp", CreatedAt: time.Now()}))
	require.NoError(t, s.Orders().CreateOrder(ctx,
		domain.Order{ID: idx.New().String(), UserID: u.ID, Status: domain.OrderOpen, CreatedAt: time.Now()}))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))

	_, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "fp")
	require.ErrorIs(t, err, store.ErrNotFound)

	orders, err := s.Orders().ListUserOrders(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	fulfilled := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first := domain.Order{ID: idx.New().String(), UserID: u.ID, Status: domain.OrderFulfilled, TotalCents: 1299,
		DateFulfilled: &fulfilled, CreatedAt: time.Now().Add(-time.Hour)}
	second := domain.Order{ID: idx.New().String(), UserID: u.ID, Status: domain.OrderOpen, CreatedAt: time.Now()}
	require.NoError(t, s.Orders().CreateOrder(ctx, first))
	require.NoError(t, s.Orders().CreateOrder(ctx, second))

	orders, err := s.Orders().ListUserOrders(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, second.ID, orders[0].ID)
	require.Nil(t, orders[0].DateFulfilled)
	require.Equal(t, int64(1299), orders[1].TotalCents)
	require.NotNil(t, orders[1].DateFulfilled)
	require.True(t, fulfilled.Equal(*orders[1].DateFulfilled))
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, newUser("rolled-back")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().GetUserByUsername(ctx, "rolled-back")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, newUser("committed"))
	}))
	_, err = s.Users().GetUserByUsername(ctx, "committed")
	require.NoError(t, err)
}

func TestFileStoreMigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")

	s, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Users().CreateUser(context.Background(), newUser("ada")))
	require.NoError(t, s.Close())

	s, err = sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))

	_, err = s.Users().GetUserByUsername(context.Background(), "ada")
	require.NoError(t, err)
}

func TestFileStoreRotationSingleWinner(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	u := newUser("ada")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	created := time.Now().UTC()
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx,
		domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: "old", CreatedAt: created}))

	errLost := errors.New("lost")
	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				n, err := tx.RefreshTokens().DeleteRefreshToken(ctx, u.ID, "old")
				if err != nil {
					return err
				}
				if n == 0 {
					return errLost
				}
				return tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
					ID:        idx.New().String(),
					UserID:    u.ID,
					TokenHash: fmt.Sprintf("new-%d", i),
					CreatedAt: created,
				})
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, errLost):
				lost++
			default:
				t.Errorf("rotation failed: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, racers-1, lost)

	// Exactly one successor survives.
	n, err := s.RefreshTokens().DeleteUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
