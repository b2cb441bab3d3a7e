package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

const (
	DefaultLoginAccessTTL   = 10 * time.Minute
	DefaultRefreshAccessTTL = 6 * time.Minute
	DefaultStorageTimeout   = 5 * time.Second
)

// SessionService sequences the user and refresh token lifecycles:
// login, registration, refresh, authorization and account removal.
type SessionService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Access *AccessTokenIssuer
	Tokens *RefreshTokenStore

	// LoginAccessTTL applies to tokens minted by Login, RefreshAccessTTL to
	// those minted by Register and Refresh.
	LoginAccessTTL   time.Duration
	RefreshAccessTTL time.Duration

	// StorageTimeout bounds the storage work of a single operation.
	StorageTimeout time.Duration

	Now func() time.Time
}

// NewSessionService wires a SessionService with the default TTLs.
func NewSessionService(st store.Store, hasher *cryptox.Hasher, access *AccessTokenIssuer) *SessionService {
	return &SessionService{
		Store:            st,
		Hasher:           hasher,
		Access:           access,
		Tokens:           &RefreshTokenStore{Store: st},
		LoginAccessTTL:   DefaultLoginAccessTTL,
		RefreshAccessTTL: DefaultRefreshAccessTTL,
		StorageTimeout:   DefaultStorageTimeout,
	}
}

// RegisterInput carries the fields a new account is created from.
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
}

// AccountUpdate replaces every editable field of an account.
type AccountUpdate struct {
	FirstName   string
	LastName    string
	Username    string
	NewPassword string
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StorageTimeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Login checks the credentials and opens a session.
func (s *SessionService) Login(ctx context.Context, username, password string) (domain.Session, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	user, err := s.verifyCredentials(ctx, username, password)
	if err != nil {
		return domain.Session{}, err
	}
	s.upgradeDigest(ctx, user, password)

	refresh, refreshExp, err := s.Tokens.Issue(ctx, s.Store, user.ID)
	if err != nil {
		return domain.Session{}, err
	}

	slogx.FromContext(ctx).Info("user logged in", slog.String("user_id", user.ID))
	return s.session(user.Public(), s.LoginAccessTTL, refresh, refreshExp)
}

// Register creates the account, its first open order and a refresh token in
// a single transaction, then opens a session.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (domain.Session, error) {
	if err := validateAccount(accountFields{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Username:  in.Username,
		Password:  in.Password,
	}); err != nil {
		return domain.Session{}, err
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		PasswordHash: digest,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		refresh    string
		refreshExp time.Time
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrInvalidUsername
			}
			return err
		}

		if err := tx.Orders().CreateOrder(ctx, domain.Order{
			ID:        idx.NewAt(now).String(),
			UserID:    user.ID,
			Status:    domain.OrderOpen,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("create initial order: %w", err)
		}

		var err error
		refresh, refreshExp, err = s.Tokens.Issue(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return domain.Session{}, storageErr(err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return s.session(user.Public(), s.RefreshAccessTTL, refresh, refreshExp)
}

// Refresh trades a refresh token of userID for a new access token and a
// successor refresh token. The presented value stops working either way:
// any failure leaves the caller needing to log in again.
func (s *SessionService) Refresh(ctx context.Context, oldValue, userID string) (domain.Session, error) {
	if oldValue == "" || userID == "" {
		return domain.Session{}, ErrInvalidRefreshToken
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	l := slogx.FromContext(ctx)

	rec, err := s.Tokens.Validate(ctx, oldValue)
	if err != nil {
		return domain.Session{}, s.refreshFailure(l, userID, err)
	}
	if rec.UserID != userID {
		l.Warn("refresh token presented for another user", slog.String("user_id", userID))
		return domain.Session{}, ErrInvalidRefreshToken
	}

	newValue, err := cryptox.NewRefreshValue(s.now())
	if err != nil {
		return domain.Session{}, err
	}
	next, err := s.Tokens.Rotate(ctx, userID, oldValue, newValue)
	if err != nil {
		return domain.Session{}, s.refreshFailure(l, userID, err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return domain.Session{}, storageErr(err)
	}

	return s.session(user.Public(), s.RefreshAccessTTL, newValue, next.ExpiresAt())
}

func (s *SessionService) refreshFailure(l *slog.Logger, userID string, err error) error {
	switch {
	case errors.Is(err, ErrRefreshNotFound),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrRotationFailed):
		l.Info("refresh rejected", slog.String("user_id", userID), slog.String("reason", err.Error()))
		return fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	default:
		return err
	}
}

// Authorize verifies an access token and checks that its role satisfies
// required. The role is trusted from the token.
func (s *SessionService) Authorize(ctx context.Context, token string, required domain.Role) (domain.PublicUser, error) {
	user, err := s.Access.Verify(token)
	if err != nil {
		return domain.PublicUser{}, err
	}
	if !user.Role.Satisfies(required) {
		slogx.FromContext(ctx).Info("insufficient role",
			slog.String("user_id", user.ID),
			slog.String("role", user.Role.String()),
			slog.String("required", required.String()))
		return domain.PublicUser{}, ErrForbidden
	}
	return user, nil
}

// DeleteAccount removes the account after re-checking its password. Refresh
// tokens and orders go with it.
func (s *SessionService) DeleteAccount(ctx context.Context, username, password string) error {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	user, err := s.verifyCredentials(ctx, username, password)
	if err != nil {
		return err
	}

	if err := s.Store.Users().DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoSuchUser
		}
		return storageErr(err)
	}

	slogx.FromContext(ctx).Info("account deleted", slog.String("user_id", user.ID))
	return nil
}

// UpdateAccount rewrites names, username and password of username after
// checking oldPassword. Every refresh token of the account is revoked.
func (s *SessionService) UpdateAccount(ctx context.Context, username, oldPassword string, upd AccountUpdate) (domain.PublicUser, error) {
	if err := validateAccount(accountFields{
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
		Username:  upd.Username,
		Password:  upd.NewPassword,
	}); err != nil {
		return domain.PublicUser{}, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	user, err := s.verifyCredentials(ctx, username, oldPassword)
	if err != nil {
		return domain.PublicUser{}, err
	}

	digest, err := s.Hasher.Hash(upd.NewPassword)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	user.FirstName = upd.FirstName
	user.LastName = upd.LastName
	user.Username = upd.Username
	user.PasswordHash = digest
	user.UpdatedAt = s.now()

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateUser(ctx, user); err != nil {
			switch {
			case errors.Is(err, store.ErrAlreadyExists):
				return ErrInvalidUsername
			case errors.Is(err, store.ErrNotFound):
				return ErrNoSuchUser
			}
			return err
		}
		var err error
		revoked, err = s.Tokens.RevokeAll(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return domain.PublicUser{}, storageErr(err)
	}

	slogx.FromContext(ctx).Info("account updated",
		slog.String("user_id", user.ID),
		slog.Int64("revoked_refresh_tokens", revoked))
	return user.Public(), nil
}

// Logout revokes one refresh token. Unknown values are ignored.
func (s *SessionService) Logout(ctx context.Context, refreshValue string) error {
	if refreshValue == "" {
		return nil
	}
	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	return s.Tokens.Revoke(ctx, refreshValue)
}

// EnsureAdmin creates an admin account unless username is already taken.
// It reports whether an account was created.
func (s *SessionService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if err := validateAccount(accountFields{Username: username, Password: password}); err != nil {
		return false, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	l := slogx.FromContext(ctx)

	existing, err := s.Store.Users().GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			l.Warn("admin username belongs to a non-admin account", slog.String("username", username))
		}
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, storageErr(err)
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		PasswordHash: digest,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, storageErr(err)
	}

	l.Info("admin account created", slog.String("username", username))
	return true, nil
}

// verifyCredentials loads username and checks password against its digest.
func (s *SessionService) verifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNoSuchUser
	}
	if err != nil {
		return domain.User{}, storageErr(err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrInvalidDigest) {
			slogx.FromContext(ctx).Error("stored password digest unreadable", slog.String("user_id", user.ID))
		}
		return domain.User{}, ErrBadCredentials
	}
	return user, nil
}

// upgradeDigest rehashes a verified password stored with outdated
// parameters. Failures are logged and otherwise ignored.
func (s *SessionService) upgradeDigest(ctx context.Context, user domain.User, password string) {
	if !s.Hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	l := slogx.FromContext(ctx)

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		l.Error("rehash password", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		l.Error("store rehashed password", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	l.Debug("password digest upgraded", slog.String("user_id", user.ID))
}

func (s *SessionService) session(user domain.PublicUser, ttl time.Duration, refresh string, refreshExp time.Time) (domain.Session, error) {
	access, err := s.Access.Issue(user, ttl)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign access token: %w", err)
	}
	return domain.Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresIn:  ttl,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
