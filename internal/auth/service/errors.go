package service

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by the session operations. Their text doubles as the
// error code written to clients.
var (
	ErrBadCredentials      = errors.New("bad_credentials")
	ErrNoSuchUser          = errors.New("no_such_user")
	ErrInvalidUsername     = errors.New("invalid_username")
	ErrInvalidPassword     = errors.New("invalid_password")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrTokenExpired        = errors.New("token_expired")
	ErrForbidden           = errors.New("forbidden")
	ErrStorageUnavailable  = errors.New("storage_unavailable")
)

// Refresh token store failures. The session layer folds all three into
// ErrInvalidRefreshToken.
var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRotationFailed  = errors.New("refresh token rotation matched no record")
)

var classified = []error{
	ErrBadCredentials,
	ErrNoSuchUser,
	ErrInvalidUsername,
	ErrInvalidPassword,
	ErrInvalidName,
	ErrInvalidRefreshToken,
	ErrInvalidSignature,
	ErrTokenExpired,
	ErrForbidden,
	ErrStorageUnavailable,
	ErrRefreshNotFound,
	ErrRefreshExpired,
	ErrRotationFailed,
}

// storageErr wraps err as ErrStorageUnavailable unless it already carries
// one of the service errors.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// ErrorCode maps err onto the client facing error category.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshNotFound),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrRotationFailed):
		return ErrInvalidRefreshToken.Error()
	case errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ErrStorageUnavailable.Error()
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "server_error"
}
