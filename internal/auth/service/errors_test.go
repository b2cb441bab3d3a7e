package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBadCredentials, "bad_credentials"},
		{ErrNoSuchUser, "no_such_user"},
		{fmt.Errorf("%w: %w", ErrInvalidRefreshToken, ErrRefreshExpired), "invalid_refresh_token"},
		{ErrRotationFailed, "invalid_refresh_token"},
		{ErrForbidden, "forbidden"},
		{storageErr(errors.New("disk I/O error")), "storage_unavailable"},
		{context.DeadlineExceeded, "storage_unavailable"},
		{errors.New("something else"), "server_error"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, ErrorCode(tt.err), "%v", tt.err)
	}
}

func TestStorageErrKeepsServiceErrors(t *testing.T) {
	require.Nil(t, storageErr(nil))
	require.Equal(t, ErrInvalidUsername, storageErr(ErrInvalidUsername))

	wrapped := storageErr(errors.New("connection refused"))
	require.ErrorIs(t, wrapped, ErrStorageUnavailable)
	require.Contains(t, wrapped.Error(), "connection refused")
}
