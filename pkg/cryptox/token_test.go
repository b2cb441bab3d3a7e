package cryptox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.Len(t, token, 43)

	other, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, token, other, "tokens should be unique")
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestNewRefreshValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same instant, different randomness.
	seen := make(map[string]struct{}, 50)
	for range 50 {
		v, err := NewRefreshValue(now)
		require.NoError(t, err)
		require.Len(t, v, 43, "SHA-256 base64url should be 43 chars")
		require.NotContains(t, seen, v, "duplicate refresh value")
		seen[v] = struct{}{}
	}
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp1a := FingerprintToken("test-token-1")
	fp1b := FingerprintToken("test-token-1")
	fp2 := FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43)
}
