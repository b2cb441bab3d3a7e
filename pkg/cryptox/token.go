package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// TokenSize256 is 32 bytes of entropy, 43 chars once base64url encoded.
const TokenSize256 = 32

// GenerateToken returns size random bytes encoded as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewRefreshValue builds an opaque refresh token value: the SHA-256 of the
// issue time in nanoseconds followed by TokenSize256 random bytes.
func NewRefreshValue(now time.Time) (string, error) {
	buf := make([]byte, 8+TokenSize256)
	binary.BigEndian.PutUint64(buf[:8], uint64(now.UnixNano())) // #nosec G115 - only mixed into a hash
	if _, err := rand.Read(buf[8:]); err != nil {
		return "", fmt.Errorf("failed to generate refresh value: %w", err)
	}

	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// FingerprintToken returns the deterministic SHA-256 fingerprint of token as
// base64url. Tables store the fingerprint, never the token itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
