package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters. Cost (the time parameter) is set per Hasher.
const (
	memory      = 19 * 1024 // KiB
	parallelism = 1
	keyLength   = 32
	saltLength  = 16

	// DefaultCost is the Argon2id iteration count used when Hasher.Cost is zero.
	DefaultCost = 2
)

var (
	ErrMismatch      = errors.New("password does not match")
	ErrInvalidDigest = errors.New("invalid password digest")
)

// Hasher derives and checks salted, peppered password digests.
//
// The pepper is a process-wide secret that is never stored alongside the
// digest. It is appended to the password before key derivation so a leaked
// users table is not enough to brute force credentials offline.
type Hasher struct {
	Pepper string
	Cost   uint32
}

func NewHasher(pepper string, cost uint32) *Hasher {
	return &Hasher{Pepper: pepper, Cost: cost}
}

func (h *Hasher) cost() uint32 {
	if h.Cost == 0 {
		return DefaultCost
	}
	return h.Cost
}

// Hash returns a PHC encoded Argon2id digest with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	iterations := h.cost()
	key := argon2.IDKey([]byte(password+h.Pepper), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against digest in constant time. Digests written by
// bcrypt (the storefront's previous scheme) are accepted as well.
func (h *Hasher) Verify(password, digest string) error {
	if isBcrypt(digest) {
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password+h.Pepper))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrMismatch
		default:
			return fmt.Errorf("%w: %w", ErrInvalidDigest, err)
		}
	}

	params, salt, expected, err := parseArgon2id(digest)
	if err != nil {
		return err
	}

	computed := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(expected)), // #nosec G115 - decoded from our own digest
	)
	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}

// NeedsRehash reports whether digest was produced with different parameters
// than this Hasher would use today.
func (h *Hasher) NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		return true
	}
	params, _, _, err := parseArgon2id(digest)
	if err != nil {
		return true
	}
	return params.iterations != h.cost() || params.memory != memory || params.parallelism != parallelism
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// parseArgon2id splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func parseArgon2id(digest string) (argon2Params, []byte, []byte, error) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: expected 6 parts", ErrInvalidDigest)
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: not argon2id", ErrInvalidDigest)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: wrong version", ErrInvalidDigest)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters: %w", ErrInvalidDigest, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", ErrInvalidDigest, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", ErrInvalidDigest)
	}
	return p, salt, key, nil
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
