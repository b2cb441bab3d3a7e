package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

var (
	ErrNoCookie      = errors.New("httpx: cookie not present")
	ErrBadCookieSig  = errors.New("httpx: cookie signature mismatch")
	ErrWeakCookieKey = errors.New("httpx: cookie secret too short")
)

// SignedCookies writes and reads HttpOnly cookies authenticated with
// securecookie, so a client cannot swap in a value it did not receive. The
// cookie name is bound into the MAC.
type SignedCookies struct {
	codec    *securecookie.SecureCookie
	Secure   bool
	SameSite http.SameSite
	Path     string
}

func NewSignedCookies(secret []byte, secure bool) (*SignedCookies, error) {
	if len(secret) < 32 {
		return nil, ErrWeakCookieKey
	}

	// Expiry of the wrapped value is enforced by its owner, not the codec.
	codec := securecookie.New(append([]byte(nil), secret...), nil).MaxAge(0)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &SignedCookies{
		codec:    codec,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	}, nil
}

// Set writes the encoded value of cookie name expiring at expires.
func (c *SignedCookies) Set(w http.ResponseWriter, name, value string, expires time.Time) error {
	encoded, err := c.codec.Encode(name, value)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     c.Path,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

// Clear expires the cookie on the client.
func (c *SignedCookies) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     c.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Get returns the verified value of cookie name.
func (c *SignedCookies) Get(r *http.Request, name string) (string, error) {
	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", ErrNoCookie
	}

	var value string
	if err := c.codec.Decode(name, ck.Value, &value); err != nil {
		return "", ErrBadCookieSig
	}
	return value, nil
}
