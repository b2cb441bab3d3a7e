package httpx

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// Name prefixes the counter key so profiles never share buckets.
	Name string
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit (memory backend only)
	Burst int
}

// Rate limit profiles. These can be overridden via environment variables
// (see init() below).
var (
	// SignupLimit caps account creation: 5 per hour per client.
	// Override with: RATELIMIT_SIGNUP_REQUESTS, RATELIMIT_SIGNUP_WINDOW_SEC, RATELIMIT_SIGNUP_BURST
	SignupLimit = RateLimitConfig{
		Name:              "signup",
		RequestsPerWindow: 5,
		Window:            time.Hour,
		Burst:             5,
	}

	// GeneralLimit applies to login, refresh and account routes: 100 per
	// 15 minutes per client.
	// Override with: RATELIMIT_GENERAL_REQUESTS, RATELIMIT_GENERAL_WINDOW_SEC, RATELIMIT_GENERAL_BURST
	GeneralLimit = RateLimitConfig{
		Name:              "general",
		RequestsPerWindow: 100,
		Window:            15 * time.Minute,
		Burst:             100,
	}

	// LenientLimit for health probes.
	// Override with: RATELIMIT_LENIENT_REQUESTS, RATELIMIT_LENIENT_WINDOW_SEC, RATELIMIT_LENIENT_BURST
	LenientLimit = RateLimitConfig{
		Name:              "lenient",
		RequestsPerWindow: 1000,
		Window:            time.Minute,
		Burst:             1000,
	}
)

func init() {
	SignupLimit = ParseRateLimitFromEnv("SIGNUP", SignupLimit)
	GeneralLimit = ParseRateLimitFromEnv("GENERAL", GeneralLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_SIGNUP_REQUESTS, RATELIMIT_SIGNUP_WINDOW_SEC, RATELIMIT_SIGNUP_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// Limiter decides whether the request identified by key may proceed under
// config. retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, config RateLimitConfig, key string) (allowed bool, retryAfter time.Duration, err error)
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserKeyExtractor returns the authenticated user's ID, if any.
func UserKeyExtractor(r *http.Request) string {
	if u, ok := UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", IPKeyExtractor, UserKeyExtractor)
// would produce keys like "192.168.1.1:01HZ..."
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimitMiddleware rejects requests over config with 429.
// The keyExtractor determines how requests are grouped for rate limiting.
// Backend failures let the request through: losing the limiter must not take
// the storefront down with it.
func RateLimitMiddleware(limiter Limiter, config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := limiter.Allow(ctx, config, key)
			if err != nil {
				log.Error("rate limit backend failed, allowing request", "profile", config.Name, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				secs := max(int(retryAfter.Round(time.Second).Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"profile", config.Name,
					"key", key,
					"retry_after_sec", secs,
				)

				WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP creates a rate limiter that limits by IP address only.
func RateLimitByIP(limiter Limiter, config RateLimitConfig) Middleware {
	return RateLimitMiddleware(limiter, config, IPKeyExtractor)
}
