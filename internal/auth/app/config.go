package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer string // Optional: issuer claim for access tokens (default: storefront)

	DatabaseDriver  string // Optional: sqlite or postgres (default: sqlite)
	DatabaseFile    string // Optional: SQLite database file (default: ./storefront.db)
	DatabaseURL     string // Required for postgres: connection URL
	DatabaseMaxConn int    // Optional: postgres pool size (default: 10)

	TokenSecret   string // Required outside dev: HS256 signing secret, at least 32 bytes
	CookieSecret  string // Required outside dev: refresh cookie HMAC key, at least 32 bytes
	Pepper        string // Optional: password pepper; read from PepperFile when empty
	PepperFile    string // Optional: pepper file, created on first start (default: ./pepper)
	HashCost      uint32 // Optional: Argon2id iterations (default: 2)
	AdminUsername string // Optional: seed admin account username
	AdminPassword string // Optional: seed admin account password

	LoginAccessTTL     time.Duration // Optional: access token lifetime at login (default: 10m)
	RefreshAccessTTL   time.Duration // Optional: access token lifetime at register and refresh (default: 6m)
	StorageTimeout     time.Duration // Optional: storage budget per operation (default: 5s)
	CookieSecure       bool          // Optional: Secure attribute on the refresh cookie (default: true)
	RefreshTokenInBody bool          // Optional: debug transport of refresh tokens (default: false)

	RateLimitBackend string // Optional: memory or redis (default: memory)
	RedisAddr        string // Required for redis: host:port
	RedisPassword    string // Optional
	RedisDB          int    // Optional (default: 0)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Refresh token purge interval (default: 1h)
}

// LoadConfig reads the configuration from the environment, after loading an
// optional .env file from the working directory.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Issuer:          getEnvOrDefault("AUTH_ISSUER", "storefront"),
		DatabaseDriver:  strings.ToLower(getEnvOrDefault("AUTH_DATABASE_DRIVER", "sqlite")),
		DatabaseFile:    getEnvOrDefault("AUTH_DATABASE_FILE", "storefront.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DatabaseMaxConn: getEnvIntOrDefault("DATABASE_MAX_CONNS", 10),

		TokenSecret:   os.Getenv("AUTH_TOKEN_SECRET"),
		CookieSecret:  os.Getenv("AUTH_COOKIE_SECRET"),
		Pepper:        os.Getenv("AUTH_PEPPER"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		HashCost:      uint32(getEnvIntOrDefault("AUTH_HASH_COST", 2)), // #nosec G115 - validated below
		AdminUsername: os.Getenv("AUTH_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("AUTH_ADMIN_PASSWORD"),

		LoginAccessTTL:     getEnvDurationOrDefault("AUTH_LOGIN_ACCESS_TTL", 10*time.Minute),
		RefreshAccessTTL:   getEnvDurationOrDefault("AUTH_REFRESH_ACCESS_TTL", 6*time.Minute),
		StorageTimeout:     getEnvDurationOrDefault("AUTH_STORAGE_TIMEOUT", 5*time.Second),
		CookieSecure:       getEnvBoolOrDefault("AUTH_COOKIE_SECURE", true),
		RefreshTokenInBody: getEnvBoolOrDefault("AUTH_REFRESH_TOKEN_IN_BODY", false),

		RateLimitBackend: strings.ToLower(getEnvOrDefault("RATELIMIT_BACKEND", "memory")),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("REDIS_DB", 0),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

// IsDev reports whether missing secrets may be replaced by ephemeral ones.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "test"
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATELIMIT_BACKEND %q", c.RateLimitBackend))
	}

	if !c.IsDev() {
		if len(c.TokenSecret) < 32 {
			errs = append(errs, errors.New("AUTH_TOKEN_SECRET must be at least 32 bytes"))
		}
		if len(c.CookieSecret) < 32 {
			errs = append(errs, errors.New("AUTH_COOKIE_SECRET must be at least 32 bytes"))
		}
		if c.RefreshTokenInBody {
			errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_IN_BODY is only allowed in dev"))
		}
	}

	if c.HashCost == 0 || c.HashCost > 10 {
		errs = append(errs, errors.New("AUTH_HASH_COST must be between 1 and 10"))
	}
	if c.LoginAccessTTL <= 0 || c.RefreshAccessTTL <= 0 {
		errs = append(errs, errors.New("access token TTLs must be positive"))
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("AUTH_ADMIN_USERNAME and AUTH_ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
