package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/storefront/internal/auth/http"
	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
	"github.com/aussiebroadwan/storefront/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/storefront/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the storefront session service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	redis *redis.Client

	sessionService      *service.SessionService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "storefront",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		app.closeBackends()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("storefront starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeBackends()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down storefront...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("storefront stopped")
	return nil
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	switch app.cfg.DatabaseDriver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), app.cfg.StorageTimeout)
		defer cancel()

		db, err := postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.Options{
			MaxOpenConns:    app.cfg.DatabaseMaxConn,
			MaxIdleConns:    app.cfg.DatabaseMaxConn,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		app.db = db
	default:
		db, err := sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initServices builds the credential and session services
func (app *Application) initServices() error {
	pepper := app.cfg.Pepper
	if pepper == "" {
		var err error
		pepper, err = cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
		if err != nil {
			return fmt.Errorf("failed to load pepper: %w", err)
		}
	}

	tokenSecret, err := app.secret("AUTH_TOKEN_SECRET", app.cfg.TokenSecret)
	if err != nil {
		return err
	}

	access, err := service.NewAccessTokenIssuer(tokenSecret, app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize access tokens: %w", err)
	}

	sessions := service.NewSessionService(app.db, cryptox.NewHasher(pepper, app.cfg.HashCost), access)
	sessions.LoginAccessTTL = app.cfg.LoginAccessTTL
	sessions.RefreshAccessTTL = app.cfg.RefreshAccessTTL
	sessions.StorageTimeout = app.cfg.StorageTimeout
	app.sessionService = sessions

	app.userService = &service.UserService{
		Store:          app.db,
		StorageTimeout: app.cfg.StorageTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	if app.cfg.AdminUsername != "" {
		created, err := sessions.EnsureAdmin(context.Background(), app.cfg.AdminUsername, app.cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		}
		if created {
			app.logger.Info("admin account created", "username", app.cfg.AdminUsername)
		}
	}

	return nil
}

// initHTTP initializes the rate limiter, router and server
func (app *Application) initHTTP() error {
	limiter, err := app.initLimiter()
	if err != nil {
		return err
	}

	cookieSecret, err := app.secret("AUTH_COOKIE_SECRET", app.cfg.CookieSecret)
	if err != nil {
		return err
	}
	cookies, err := httpx.NewSignedCookies(cookieSecret, app.cfg.CookieSecure)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh cookies: %w", err)
	}

	router := httpapi.NewRouter(limiter, cookies, BuildVersion, app.logger)
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.RefreshTokenInBody = app.cfg.RefreshTokenInBody
	router.ReadyChecks["database"] = app.db.Ping
	if app.redis != nil {
		router.ReadyChecks["redis"] = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}
	router.ApplyRoutes()

	if app.cfg.RefreshTokenInBody {
		app.logger.Warn("refresh tokens are returned in response bodies; do not enable outside development")
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

func (app *Application) initLimiter() (httpx.Limiter, error) {
	if app.cfg.RateLimitBackend != "redis" {
		return httpx.NewMemoryLimiter(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.StorageTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.redis = client
	app.logger.Info("rate limiting backed by redis", "addr", app.cfg.RedisAddr)
	return httpx.NewRedisLimiter(client, "storefront:rl"), nil
}

// secret returns value, or a random 32 byte key in dev when value is unset.
// Ephemeral keys invalidate every issued token on restart.
func (app *Application) secret(name, value string) ([]byte, error) {
	if value != "" {
		return []byte(value), nil
	}
	if !app.cfg.IsDev() {
		return nil, fmt.Errorf("%s is required", name)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	app.logger.Warn("using an ephemeral secret", "name", name)
	return key, nil
}
