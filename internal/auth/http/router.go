package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"

	_ "github.com/aussiebroadwan/storefront/api/storefront" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	limiter      httpx.Limiter
	cookies      *httpx.SignedCookies
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	SessionService *service.SessionService
	UserService    *service.UserService

	// ReadyChecks are run by /readyz, keyed by dependency name.
	ReadyChecks map[string]Check

	// RefreshTokenInBody enables the debug transport of refresh tokens.
	RefreshTokenInBody bool
}

func NewRouter(
	limiter httpx.Limiter,
	cookies *httpx.SignedCookies,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		limiter:      limiter,
		cookies:      cookies,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		ReadyChecks:  map[string]Check{},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Storefront Session API
//	@version		0.1.0
//	@description	Account registration, login and refresh-token rotation for the storefront.
//	@description
//	@description				Access tokens are HS256 JWTs carrying a user snapshot. Refresh tokens travel in a signed HttpOnly cookie and work once.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/storefront
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{
		Sessions:           r.SessionService,
		Cookies:            r.cookies,
		RefreshTokenInBody: r.RefreshTokenInBody,
	}

	// Account creation gets the tightest budget per IP.
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.limiter, httpx.SignupLimit),
		),
	)

	general := httpx.RateLimitByIP(r.limiter, httpx.GeneralLimit)

	r.Mux.Handle("POST /v1/users/auth", httpx.Chain(http.HandlerFunc(h.HandleLogin), general))

	// No bearer on refresh: the access token has usually expired by then.
	r.Mux.Handle("POST /v1/users/{id}/refresh", httpx.Chain(http.HandlerFunc(h.HandleRefresh), general))

	r.Mux.Handle("POST /v1/users/logout", httpx.Chain(http.HandlerFunc(h.HandleLogout), general))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		Users:    r.UserService,
		Sessions: r.SessionService,
		Cookies:  r.cookies,
	}

	byUser := httpx.RateLimitMiddleware(r.limiter, httpx.GeneralLimit, httpx.UserKeyExtractor)

	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			RequireRole(r.SessionService, domain.RoleAdmin),
			byUser,
		),
	)
	// Any signed-in user may view a profile; changes are limited to the owner.
	r.Mux.Handle("GET /v1/users/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleShow),
			RequireRole(r.SessionService, domain.RoleUser),
			byUser,
		),
	)
	r.Mux.Handle("PUT /v1/users/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			RequireRole(r.SessionService, domain.RoleUser),
			requireSubject,
			byUser,
		),
	)
	r.Mux.Handle("DELETE /v1/users/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			RequireRole(r.SessionService, domain.RoleUser),
			requireSubject,
			byUser,
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limiter, httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.ReadyChecks),
			httpx.RateLimitByIP(r.limiter, httpx.LenientLimit),
		),
	)
}
