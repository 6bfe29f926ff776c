package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
	"github.com/aussiebroadwan/marquee/pkg/slogx"

	_ "github.com/aussiebroadwan/marquee/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimits
	cookie       httpx.SessionCookie

	store          store.Store
	AccountService *service.AccountService
	RefreshRotator *service.RefreshRotator
	AccessGate     *service.AccessGate
}

// RouterConfig carries the settings that shape the HTTP surface.
type RouterConfig struct {
	BuildVersion string
	RateLimits   httpx.RateLimits
	RefreshTTL   time.Duration

	// ForceSecureCookie sets Secure on the refresh cookie even for plain
	// HTTP requests (TLS terminated somewhere that drops X-Forwarded-Proto).
	ForceSecureCookie bool
}

func NewRouter(cfg RouterConfig, st store.Store, logger *slog.Logger) *Router {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: cfg.BuildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		limits:       cfg.RateLimits.Normalize(),
		cookie: httpx.SessionCookie{
			Name:        RefreshCookieName,
			Path:        "/",
			MaxAge:      cfg.RefreshTTL,
			ForceSecure: cfg.ForceSecureCookie,
		},
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Marquee Authentication Service API
//	@version		0.1.0
//	@description	Session service issuing short-lived HS256 access tokens and rotating refresh tokens.
//	@description
//	@description				The refresh token is only ever sent in the HttpOnly "refreshToken" cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/marquee
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

func (r *Router) registerUsers() {
	accounts := &AccountHandler{AccountService: r.AccountService, Cookie: r.cookie}
	sessions := &SessionHandler{
		RefreshRotator: r.RefreshRotator,
		AccountService: r.AccountService,
		Cookie:         r.cookie,
	}

	// Credential endpoints - strict rate limit by IP (brute force target)
	r.Mux.Handle("POST /v1/users/register",
		httpx.Chain(http.HandlerFunc(accounts.HandleRegister),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/users/login",
		httpx.Chain(http.HandlerFunc(accounts.HandleLogin),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)

	// Cookie-only endpoints - moderate rate limit by IP
	r.Mux.Handle("POST /v1/users/refresh",
		httpx.Chain(http.HandlerFunc(sessions.HandleRefresh),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/users/logout",
		httpx.Chain(http.HandlerFunc(sessions.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)

	// Authenticated endpoint - lenient rate limit by user
	r.Mux.Handle("GET /v1/users/profile",
		httpx.Chain(http.HandlerFunc(HandleProfile),
			RequireUser(r.AccessGate),
			httpx.RateLimitByUser(r.limits.Lenient),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}
