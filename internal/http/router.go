package http

import (
	"log/slog"

	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/http/handlers"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires into handlers. Stores are owned by
// main and shared by every request.
type Deps struct {
	Authenticator middlewares.Authenticator
	Users         handlers.UserReader
	Tenants       TenantStore
	Notes         handlers.NotesStore
	Tokens        handlers.TokenIssuer

	// LoginLimiter throttles POST /auth. Nil disables it.
	LoginLimiter middlewares.Limiter

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Checks       map[string]handlers.Pinger
	ShuttingDown func() bool
}

type TenantStore interface {
	handlers.TenantReader
	handlers.TenantUpgrader
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// nil trusts no proxy, so ClientIP is the peer address.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies", "err", err, "proxies", cfg.TrustedProxies)
	}

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if cfg.OTelServiceName != "" {
		r.Use(otelgin.Middleware(cfg.OTelServiceName))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Checks, deps.ShuttingDown, log)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// wire up handlers
	authMw := middlewares.NewAuthMiddleware(deps.Authenticator, log)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tenants, deps.Tokens, deps.Prom, log)
	notesHandler := handlers.NewNotesHandler(deps.Notes, deps.Prom, log)
	tenantsHandler := handlers.NewTenantsHandler(deps.Tenants, deps.Prom, log)

	// public
	login := []gin.HandlerFunc{}
	if deps.LoginLimiter != nil {
		login = append(login, middlewares.RateLimit(deps.LoginLimiter, middlewares.KeyByIP))
	}
	login = append(login, authHandler.Login)
	r.POST("/auth", login...)

	// authenticated
	authed := r.Group("/")
	authed.Use(authMw.RequireAuth())
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/notes", notesHandler.ListNotes)
		authed.POST("/notes", notesHandler.CreateNote)
		authed.GET("/notes/:id", notesHandler.GetNote)
		authed.PUT("/notes/:id", notesHandler.UpdateNote)
		authed.DELETE("/notes/:id", notesHandler.DeleteNote)
	}

	// admin only; role is checked before the slug is looked at
	admin := authed.Group("/tenants")
	admin.Use(middlewares.RequireRole(user.RoleAdmin))
	{
		admin.POST("/:slug", tenantsHandler.Upgrade)
		admin.POST("/:slug/upgrade", tenantsHandler.Upgrade)
	}

	return r
}
