package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/infra/config"
	"github.com/arklim/student-platform-auth/internal/transport/http/handlers"
	"github.com/arklim/student-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/student-platform-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Tokens   *usecase.TokenService
	Sessions *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	checks := make(map[string]handlers.DependencyChecker, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}

	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		var registerLimiter, refreshLimiter gin.HandlerFunc
		if deps.RateLimiter != nil {
			rl := deps.Config.RateLimit
			registerLimiter = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
				Name:   "register",
				Limit:  rl.RegisterMaxAttempts,
				Window: rl.WindowDuration,
			})
			refreshLimiter = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
				Name:   "refresh",
				Limit:  rl.RefreshMaxAttempts,
				Window: rl.WindowDuration,
			})
		}

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Tokens)
		authHandler.RegisterRoutes(api.Group("/auth"), registerLimiter, refreshLimiter)

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions, deps.Services.Tokens)
		sessionHandler.RegisterRoutes(api.Group("/sessions"))
	}

	return r
}
