package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/config"
	"github.com/Andiquis/xQor3/internal/transport/http/handlers"
	"github.com/Andiquis/xQor3/internal/transport/http/middleware"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Users        *usecase.UserService
	Roles        *usecase.RoleService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
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
	if deps.TracerProvider != nil {
		r.Use(middleware.Tracing(middleware.TracingOptions{
			ServiceName:    deps.Config.Telemetry.ServiceName,
			TracerProvider: deps.TracerProvider,
		}))
	}
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	api := r.Group("/api/v1")
	if deps.Services.Auth == nil {
		return r
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)
	superadminOnly := middleware.RequireRole(domain.RoleSuperAdmin)
	adminOrSuperadmin := middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)

	authGroup := api.Group("/auth")
	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Registration, deps.Services.Users)
	authHandler.RegisterRoutes(authGroup, buildRegisterMiddlewares(deps), buildLoginMiddlewares(deps))
	authGroup.GET("/profile", authMiddleware, authHandler.Profile)

	if deps.Services.Users != nil {
		userHandler := handlers.NewUserHandler(deps.Services.Users)
		usersGroup := api.Group("/users", authMiddleware)
		usersGroup.GET("", adminOrSuperadmin, userHandler.ListUsers)
		usersGroup.PATCH("/:id/active", superadminOnly, userHandler.SetActive)
	}

	if deps.Services.Roles != nil {
		roleHandler := handlers.NewRoleHandler(deps.Services.Roles)
		rolesGroup := api.Group("/roles", authMiddleware)
		rolesGroup.POST("", superadminOnly, roleHandler.CreateRole)
		rolesGroup.GET("", roleHandler.ListRoles)
		rolesGroup.GET("/:id", roleHandler.GetRole)
		rolesGroup.PATCH("/:id", superadminOnly, roleHandler.UpdateRole)
		rolesGroup.DELETE("/:id", superadminOnly, roleHandler.DeleteRole)
		rolesGroup.PATCH("/:id/toggle-state", superadminOnly, roleHandler.ToggleRoleState)
		rolesGroup.GET("/:id/users", adminOrSuperadmin, roleHandler.ListUsersForRole)
		rolesGroup.POST("/:id/assign", adminOrSuperadmin, roleHandler.AssignRole)
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildIPRateLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)
}

func buildRegisterMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildIPRateLimit(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts)
}

func buildIPRateLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
