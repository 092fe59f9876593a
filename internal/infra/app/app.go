package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/infra/config"
	"github.com/Andiquis/xQor3/internal/infra/database"
	kafkainfra "github.com/Andiquis/xQor3/internal/infra/kafka"
	"github.com/Andiquis/xQor3/internal/infra/logger"
	redisinfra "github.com/Andiquis/xQor3/internal/infra/redis"
	"github.com/Andiquis/xQor3/internal/infra/security"
	"github.com/Andiquis/xQor3/internal/infra/telemetry"
	postgresrepo "github.com/Andiquis/xQor3/internal/repository/postgres"
	redisrepo "github.com/Andiquis/xQor3/internal/repository/redis"
	"github.com/Andiquis/xQor3/internal/transport/http/middleware"
	"github.com/Andiquis/xQor3/internal/transport/http/routes"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// Version is stamped at build time with -ldflags "-X .../app.Version=...".
var Version = "dev"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, Version, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	tokens, err := usecase.NewTokenIssuer(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewPasswordHasher(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	passwordPolicy := security.DefaultPasswordValidator(cfg.Security.MinPasswordScore)

	var rateLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}

		rateLimitWindow := cfg.RateLimit.WindowDuration
		if rateLimitWindow <= 0 {
			rateLimitWindow = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       rateLimitWindow * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	} else {
		log.Info("redis disabled, rate limiting is off")
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)

	authService := usecase.NewAuthService(repos.Users, repos.Assignments, hasher, tokens, usecase.LockoutPolicyFrom(cfg.Auth)).
		WithLogger(log).
		WithEvents(eventPublisher).
		WithMetrics(authMetrics)
	registrationService := usecase.NewRegistrationService(
		repos.Users, repos.Roles, repos.Assignments, hasher, passwordPolicy, tokens,
		usecase.RegistrationOptions{
			DefaultRole:        cfg.Auth.DefaultRole,
			RequireDefaultRole: cfg.Auth.RequireDefaultRole,
		},
	).
		WithLogger(log).
		WithEvents(eventPublisher).
		WithMetrics(authMetrics)
	userService := usecase.NewUserService(repos.Users, repos.Assignments).WithLogger(log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Assignments, repos.Users).
		WithLogger(log).
		WithEvents(eventPublisher)

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimiter:    rateLimiter,
		Metrics:        httpMetrics,
		TracerProvider: a.tracer.Provider(),
		Database:       a.pool,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Users:        userService,
			Roles:        roleService,
		},
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	ok = true
	return a, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("version", Version),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases resources in reverse start order. Safe on a partially built Application.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown tracer", zap.Error(err))
	}
	_ = a.logger.Sync()
}
