package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/config"
	"github.com/arklim/student-platform-auth/internal/infra/database"
	kafkainfra "github.com/arklim/student-platform-auth/internal/infra/kafka"
	"github.com/arklim/student-platform-auth/internal/infra/logger"
	redisinfra "github.com/arklim/student-platform-auth/internal/infra/redis"
	"github.com/arklim/student-platform-auth/internal/infra/security"
	postgresrepo "github.com/arklim/student-platform-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/student-platform-auth/internal/repository/redis"
	"github.com/arklim/student-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/student-platform-auth/internal/transport/http/routes"
	"github.com/arklim/student-platform-auth/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	issuer, err := security.NewTokenIssuer(security.TokenIssuerOptions{
		Secret:           cfg.JWT.Secret,
		Issuer:           cfg.App.Name,
		AccessTTL:        cfg.JWT.AccessTokenTTL,
		RefreshTTL:       cfg.JWT.RefreshTokenTTL,
		RefreshThreshold: cfg.JWT.RefreshThreshold,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	breachClient, err := security.NewBreachClient(security.BreachClientOptions{
		Endpoint:  cfg.Breach.Endpoint,
		Timeout:   cfg.Breach.Timeout,
		UserAgent: cfg.Breach.UserAgent,
	}, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init breach client: %w", err)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)

	attemptStore := redisrepo.NewAttemptRepository(redisClient.Client())
	blacklist := redisrepo.NewBlacklistRepository(redisClient.Client(), "")
	sessionTokens := redisrepo.NewSessionTokenRepository(redisClient.Client(), "")
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.FixedWindowConfig{})

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	authMetrics, err := middleware.NewAuthMetrics(nil, "")
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}

	lockoutService := usecase.NewLockoutService(attemptStore, eventPublisher, authMetrics, log)
	tokenService := usecase.NewTokenService(issuer, blacklist, sessionTokens, log)
	sessionService := usecase.NewSessionService(repos.Sessions, tokenService, eventPublisher, cfg.Session.MaxConcurrent, log)
	authService := usecase.NewAuthService(
		repos.Users,
		lockoutService,
		tokenService,
		sessionService,
		breachClient,
		security.DefaultPasswordValidator(),
		eventPublisher,
		log,
	)

	rateLimiter := middleware.NewRateLimiter(rateLimitStore, authMetrics, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Tokens:   tokenService,
			Sessions: sessionService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

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
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
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
