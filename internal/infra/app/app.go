package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/infra/config"
	"github.com/chibuezedev/florin-server/internal/infra/database"
	kafkainfra "github.com/chibuezedev/florin-server/internal/infra/kafka"
	"github.com/chibuezedev/florin-server/internal/infra/logger"
	redisinfra "github.com/chibuezedev/florin-server/internal/infra/redis"
	"github.com/chibuezedev/florin-server/internal/infra/scoring"
	"github.com/chibuezedev/florin-server/internal/infra/security"
	"github.com/chibuezedev/florin-server/internal/infra/telemetry"
	postgresrepo "github.com/chibuezedev/florin-server/internal/repository/postgres"
	transportgrpc "github.com/chibuezedev/florin-server/internal/transport/grpc"
	"github.com/chibuezedev/florin-server/internal/transport/http/handlers"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
	"github.com/chibuezedev/florin-server/internal/transport/http/routes"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

const readinessInterval = 15 * time.Second

type Application struct {
	cfg               *config.AppConfig
	engine            *gin.Engine
	logger            *zap.Logger
	pool              *pgxpool.Pool
	redis             *redisinfra.Client
	producer          *kafkainfra.Producer
	pipeline          *usecase.RiskPipeline
	grpcServer        *transportgrpc.Server
	grpcAddr          string
	telemetryShutdown telemetry.ShutdownFunc
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryShutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
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

	cleanup := func() {
		_ = redisClient.Close()
		pool.Close()
	}

	repos := postgresrepo.NewRepositories(pool)

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider, cfg.App.Name)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	passwordPolicy := security.PasswordPolicy{
		MinLength:   cfg.Password.MinLength,
		MinStrength: cfg.Password.MinStrength,
	}

	credentials := redisClient.CredentialStore(cfg.JWT.RefreshTokenTTL)
	tokens := usecase.NewTokenManager(jwtManager, repos.Accounts, credentials, usecase.TokenSettings{
		AccessTTL:        cfg.JWT.AccessTokenTTL,
		RefreshTTL:       cfg.JWT.RefreshTokenTTL,
		MaxRefreshTokens: cfg.JWT.MaxRefreshTokens,
	})

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	authService := usecase.NewAuthService(repos.Accounts, tokens, hasher, passwordPolicy, eventPublisher, log)

	scorer, err := scoring.NewClient(scoring.Config{
		Endpoint:            cfg.Scoring.Endpoint,
		Timeout:             cfg.Scoring.Timeout,
		BreakerThreshold:    cfg.Scoring.BreakerThreshold,
		BreakerOpenDuration: cfg.Scoring.BreakerOpenDuration,
	}, log)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init scoring client: %w", err)
	}

	var emitterOpts []usecase.AlertEmitterOption
	if cfg.Alerts.Cooldown > 0 {
		emitterOpts = append(emitterOpts, usecase.WithAlertCooldown(redisClient.AlertCooldown(), cfg.Alerts.Cooldown))
	}
	emitter := usecase.NewAlertEmitter(repos.Alerts, eventPublisher, log, emitterOpts...)

	gate, err := usecase.NewAccessDecisionGate(emitter, log, usecase.WithAlertThreshold(cfg.Alerts.Threshold))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init decision gate: %w", err)
	}
	pipeline := usecase.NewRiskPipeline(usecase.NewFeatureDeriver(), scorer, gate, repos.Samples, cfg.Samples.PersistTimeout, log)

	rateLimiter := middleware.NewRateLimiter(redisClient.RateLimitStore(cfg.RateLimit.WindowDuration), log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	probes := map[string]func(context.Context) error{
		"postgres": pool.Ping,
		"redis":    redisClient.Ready,
	}
	readiness := make(map[string]handlers.ReadinessCheck, len(probes))
	grpcChecks := make(map[string]transportgrpc.ReadinessCheck, len(probes))
	for name, probe := range probes {
		readiness[name] = probe
		grpcChecks[name] = probe
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Readiness:   readiness,
		Services: routes.ServiceSet{
			Auth:    authService,
			Tokens:  tokens,
			Risk:    pipeline,
			Alerts:  usecase.NewAlertService(repos.Alerts),
			Samples: usecase.NewSampleService(repos.Samples),
		},
	})

	var grpcSrv *transportgrpc.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Authenticator:  tokens,
			Logger:         log,
			TracerProvider: otel.GetTracerProvider(),
			Checks:         grpcChecks,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
	}

	return &Application{
		cfg:               cfg,
		engine:            engine,
		logger:            log,
		pool:              pool,
		redis:             redisClient,
		producer:          producer,
		pipeline:          pipeline,
		grpcServer:        grpcSrv,
		grpcAddr:          fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
		telemetryShutdown: telemetryShutdown,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))

		go a.grpcServer.WatchReadiness(ctx, readinessInterval)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       durationOr(a.cfg.App.ReadTimeout, 30*time.Second),
		WriteTimeout:      durationOr(a.cfg.App.WriteTimeout, 30*time.Second),
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting florin API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), durationOr(a.cfg.App.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	// In-flight sample writes finish before their stores close.
	a.pipeline.Wait()

	if err := a.telemetryShutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	return runErr
}

func (a *Application) close() {
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
	_ = a.logger.Sync()
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
