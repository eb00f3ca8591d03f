package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/config"
	"github.com/chibuezedev/florin-server/internal/transport/http/handlers"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth    handlers.AuthService
	Tokens  middleware.Authenticator
	Risk    middleware.RiskEvaluator
	Alerts  handlers.AlertService
	Samples handlers.SampleService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Readiness   map[string]handlers.ReadinessCheck
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(cfg.App.AllowedOrigins))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, len(deps.Readiness))
	for name, check := range deps.Readiness {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck(name, check))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.RequireAuth(deps.Services.Tokens)
	riskGate := middleware.BehavioralRisk(deps.Services.Risk, deps.Logger)
	reviewers := middleware.RequireRole(domain.RoleAdmin, domain.RoleSecurity)

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authGroup := api.Group("/auth")
		authGroup.POST("/register", chain(rateLimit(deps, "auth_register_ip", cfg.RateLimit.RegisterMaxAttempts), authHandler.Register)...)
		authGroup.POST("/login", chain(rateLimit(deps, "auth_login_ip", cfg.RateLimit.LoginMaxAttempts), authHandler.Login)...)
		authGroup.POST("/refresh-token", chain(rateLimit(deps, "auth_refresh_ip", cfg.RateLimit.RefreshMaxAttempts), authHandler.Refresh)...)
		authGroup.POST("/logout", requireAuth, riskGate, authHandler.Logout)
		authGroup.GET("/me", requireAuth, riskGate, authHandler.Me)

		historyLimit := cfg.Samples.HistoryLimit
		biometricsHandler := handlers.NewBiometricsHandler(deps.Services.Samples, historyLimit)
		biometrics := api.Group("/biometrics", requireAuth, riskGate)
		biometrics.GET("/history", biometricsHandler.History)
		biometrics.GET("/anomalies", biometricsHandler.Anomalies)
		admins := biometrics.Group("", middleware.RequireRole(domain.RoleAdmin))
		admins.GET("", biometricsHandler.Recent)
		admins.GET("/anomalies/timeline", biometricsHandler.Timeline)

		alertHandler := handlers.NewAlertHandler(deps.Services.Alerts)
		alerts := api.Group("/alerts", requireAuth, riskGate, reviewers)
		alerts.GET("", alertHandler.List)
		alerts.PATCH("/:id/resolve", alertHandler.Resolve)
	}

	return r
}

func chain(limiter gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limiter == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limiter, handler}
}

func rateLimit(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}
