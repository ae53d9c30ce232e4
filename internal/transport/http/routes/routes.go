package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/config"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/transport/http/handlers"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/transport/http/middleware"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Scheduler   *usecase.SchedulerService
	HealthCheck *usecase.HealthCheckService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    ServiceSet
	HTTPMetrics *middleware.HTTPMetrics
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
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	healthHandler := handlers.NewHealthHandler()

	if deps.Database != nil {
		healthHandler.WithReadinessCheck("database", deps.Database.Ping)
	}

	if deps.Cache != nil {
		healthHandler.WithReadinessCheck("redis", deps.Cache.HealthCheck)
	}

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		scheduleHandler := handlers.NewScheduleHandler(deps.Services.Scheduler, deps.Services.HealthCheck, deps.Logger)

		api.PUT("/users/:id/reminder", scheduleHandler.UpdateReminder)
		api.DELETE("/users/:id/reminder", scheduleHandler.DisableReminder)
		api.POST("/healthcheck/run", scheduleHandler.RunHealthCheck)
	}

	return r
}
