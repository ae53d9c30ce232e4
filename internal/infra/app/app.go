package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/config"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/database"
	kafkainfra "github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/kafka"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/logger"
	redisinfra "github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/redis"
	slackinfra "github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/slack"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/telemetry"
	postgresrepo "github.com/petruhinmaxim/motivation-bot-sub000/internal/repository/postgres"
	redisrepo "github.com/petruhinmaxim/motivation-bot-sub000/internal/repository/redis"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/transport/http/middleware"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/transport/http/routes"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/usecase"
)

type Application struct {
	cfg         *config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	pool        *pgxpool.Pool
	redis       *redisinfra.Client
	scheduler   *usecase.SchedulerService
	healthCheck *usecase.HealthCheckService
	producer    *kafkainfra.Producer
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

	repos := postgresrepo.NewRepositories(pool)
	scheduleStore := redisrepo.NewScheduleStore(redisClient.Client(), cfg.Redis.SchedulePrefix)
	guard := redisrepo.NewNotificationGuard(redisClient.Client(), cfg.Redis.GuardPrefix)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	messenger := slackinfra.NewMessenger(cfg.Slack.BotToken, log)

	schedulerMetrics, err := telemetry.NewSchedulerMetrics(telemetry.SchedulerMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init scheduler metrics: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	registry := usecase.NewTimerRegistry(log)

	dispatcher := usecase.NewNotificationDispatcher(repos.Challenges, repos.Users, guard, messenger, eventPublisher, log).
		WithMetrics(schedulerMetrics).
		WithGuardWindows(cfg.Scheduler.NotificationLockTTL, cfg.Scheduler.DedupWindow)

	scheduler := usecase.NewSchedulerService(registry, scheduleStore, repos.Challenges, repos.Users, dispatcher, log).
		WithMetrics(schedulerMetrics).
		WithMissedDayHour(cfg.Scheduler.MissedDayHour).
		WithFireTimeout(cfg.Scheduler.FireTimeout)

	healthCheck := usecase.NewHealthCheckService(repos.Challenges, repos.Users, scheduler, guard, eventPublisher, log).
		WithMetrics(schedulerMetrics).
		WithSchedule(cfg.Scheduler.HealthCheckHour, cfg.Scheduler.ReferenceUTCOffset).
		WithSweepLockTTL(cfg.Scheduler.SweepLockTTL)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Scheduler:   scheduler,
			HealthCheck: healthCheck,
		},
	})

	return &Application{
		cfg:         cfg,
		engine:      engine,
		logger:      log,
		pool:        pool,
		redis:       redisClient,
		scheduler:   scheduler,
		healthCheck: healthCheck,
		producer:    producer,
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
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	if err := a.scheduler.RestoreNotifications(ctx); err != nil {
		return fmt.Errorf("restore notifications: %w", err)
	}

	if err := a.healthCheck.ScheduleDailyHealthCheck(); err != nil {
		return fmt.Errorf("schedule health check: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting notification engine",
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
		a.healthCheck.Stop()
		a.scheduler.Shutdown()

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
