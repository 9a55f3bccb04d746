package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seangolding876/partsfinda-backend/internal/cron"
	"github.com/seangolding876/partsfinda-backend/internal/eligibility"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/metrics"
	"github.com/seangolding876/partsfinda-backend/pkg/migrate"
	"github.com/seangolding876/partsfinda-backend/pkg/redis"
)

const lockKeyFormat = "pf:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	requestsRepo := requests.NewRepository(gormDB)
	queueRepo := queue.NewRepository(gormDB)

	eligibilitySvc, err := eligibility.NewService(eligibility.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create eligibility service", err)
		os.Exit(1)
	}

	queueSvc, err := queue.NewService(queueRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create queue service", err)
		os.Exit(1)
	}

	requestsSvc, err := requests.NewService(requests.ServiceParams{
		Config:      cfg.Requests,
		Dispatch:    cfg.Dispatch,
		Logger:      logg,
		DB:          dbClient,
		Repo:        requestsRepo,
		Eligibility: eligibilitySvc,
		Queue:       queueSvc,
		QueueRepo:   queueRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}

	requestTTLJob, err := cron.NewRequestTTLJob(cron.RequestTTLJobParams{
		Logger:   logg,
		Requests: requestsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create request ttl job", err)
		os.Exit(1)
	}

	queueExpiryJob, err := cron.NewQueueExpiryJob(cron.QueueExpiryJobParams{
		Logger: logg,
		Queue:  queueRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create queue expiry job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(requestTTLJob, queueExpiryJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
