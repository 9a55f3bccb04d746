package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seangolding876/partsfinda-backend/api/controllers"
	"github.com/seangolding876/partsfinda-backend/api/routes"
	"github.com/seangolding876/partsfinda-backend/internal/conversations"
	"github.com/seangolding876/partsfinda-backend/internal/dispatch"
	"github.com/seangolding876/partsfinda-backend/internal/eligibility"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	"github.com/seangolding876/partsfinda-backend/internal/monitor"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/quotes"
	"github.com/seangolding876/partsfinda-backend/internal/realtime"
	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/internal/sellers"
	"github.com/seangolding876/partsfinda-backend/internal/supervisor"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/metrics"
	"github.com/seangolding876/partsfinda-backend/pkg/migrate"
	"github.com/seangolding876/partsfinda-backend/pkg/pubsub"
	"github.com/seangolding876/partsfinda-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	gormDB := dbClient.DB()
	requestsRepo := requests.NewRepository(gormDB)
	queueRepo := queue.NewRepository(gormDB)
	quotesRepo := quotes.NewRepository(gormDB)
	sellersRepo := sellers.NewRepository(gormDB)
	conversationsRepo := conversations.NewRepository(gormDB)
	messagesRepo := messages.NewRepository(gormDB)
	eligibilityRepo := eligibility.NewRepository(gormDB)
	monitorRepo := monitor.NewRepository(gormDB)

	eligibilitySvc, err := eligibility.NewService(eligibilityRepo)
	exitOn(logg, "failed to create eligibility service", err)

	queueSvc, err := queue.NewService(queueRepo)
	exitOn(logg, "failed to create queue service", err)

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
	exitOn(logg, "failed to create requests service", err)

	conversationsSvc, err := conversations.NewService(conversationsRepo, sellersRepo)
	exitOn(logg, "failed to create conversations service", err)

	quotesSvc, err := quotes.NewService(quotes.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Repo:          quotesRepo,
		Requests:      requestsRepo,
		Queue:         queueRepo,
		Sellers:       sellersRepo,
		Conversations: conversationsSvc,
	})
	exitOn(logg, "failed to create quotes service", err)

	hub, err := realtime.NewHub(realtime.HubParams{
		Logger:    logg,
		Typing:    redisClient,
		TypingTTL: cfg.Realtime.TypingTTL,
	})
	exitOn(logg, "failed to create realtime hub", err)

	messagesSvc, err := messages.NewService(messages.ServiceParams{
		Logger:        logg,
		Repo:          messagesRepo,
		Conversations: conversationsSvc,
		Broadcaster:   hub,
	})
	exitOn(logg, "failed to create messages service", err)

	wsHandler, err := realtime.NewHandler(realtime.HandlerParams{
		Hub:           hub,
		Logger:        logg,
		Realtime:      cfg.Realtime,
		JWT:           cfg.JWT,
		Messages:      messagesSvc,
		Conversations: conversationsSvc,
	})
	exitOn(logg, "failed to create websocket handler", err)

	monitorSvc, err := monitor.NewService(monitorRepo, queueSvc)
	exitOn(logg, "failed to create monitor service", err)

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	notifier, err := dispatch.NewPubSubNotifier(pubsubClient.NotificationPublisher())
	exitOn(logg, "failed to create seller notifier", err)

	worker, err := dispatch.NewWorker(dispatch.WorkerParams{
		Config:   cfg.Dispatch,
		Logger:   logg,
		Queue:    queueRepo,
		Notifier: notifier,
		Metrics:  dispatchMetrics,
	})
	exitOn(logg, "failed to create dispatch worker", err)

	workerSup, err := supervisor.New(supervisor.Params{
		Runner:       worker.Run,
		Logger:       logg,
		Metrics:      dispatchMetrics,
		DrainTimeout: cfg.Dispatch.DrainTimeout,
	})
	exitOn(logg, "failed to create worker supervisor", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := workerSup.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start dispatch worker", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Redis:  redisClient,
		Checks: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Requests: requestsSvc,
		Queue:    queueSvc,
		Quotes:   quotesSvc,
		Messages: messagesSvc,
		Monitor:  monitorSvc,
		Sellers:  sellersRepo,
		Worker:   workerSup,
		WS:       wsHandler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := workerSup.Stop(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "dispatch worker drain failed", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "server shutdown failed", err)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func exitOn(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
