package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auction-service/internal/api/http"
	"github.com/spec-kit/auction-service/internal/api/http/handlers"
	"github.com/spec-kit/auction-service/internal/auth"
	"github.com/spec-kit/auction-service/internal/clock"
	"github.com/spec-kit/auction-service/internal/config"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/persistence"
	"github.com/spec-kit/auction-service/internal/realtime"
	"github.com/spec-kit/auction-service/internal/repository"
	"github.com/spec-kit/auction-service/internal/repository/memory"
	"github.com/spec-kit/auction-service/internal/service"
	"github.com/spec-kit/auction-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		repos      repository.Set
		userLookup repository.UserRepository
		readiness  = map[string]handlers.Pinger{}
	)
	if pg.Enabled() {
		repos = repository.NewPostgresSet(pg.Pool)
		userLookup = repos.Users
		readiness["postgres"] = pg
	} else {
		repos = memory.NewStore().Set()
		readiness["postgres"] = nil
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	readiness["redis"] = redis
	live := realtime.NewRedisPublisher(redis.Client, cfg.Notification.ChannelPrefix, cfg.Notification.PushTimeout(), logger)

	queue := events.NewQueue(cfg.AutoBid.QueueCapacity)

	ledger := service.NewBidLedger(service.BidLedgerDependencies{
		BidRepo:        repos.Bids,
		Publisher:      queue,
		Broadcaster:    live,
		PublishTimeout: cfg.AutoBid.PublishTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})
	engine := service.NewAutoBidEngine(service.AutoBidDependencies{
		AutoBidRepo:    repos.AutoBids,
		AuctionRepo:    repos.Auctions,
		Reader:         ledger,
		Writer:         ledger,
		Publisher:      queue,
		PublishTimeout: cfg.AutoBid.PublishTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})
	auctions := service.NewAuctionService(service.AuctionDependencies{AuctionRepo: repos.Auctions, Logger: logger})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Publisher:        live,
		Logger:           logger,
		Metrics:          metrics,
	})
	statistics := service.NewStatisticsService(repos.Statistics)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	autoBidDone := worker.StartAutoBidWorker(workerCtx, queue, engine, logger)

	schedulerDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		scheduler := worker.NewAuctionScheduler(worker.SchedulerDependencies{
			AuctionRepo: repos.Auctions,
			BidReader:   ledger,
			Notifier:    notifications,
			Clock:       clock.Real(),
			Interval:    cfg.Scheduler.Interval(),
			Logger:      logger,
			Metrics:     metrics,
		})
		go func() {
			defer close(schedulerDone)
			scheduler.Run(workerCtx)
		}()
	} else {
		logger.Warn("auction scheduler disabled")
		close(schedulerDone)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	// route params are kept by the ledger and the auto-bid queue after the request ends
	app := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, queue.Len),
		Auctions:       handlers.NewAuctionsHandler(auctions, ledger, engine),
		Notifications:  handlers.NewNotificationsHandler(notifications, statistics),
		Metrics:        observability.Handler(registry),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userLookup),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopWorkers()
	queue.Close()
	<-autoBidDone
	<-schedulerDone
	ledger.Wait()
	notifications.Wait()
	logger.Info("shutdown complete", zap.Int("dropped_auto_bid_events", queue.Len()))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
