package internal

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"matchbot/pkg/config"
	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/pkg/protocol"
	"matchbot/pkg/queue"
	"matchbot/services/worker/internal/controller/broker"
	workerHTTP "matchbot/services/worker/internal/controller/http"
	"matchbot/services/worker/internal/repo/persistent"
	"matchbot/services/worker/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	consumerTag    = "matchbot-worker"
	reconnectDelay = 3 * time.Second
)

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, queueClient *queue.Client, photos usecase.PhotoStorage) {
	// Initialize repositories
	userRepo := persistent.NewUserRepository(db)
	transactor := persistent.NewTransactor(db)

	// Initialize use cases
	profileUseCase := usecase.NewProfileUseCase(userRepo, transactor, photos, log)
	matchingUseCase := usecase.NewMatchingUseCase(userRepo, transactor, log)

	router := broker.NewRouter(profileUseCase, matchingUseCase, queueClient, cfg.UserQueue, cfg.WorkQueue, log)

	healthHandler := workerHTTP.NewHealthHandler(map[string]workerHTTP.CheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"rabbitmq": func(ctx context.Context) error {
			return queueClient.Ping()
		},
	}, log)

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info("Worker HTTP server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown: %v", err)
		}
		return nil
	})

	eg.Go(func() error {
		return consume(groupCtx, cfg, log, queueClient, router)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Worker stopped with error: %v", err)
	}
	log.Info("Shutting down worker...")

	// Close RabbitMQ connection
	if err := queueClient.Close(); err != nil {
		log.Error("Error closing RabbitMQ: %v", err)
	}

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis: %v", err)
	}

	// Close database connection
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	log.Info("Worker exited")
}

// consume serves the work queue until ctx is done, re-declaring the
// topology and resubscribing whenever the broker drops the consumer.
func consume(ctx context.Context, cfg *config.Config, log *logger.Logger, queueClient *queue.Client, router *broker.Router) error {
	for {
		err := queueClient.DeclareWorkQueue(cfg.WorkQueue, protocol.WorkRoutingKey, protocol.AllExchanges())
		if err == nil {
			err = serve(ctx, cfg, log, queueClient, router)
			if err == nil {
				return nil
			}
		}
		if errors.Is(err, queue.ErrClosed) {
			return err
		}

		log.Warn("Worker consumer stopped: %v, retrying in %s", err, reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, queueClient *queue.Client, router *broker.Router) error {
	deliveries, err := queueClient.Consume(ctx, cfg.WorkQueue, consumerTag, cfg.RabbitMQPrefetch)
	if err != nil {
		return err
	}
	log.Info("Worker consuming %s with concurrency %d", cfg.WorkQueue, cfg.WorkerConcurrency)
	return router.Serve(ctx, deliveries, cfg.WorkerConcurrency)
}
