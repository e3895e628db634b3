package internal

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"matchbot/pkg/config"
	"matchbot/pkg/jwt"
	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/pkg/middleware"
	"matchbot/pkg/photostore"
	"matchbot/pkg/queue"
	_ "matchbot/services/gateway/docs" // Swagger docs
	gatewayHTTP "matchbot/services/gateway/internal/controller/http"
	"matchbot/services/gateway/internal/notify"
	"matchbot/services/gateway/internal/rpc"
	"matchbot/services/gateway/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

const (
	requestsPerWindow = 100
	rateLimitWindow   = time.Minute
)

// NewRouter mounts the public API behind auth, subject and rate limiting.
// health reports the broker connection state.
func NewRouter(jwtService *jwt.Service, redisClient *redis.Client, datingHandler *gatewayHTTP.DatingHandler, health func() error) *gin.Engine {
	r := gin.Default()
	r.Use(metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		if err := health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "rabbitmq": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	users := api.Group("/users/:tg_id")
	users.Use(
		middleware.AuthMiddleware(jwtService),
		middleware.SubjectMiddleware("tg_id"),
		middleware.RateLimitMiddleware(redisClient, requestsPerWindow, rateLimitWindow),
	)
	{
		users.GET("/exists", datingHandler.CheckUser)
		users.POST("/register", datingHandler.Register)
		users.GET("/next-profile", datingHandler.NextProfile)
		users.POST("/reactions", datingHandler.React)
		users.PUT("/preferences", datingHandler.UpdatePreferences)
		users.PUT("/photo", datingHandler.UpdatePhoto)
		users.PATCH("/profile", datingHandler.UpdateProfile)
		users.GET("/rating", datingHandler.Rating)
		users.GET("/photo", datingHandler.Photo)
	}

	return r
}

func Run(cfg *config.Config, log *logger.Logger, redisClient *redis.Client, queueClient *queue.Client, photos *photostore.Store) {
	jwtService := jwt.NewService(cfg.JWTSecret)

	rpcClient := rpc.NewClient(queueClient, cfg, log)
	notifier := notify.NewMatchNotifier(queueClient, cfg.MatchAlertQueue, log)
	if err := notifier.EnsureTopology(); err != nil {
		log.Warn("Match alert topology not ready, retrying on first match: %v", err)
	}

	// Initialize use cases
	datingUseCase := usecase.NewDatingUseCase(rpcClient, photos, notifier, log)

	// Initialize handlers
	datingHandler := gatewayHTTP.NewDatingHandler(datingUseCase, log)

	r := NewRouter(jwtService, redisClient, datingHandler, queueClient.Ping)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info("Gateway starting on port %s", cfg.ServerPort)
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

	if err := eg.Wait(); err != nil {
		log.Error("Gateway stopped with error: %v", err)
	}
	log.Info("Shutting down gateway...")

	// Pending calls fail before the broker goes away
	rpcClient.Close()

	if err := queueClient.Close(); err != nil {
		log.Error("Error closing RabbitMQ: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis: %v", err)
	}

	log.Info("Gateway exited")
}
