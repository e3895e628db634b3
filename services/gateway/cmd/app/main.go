package main

import (
	"matchbot/pkg/cache"
	"matchbot/pkg/config"
	"matchbot/pkg/logger"
	"matchbot/pkg/photostore"
	"matchbot/pkg/queue"
	"matchbot/pkg/s3"
	gatewayApp "matchbot/services/gateway/internal/app"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
)

// @title           Matchbot Gateway API
// @version         1.0
// @description     Gateway of the matchbot dating service: registration, candidate feed, reactions and photos
// @host            localhost:8080
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewWithOptions(logger.Options{
		Level:      cfg.LogLevel,
		JSON:       cfg.LogJSON,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	})
	defer log.Sync()

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		panic(err)
	}
	photos := photostore.New(s3Client, cache.NewPhotoCache(redisClient, cfg.PhotoCacheTTL), log)

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ: %v", err)
		panic(err)
	}

	gatewayApp.Run(cfg, log, redisClient, queueClient, photos)
}
