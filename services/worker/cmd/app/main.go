package main

import (
	"matchbot/pkg/cache"
	"matchbot/pkg/config"
	"matchbot/pkg/database"
	"matchbot/pkg/logger"
	"matchbot/pkg/photostore"
	"matchbot/pkg/queue"
	"matchbot/pkg/s3"
	workerApp "matchbot/services/worker/internal/app"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
)

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

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

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

	// The worker cannot serve anything without the broker
	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ: %v", err)
		panic(err)
	}

	workerApp.Run(cfg, log, db, redisClient, queueClient, photos)
}
