package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string

	// Database
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// RabbitMQ
	RabbitMQHost        string
	RabbitMQPort        string
	RabbitMQUser        string
	RabbitMQPassword    string
	RabbitMQVHost       string
	RabbitMQChannelPool int
	RabbitMQPrefetch    int

	// Request/reply protocol
	UserQueue         string
	WorkQueue         string
	MatchAlertQueue   string
	RPCTimeout        time.Duration
	WorkerConcurrency int

	// JWT
	JWTSecret string

	// AWS S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
	S3UseSSL           string
	S3BucketName       string
	PhotoCacheTTL      time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
	LogFile  string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	config := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "matchbot"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQHost:        getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:        getEnv("RABBITMQ_PORT", "5672"),
		RabbitMQUser:        getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword:    getEnv("RABBITMQ_PASSWORD", "guest"),
		RabbitMQVHost:       getEnv("RABBITMQ_VHOST", ""),
		RabbitMQChannelPool: getEnvInt("RABBITMQ_CHANNEL_POOL", 8),
		RabbitMQPrefetch:    getEnvInt("RABBITMQ_PREFETCH", 16),

		UserQueue:         getEnv("USER_QUEUE", "user_queue.{user_id}"),
		WorkQueue:         getEnv("WORK_QUEUE", "user_messages"),
		MatchAlertQueue:   getEnv("MATCH_ALERT_QUEUE", "match_alerts"),
		RPCTimeout:        getEnvDuration("RPC_TIMEOUT", 10*time.Second),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 8),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		S3UseSSL:           getEnv("S3_USE_SSL", "true"),
		S3BucketName:       getEnv("S3_BUCKET_NAME", "matchbot-photos"),
		PhotoCacheTTL:      getEnvDuration("PHOTO_CACHE_TTL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") and bare seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
