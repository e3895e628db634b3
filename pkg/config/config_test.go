package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("SERVER_PORT", "8080")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("DB_USER", "testuser")
	os.Setenv("DB_PASSWORD", "testpass")
	os.Setenv("DB_NAME", "testdb")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("RABBITMQ_HOST", "rabbit")
	os.Setenv("USER_QUEUE", "reply.{user_id}")
	os.Setenv("RPC_TIMEOUT", "3s")
	os.Setenv("WORKER_CONCURRENCY", "4")
	os.Setenv("JWT_SECRET", "test-secret")

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Assertions
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "testuser", cfg.DBUser)
	assert.Equal(t, "testpass", cfg.DBPassword)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.Equal(t, "rabbit", cfg.RabbitMQHost)
	assert.Equal(t, "reply.{user_id}", cfg.UserQueue)
	assert.Equal(t, 3*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, "test-secret", cfg.JWTSecret)

	// Cleanup
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("DB_HOST")
	os.Unsetenv("DB_PORT")
	os.Unsetenv("DB_USER")
	os.Unsetenv("DB_PASSWORD")
	os.Unsetenv("DB_NAME")
	os.Unsetenv("REDIS_HOST")
	os.Unsetenv("REDIS_PORT")
	os.Unsetenv("RABBITMQ_HOST")
	os.Unsetenv("USER_QUEUE")
	os.Unsetenv("RPC_TIMEOUT")
	os.Unsetenv("WORKER_CONCURRENCY")
	os.Unsetenv("JWT_SECRET")
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("USER_QUEUE")
	os.Unsetenv("WORK_QUEUE")
	os.Unsetenv("RPC_TIMEOUT")
	os.Unsetenv("PHOTO_CACHE_TTL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, "user_queue.{user_id}", cfg.UserQueue)
	assert.Equal(t, "user_messages", cfg.WorkQueue)
	assert.Equal(t, "match_alerts", cfg.MatchAlertQueue)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, time.Hour, cfg.PhotoCacheTTL)
}

func TestGetEnvDuration_Seconds(t *testing.T) {
	os.Setenv("TEST_DURATION", "15")
	defer os.Unsetenv("TEST_DURATION")

	assert.Equal(t, 15*time.Second, getEnvDuration("TEST_DURATION", time.Second))
}

func TestGetEnvDuration_Invalid(t *testing.T) {
	os.Setenv("TEST_DURATION", "soon")
	defer os.Unsetenv("TEST_DURATION")

	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
}
