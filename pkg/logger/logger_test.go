package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := New()
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.info)
	assert.NotNil(t, logger.error)
	assert.NotNil(t, logger.warn)
	assert.NotNil(t, logger.debug)
}

func TestLogger_Formatting(t *testing.T) {
	logger := New()
	assert.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Info("User %d requested %s", 42, "get_next_profile")
		logger.Error("Failed to process request %d: %s", 404, "not found")
		logger.Warn("Warning: %s count is %d", "pending", 5)
		logger.Debug("debug %v", true)
	})
}

func TestWith(t *testing.T) {
	logger := New().With("component", "worker")
	assert.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Info("child logger works")
	})
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() {
		logger.Error("discarded %s", "message")
		logger.Sync()
	})
}

func TestNewWithOptions_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := NewWithOptions(Options{Level: "debug", JSON: true, File: path})

	logger.Info("written to %s", "file")
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewWithOptions_InvalidLevel(t *testing.T) {
	logger := NewWithOptions(Options{Level: "loud"})
	assert.NotNil(t, logger)
}
