package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"matchbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveHealth(t *testing.T, checks map[string]CheckFunc) (int, map[string]interface{}) {
	t.Helper()
	r := gin.New()
	r.GET("/health", NewHealthHandler(checks, logger.Nop()).Health)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth_AllChecksPass(t *testing.T) {
	code, body := serveHealth(t, map[string]CheckFunc{
		"database": func(ctx context.Context) error { return nil },
		"rabbitmq": func(ctx context.Context) error { return nil },
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["rabbitmq"])
}

func TestHealth_FailingCheck(t *testing.T) {
	code, body := serveHealth(t, map[string]CheckFunc{
		"database": func(ctx context.Context) error { return nil },
		"rabbitmq": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "connection refused", checks["rabbitmq"])
}
