package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russiantech/score-app-server-sub000/internal/service"
)

func TestMetricsHandlerSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(service.NewMetricsService())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/metrics/snapshot", nil)
	c.Request = req

	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_hit_ratio")
}

func TestMetricsHandlerPrometheusExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordScores(3, 1)
	handler := NewMetricsHandler(metrics)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	c.Request = req

	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scores_recorded_total")
}

func TestMetricsHandlerUnavailableWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	c.Request = req

	handler.Prometheus(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
