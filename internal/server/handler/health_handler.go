package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles liveness and readiness.
type HealthHandler struct {
	predictor Predictor
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(p Predictor) *HealthHandler {
	return &HealthHandler{predictor: p}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health. The process is alive whenever it can answer;
// the model component is informational.
func (h *HealthHandler) Health(c *gin.Context) {
	model := "not loaded"
	if h.predictor.Ready() {
		model = "ok"
	}
	c.JSON(http.StatusOK, HealthStatus{
		Status:     "healthy",
		Components: map[string]string{"model": model},
	})
}

// Ready handles GET /ready. It answers 503 until a model is registered.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.predictor.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "models": h.predictor.Models()})
}
