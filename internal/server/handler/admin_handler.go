package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles operational endpoints.
type AdminHandler struct {
	predictor Predictor
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(p Predictor, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{predictor: p, logger: logger}
}

// Reload handles POST /admin/reload: every registered artifact is re-read
// from disk. A failed reload keeps serving the previous model.
func (h *AdminHandler) Reload(c *gin.Context) {
	if err := h.predictor.ReloadAll(c.Request.Context()); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, CodeInternal, "reload failed, previous model kept")
		return
	}
	h.logger.Info("models reloaded on request", zap.String("request_id", requestID(c)))
	c.Status(http.StatusNoContent)
}
