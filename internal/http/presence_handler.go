package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-presence/internal/service"
)

// PresenceHandler replica por REST las consultas de estado del websocket.
type PresenceHandler struct {
	logger   *zap.Logger
	presence *service.PresenceService
}

func NewPresenceHandler(logger *zap.Logger, presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{logger: logger, presence: presence}
}

// Status maneja GET /presence/:userId.
func (h *PresenceHandler) Status(c *gin.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}
	st, err := h.presence.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "presence status failed")
		return
	}
	c.JSON(http.StatusOK, st)
}

// Batch maneja POST /presence/batch.
func (h *PresenceHandler) Batch(c *gin.Context) {
	var req struct {
		UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid presence batch request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	statuses, err := h.presence.StatusBatch(c.Request.Context(), req.UserIDs)
	if err != nil {
		respondError(c, h.logger, err, "presence batch failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}
