package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-presence/internal/service"
)

type NotificationHandler struct {
	logger        *zap.Logger
	notifications *service.NotificationService
}

func NewNotificationHandler(logger *zap.Logger, notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{logger: logger, notifications: notifications}
}

// List maneja GET /notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	out, err := h.notifications.List(c.Request.Context(), callerID, limit)
	if err != nil {
		respondError(c, h.logger, err, "list notifications failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// MarkRead maneja POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), id, callerID); err != nil {
		respondError(c, h.logger, err, "mark notification read failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead maneja POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, h.logger, err, "mark all notifications read failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
