package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-presence/internal/service"
)

// ConversationHandler expone provision, baja e historial de conversaciones.
type ConversationHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
}

func NewConversationHandler(logger *zap.Logger, conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{logger: logger, conversations: conversations}
}

// Provision maneja POST /conversations.
func (h *ConversationHandler) Provision(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	var req struct {
		ParticipantAID int64 `json:"participant_a_id" binding:"required,gt=0"`
		ParticipantBID int64 `json:"participant_b_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid provision request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if callerID != req.ParticipantAID && callerID != req.ParticipantBID {
		c.JSON(http.StatusForbidden, gin.H{"error": "caller must be a participant"})
		return
	}

	conv, created, err := h.conversations.Provision(c.Request.Context(), req.ParticipantAID, req.ParticipantBID)
	if err != nil {
		respondError(c, h.logger, err, "provision conversation failed")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversation": conv})
}

// Deactivate maneja DELETE /conversations/:id.
func (h *ConversationHandler) Deactivate(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.Deactivate(c.Request.Context(), id, callerID); err != nil {
		respondError(c, h.logger, err, "deactivate conversation failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// List maneja GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	views, err := h.conversations.List(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, h.logger, err, "list conversations failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// History maneja GET /conversations/:id/messages?limit=&before=.
func (h *ConversationHandler) History(c *gin.Context) {
	callerID, ok := authUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	before, err := queryInt(c, "before")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before"})
		return
	}

	msgs, err := h.conversations.History(c.Request.Context(), id, callerID, int64(before), limit)
	if err != nil {
		respondError(c, h.logger, err, "list messages failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// respondError traduce errores de servicio; los internos se registran y se ocultan.
func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": publicMessage(err, code), "code": code})
}
