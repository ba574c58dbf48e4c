package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-presence/internal/service"
)

// HealthCheck comprueba las dependencias criticas (la base de datos).
type HealthCheck func(ctx context.Context) error

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	health HealthCheck,
	wsH *WSHandler,
	convH *ConversationHandler,
	notifH *NotificationHandler,
	presH *PresenceHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", healthHandler(health))

	// El websocket autentica por su cuenta: el navegador no puede mandar cabeceras.
	r.GET("/ws", wsH.Handle)

	api := r.Group("", jsonContentTypeMiddleware(), JWTAuthMiddleware(jwtSvc))

	conversations := api.Group("/conversations")
	conversations.POST("", convH.Provision)
	conversations.GET("", convH.List)
	conversations.DELETE("/:id", convH.Deactivate)
	conversations.GET("/:id/messages", convH.History)

	notifications := api.Group("/notifications")
	notifications.GET("", notifH.List)
	notifications.POST("/read-all", notifH.MarkAllRead)
	notifications.POST("/:id/read", notifH.MarkRead)

	presence := api.Group("/presence")
	presence.GET("/:userId", presH.Status)
	presence.POST("/batch", presH.Batch)

	return r
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
