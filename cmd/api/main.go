package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-presence/internal/config"
	"chat-presence/internal/db"
	"chat-presence/internal/email"
	apihttp "chat-presence/internal/http"
	"chat-presence/internal/queue"
	"chat-presence/internal/realtime"
	"chat-presence/internal/repository"
	"chat-presence/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	notificationRepo := repository.NewPgNotificationRepository(pool)

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	sendWindow := time.Duration(cfg.SendRateWindowSecs) * time.Second
	var (
		sendLimiter = service.NewMemorySendLimiter(sendWindow, cfg.SendRateMax)
		lastSeen    = service.NewMemoryLastSeenStore()
		queueClient *queue.AsynqClient
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sendLimiter = service.NewRedisSendLimiter(redisClient, sendWindow, cfg.SendRateMax)
			lastSeen = service.NewRedisLastSeenStore(redisClient)
			queueClient, err = queue.NewAsynqClient(queue.RedisOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				logger.Warn("email queue init failed", zap.Error(err))
			} else {
				// El worker hace el envio SMTP real.
				emailSender = queue.NewQueuedSender(queueClient)
			}
		}
		cancel()
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	registry := realtime.NewRegistry()
	channels := realtime.NewChannels()

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	dispatcher := service.NewOfflineDispatcher(logger, notificationRepo, userRepo, emailSender, email.NewLogPushNotifier(logger), cfg.AppBaseURL)
	presenceSvc := service.NewPresenceService(logger, registry, channels, lastSeen)
	chatSvc := service.NewChatService(logger, conversationRepo, messageRepo, registry, channels, dispatcher, sendLimiter)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, userRepo, registry)
	notificationSvc := service.NewNotificationService(notificationRepo)

	wsHandler := apihttp.NewWSHandler(logger, jwtSvc, userRepo, registry, presenceSvc, chatSvc, cfg.WSAllowedOrigins)
	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		func(ctx context.Context) error { return db.Ping(ctx, pool) },
		wsHandler,
		apihttp.NewConversationHandler(logger, conversationSvc),
		apihttp.NewNotificationHandler(logger, notificationSvc),
		apihttp.NewPresenceHandler(logger, presenceSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown", zap.Error(err))
	}
	chatSvc.Drain()

	if queueClient != nil {
		_ = queueClient.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
