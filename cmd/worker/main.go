package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"chat-presence/internal/config"
	"chat-presence/internal/email"
	"chat-presence/internal/queue"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// worker consume la cola de correos salientes.
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

	if cfg.RedisAddr == "" {
		logger.Fatal("worker requires REDIS_ADDR")
	}

	var sender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		smtpSender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Fatal("smtp sender init failed", zap.Error(err))
		}
		sender = smtpSender
	} else {
		logger.Warn("SMTP_HOST empty; queued emails will fail and be retried")
	}

	srv, err := queue.NewAsynqServer(queue.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("queue server init failed", zap.Error(err))
	}
	queue.RegisterEmailTask(srv, sender, logger)

	logger.Info("worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
