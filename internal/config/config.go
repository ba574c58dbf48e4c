package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string   `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL         string   `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret           string   `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int      `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	SMTPHost            string   `env:"SMTP_HOST"`
	SMTPPort            int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser            string   `env:"SMTP_USER"`
	SMTPPass            string   `env:"SMTP_PASS"`
	SMTPFrom            string   `env:"SMTP_FROM"`
	SMTPFromName        string   `env:"SMTP_FROM_NAME"`
	SMTPUseTLS          bool     `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr           string   `env:"REDIS_ADDR"`
	RedisPassword       string   `env:"REDIS_PASSWORD"`
	RedisDB             int      `env:"REDIS_DB" envDefault:"0"`
	AppBaseURL          string   `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	WSAllowedOrigins    []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	SendRateWindowSecs  int      `env:"SEND_RATE_WINDOW_SECONDS" envDefault:"10"`
	SendRateMax         int      `env:"SEND_RATE_MAX" envDefault:"30"`
	WorkerConcurrency   int      `env:"WORKER_CONCURRENCY" envDefault:"10"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return &cfg, nil
}
