package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SendLimiter limita la frecuencia de envios de mensajes por clave (usuario).
type SendLimiter interface {
	Allow(key string) bool
}

const redisSendAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisSendLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisSendLimiter comparte el limite entre instancias usando Redis.
func NewRedisSendLimiter(client *redis.Client, window time.Duration, max int) SendLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	if max <= 0 {
		max = 1
	}
	return &redisSendLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "chat:send:rl:",
	}
}

func (l *redisSendLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	count, err := l.client.Eval(ctx, redisSendAllowScript, []string{l.prefix + normalizedKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

type memorySendLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewMemorySendLimiter crea un limitador de ventana deslizante en memoria.
func NewMemorySendLimiter(window time.Duration, max int) SendLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &memorySendLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memorySendLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
