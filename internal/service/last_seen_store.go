package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LastSeenStore recuerda cuando se cerro la ultima sesion de cada usuario.
type LastSeenStore interface {
	Touch(ctx context.Context, userID int64, at time.Time) error
	Get(ctx context.Context, userID int64) (time.Time, bool, error)
}

type memoryLastSeenStore struct {
	mu    sync.Mutex
	items map[int64]time.Time
}

func NewMemoryLastSeenStore() LastSeenStore {
	return &memoryLastSeenStore{
		items: make(map[int64]time.Time),
	}
}

func (s *memoryLastSeenStore) Touch(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = at.UTC()
	return nil
}

func (s *memoryLastSeenStore) Get(_ context.Context, userID int64) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.items[userID]
	return at, ok, nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisLastSeenStore struct {
	client redisKVClient
	prefix string
	ttl    time.Duration
}

func NewRedisLastSeenStore(client *redis.Client) LastSeenStore {
	if client == nil {
		return nil
	}
	return &redisLastSeenStore{
		client: client,
		prefix: "presence:last_seen:",
		ttl:    30 * 24 * time.Hour,
	}
}

func (s *redisLastSeenStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

func (s *redisLastSeenStore) Touch(ctx context.Context, userID int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.key(userID), at.UTC().UnixMilli(), s.ttl).Err()
}

func (s *redisLastSeenStore) Get(ctx context.Context, userID int64) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	ms, err := s.client.Get(ctx, s.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}
