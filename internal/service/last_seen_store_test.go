package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	lastSetKey string
	lastSetVal interface{}
	lastSetTTL time.Duration
	lastGetKey string

	setErr error
	getErr error
	getVal string
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetVal = value
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.lastGetKey = key
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	cmd.SetVal(m.getVal)
	return cmd
}

func TestMemoryLastSeenStore(t *testing.T) {
	store := NewMemoryLastSeenStore()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, 1); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.Touch(ctx, 1, at); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	got, ok, err := store.Get(ctx, 1)
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("expected %v, got %v ok=%v err=%v", at, got, ok, err)
	}
}

func TestRedisLastSeenStore_TouchAndGet(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock := &mockRedisKVClient{getVal: "1767323045000"}
	store := &redisLastSeenStore{client: mock, prefix: "presence:last_seen:", ttl: time.Hour}

	if err := store.Touch(context.Background(), 42, at); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if mock.lastSetKey != "presence:last_seen:42" || mock.lastSetTTL != time.Hour {
		t.Fatalf("unexpected set key=%q ttl=%v", mock.lastSetKey, mock.lastSetTTL)
	}
	if mock.lastSetVal != at.UnixMilli() {
		t.Fatalf("expected unix millis, got %v", mock.lastSetVal)
	}

	got, ok, err := store.Get(context.Background(), 42)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
}

func TestRedisLastSeenStore_MissAndError(t *testing.T) {
	store := &redisLastSeenStore{client: &mockRedisKVClient{getErr: redis.Nil}, prefix: "p:"}
	if _, ok, err := store.Get(context.Background(), 1); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	store = &redisLastSeenStore{client: &mockRedisKVClient{getErr: errors.New("redis down")}, prefix: "p:"}
	if _, _, err := store.Get(context.Background(), 1); err == nil {
		t.Fatalf("expected redis error surfaced")
	}
}
