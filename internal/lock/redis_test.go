package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitledger/internal/apperr"
)

func newTestRedis(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, RedisOptions{Wait: wait, RetryDelay: 10 * time.Millisecond, TTL: time.Second}), mr
}

func TestRedis_AcquireRelease(t *testing.T) {
	l, mr := newTestRedis(t, 100*time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"edge:b", "edge:a"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !mr.Exists("lock:edge:a") || !mr.Exists("lock:edge:b") {
		t.Fatalf("expected lock keys in redis, have %v", mr.Keys())
	}

	release()
	if mr.Exists("lock:edge:a") || mr.Exists("lock:edge:b") {
		t.Errorf("expected lock keys removed, have %v", mr.Keys())
	}
}

func TestRedis_BusyKeyIsConflict(t *testing.T) {
	l, mr := newTestRedis(t, 50*time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"edge:x"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	_, err = l.Acquire(ctx, []string{"edge:w", "edge:x"})
	if !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if mr.Exists("lock:edge:w") {
		t.Error("edge:w should have been released after the failed Acquire")
	}
}

func TestRedis_ExpiredHolderDoesNotBlock(t *testing.T) {
	l, mr := newTestRedis(t, 200*time.Millisecond)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, []string{"edge:x"}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(ctx, []string{"edge:x"})
	if err != nil {
		t.Fatalf("expected abandoned lock to expire, got %v", err)
	}
	release()
}
