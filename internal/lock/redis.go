package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitledger/internal/apperr"
)

// Redis is a Locker shared by every server process pointed at the same Redis.
// Each key is a redsync mutex with a TTL, so a crashed holder cannot block a key forever.
type Redis struct {
	rs         *redsync.Redsync
	prefix     string
	ttl        time.Duration
	tries      int
	retryDelay time.Duration
}

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	// Prefix is prepended to every key name. Default "lock:".
	Prefix string
	// TTL bounds how long a key stays held if its holder disappears. Default 10s.
	TTL time.Duration
	// Wait bounds how long Acquire waits for one key. Default 2s.
	Wait time.Duration
	// RetryDelay is the pause between attempts on a busy key. Default 25ms.
	RetryDelay time.Duration
}

// NewRedis returns a Redis locker backed by client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 2 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 25 * time.Millisecond
	}
	return &Redis{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     opts.Prefix,
		ttl:        opts.TTL,
		tries:      max(1, int(opts.Wait/opts.RetryDelay)),
		retryDelay: opts.RetryDelay,
	}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalize(keys)
	held := make([]func(), 0, len(keys))
	for _, key := range keys {
		mutex := r.rs.NewMutex(r.prefix+key,
			redsync.WithExpiry(r.ttl),
			redsync.WithTries(r.tries),
			redsync.WithRetryDelay(r.retryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			releaseAll(held)
			var taken redsync.ErrTaken
			if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
				return nil, fmt.Errorf("%w: %s is held elsewhere", apperr.ErrConcurrencyConflict, key)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", key, err)
		}
		held = append(held, func() {
			// The mutex may outlive ctx; release with a fresh short deadline.
			unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
				slog.Warn("Failed to release edge lock", "key", key, "error", err)
			}
		})
	}

	var once sync.Once
	return func() { once.Do(func() { releaseAll(held) }) }, nil
}
