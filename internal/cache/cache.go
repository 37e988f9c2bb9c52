// Package cache keeps per-user net balances in Redis.
//
// Every user has a generation counter. A cached value is stored under the generation
// that was current before it was computed, and every committed mutation bumps the
// generation of each user it touched. A value computed from a snapshot older than the
// latest bump is therefore never found again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NetBalances caches currency to signed minor-unit totals per user.
type NetBalances struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewNetBalances returns a cache whose entries live for ttl.
func NewNetBalances(rdb redis.UniversalClient, ttl time.Duration) *NetBalances {
	return &NetBalances{rdb: rdb, ttl: ttl, prefix: "net:"}
}

func (c *NetBalances) genKey(userID string) string {
	return c.prefix + "gen:" + userID
}

func (c *NetBalances) valueKey(userID, gen string) string {
	return c.prefix + userID + ":" + gen
}

// Lookup returns the cached net balance of userID if one exists for the current
// generation. The returned token must be passed to Store when ok is false.
// Redis failures are logged and reported as a miss.
func (c *NetBalances) Lookup(ctx context.Context, userID string) (net map[string]int64, token string, ok bool) {
	gen, err := c.rdb.Get(ctx, c.genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		slog.WarnContext(ctx, "Net balance cache unavailable", "user_id", userID, "error", err)
		return nil, "", false
	}

	val, err := c.rdb.Get(ctx, c.valueKey(userID, gen)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		slog.WarnContext(ctx, "Net balance cache read failed", "user_id", userID, "error", err)
		return nil, "", false
	}
	if err := json.Unmarshal([]byte(val), &net); err != nil {
		slog.WarnContext(ctx, "Discarding corrupt net balance cache entry", "user_id", userID, "error", err)
		return nil, gen, false
	}
	return net, gen, true
}

// Store caches net under the generation token returned by Lookup.
func (c *NetBalances) Store(ctx context.Context, userID, token string, net map[string]int64) {
	if token == "" {
		return
	}
	b, err := json.Marshal(net)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.valueKey(userID, token), b, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Net balance cache write failed", "user_id", userID, "error", err)
	}
}

// Invalidate bumps the generation of every user given.
func (c *NetBalances) Invalidate(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for _, userID := range userIDs {
		pipe.Incr(ctx, c.genKey(userID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bump net balance generations: %w", err)
	}
	return nil
}

// generation returns the current generation of userID.
func (c *NetBalances) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(gen, 10, 64)
}
