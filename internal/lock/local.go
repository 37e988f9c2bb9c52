package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mmynk/splitledger/internal/apperr"
)

// Local is an in-process Locker. Each key is a weight-one semaphore created on first
// use and dropped once nobody holds or waits for it.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLocal returns a Local locker that waits at most wait for each key.
func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, slots: make(map[string]*slot)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalize(keys)
	held := make([]func(), 0, len(keys))
	for _, key := range keys {
		release, err := l.acquireOne(ctx, key)
		if err != nil {
			releaseAll(held)
			return nil, err
		}
		held = append(held, release)
	}

	var once sync.Once
	return func() { once.Do(func() { releaseAll(held) }) }, nil
}

func (l *Local) acquireOne(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(key)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: timed out after %s waiting for %s", apperr.ErrConcurrencyConflict, l.wait, key)
	}
	return func() {
		s.sem.Release(1)
		l.unref(key)
	}, nil
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size reports how many keys are currently tracked.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
