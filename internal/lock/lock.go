// Package lock serializes ledger mutations per balance edge key.
//
// A mutation acquires every key it will touch before it starts its transaction. Keys are
// always taken in sorted order so two mutations sharing keys cannot deadlock, and each
// key is waited for at most a bounded time. A wait that runs out is reported as
// apperr.ErrConcurrencyConflict for the engine to retry.
package lock

import (
	"context"
	"slices"
)

// Locker acquires a set of keys.
type Locker interface {
	// Acquire blocks until every key is held or the wait for one of them expires.
	// On failure nothing is held. The returned Release must be called exactly once.
	Acquire(ctx context.Context, keys []string) (Release, error)
}

// Release gives back every key taken by one Acquire call.
type Release func()

// normalize sorts keys and drops duplicates and empty names.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return out
}

// releaseAll runs releases in reverse acquisition order.
func releaseAll(releases []func()) {
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}
