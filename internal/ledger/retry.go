package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryJitter spreads each backoff interval over [0.5, 1.5] of its nominal value.
const retryJitter = 0.5

// RetryPolicy bounds how often a mutation is retried after edge key contention.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int
	// BaseDelay is the nominal wait after the first failed attempt; it doubles each time.
	BaseDelay time.Duration
	// MaxDelay caps the nominal wait. Zero means one second.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns five attempts starting at 20ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 20 * time.Millisecond, MaxDelay: time.Second}
}

func (p RetryPolicy) attempts() int {
	return max(1, p.MaxAttempts)
}

// backOff returns a randomized exponential schedule that stops after MaxAttempts-1
// retries or when ctx ends.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(max(0, p.BaseDelay)),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(retryJitter),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.attempts()-1)), ctx)
}
