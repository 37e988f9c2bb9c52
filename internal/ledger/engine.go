// Package ledger turns expenses and settlements into pairwise per-currency balance edges.
//
// Every mutation follows the same path: validate and compute the edge deltas, lock the
// affected edge keys, apply everything in one storage transaction, then release. Edge
// contention is retried with backoff. Cached net balances of the touched users are
// invalidated before the locks are released. After that the engine publishes an event
// and records metrics; none of it can undo the commit.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/lock"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/storage"
)

// Operation names used in logs and metrics.
const (
	opCreateExpense    = "create_expense"
	opUpdateExpense    = "update_expense"
	opDeleteExpense    = "delete_expense"
	opCreateSettlement = "create_settlement"
)

// Session identifies the caller of an engine operation.
type Session struct {
	UserID string
}

func (s Session) require(action, resource string) error {
	if s.UserID == "" {
		return apperr.Permission("", action, resource)
	}
	return nil
}

// NetCache stores per-user net balances between mutations.
type NetCache interface {
	// Lookup returns a cached value, or a token to pass to Store on a miss.
	Lookup(ctx context.Context, userID string) (net map[string]int64, token string, ok bool)
	Store(ctx context.Context, userID, token string, net map[string]int64)
	// Invalidate makes every cached value of the given users unreachable.
	Invalidate(ctx context.Context, userIDs []string) error
}

// Engine owns every mutation of the ledger.
type Engine struct {
	store     storage.Store
	locker    lock.Locker
	publisher events.Publisher
	cache     NetCache
	metrics   *metrics.Ledger
	retry     RetryPolicy
	now       func() time.Time
	logger    *slog.Logger
	stale     *staleUsers
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where committed mutations are announced.
func WithPublisher(p events.Publisher) Option { return func(e *Engine) { e.publisher = p } }

// WithNetCache enables net balance caching.
func WithNetCache(c NetCache) Option { return func(e *Engine) { e.cache = c } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Ledger) Option { return func(e *Engine) { e.metrics = m } }

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option { return func(e *Engine) { e.retry = p } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine creates an engine over store, serializing mutations with locker.
func NewEngine(store storage.Store, locker lock.Locker, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		locker:    locker,
		publisher: events.Nop{},
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
		logger:    slog.Default(),
		stale:     newStaleUsers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queries returns the read side over the same store and cache.
func (e *Engine) Queries() *Queries {
	return &Queries{store: e.store, cache: e.cache, stale: e.stale, logger: e.logger}
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// plan is one attempt of a mutation: the edge locks it needs and the work to do
// under them inside a transaction. apply returns the users whose balances changed.
type plan struct {
	locks []string
	apply func(ctx context.Context, tx storage.Tx) ([]string, error)
}

// mutate runs plans from prepare until one commits, a non-transient error occurs or
// the retry policy is exhausted, and returns the users the committed plan touched.
// prepare runs again on every attempt so reads taken outside the lock are refreshed.
func (e *Engine) mutate(ctx context.Context, op string, prepare func(ctx context.Context) (*plan, error)) (touched []string, err error) {
	start := time.Now()
	defer func() { e.metrics.Observe(op, resultOf(err), time.Since(start)) }()

	var locks []string
	attempt := 0
	err = backoff.RetryNotify(func() error {
		attempt++
		p, err := prepare(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		locks = p.locks

		touched, err = e.runPlan(ctx, p)
		if err != nil && !apperr.IsConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, e.retry.backOff(ctx), func(err error, delay time.Duration) {
		e.metrics.Retry(op)
		e.logger.WarnContext(ctx, "Edge contention, retrying",
			"operation", op, "attempt", attempt, "delay", delay, "error", err)
	})
	if err != nil {
		if apperr.IsConflict(err) {
			return nil, &apperr.ConflictError{Operation: op, Keys: locks, Attempts: attempt, Err: err}
		}
		return nil, err
	}
	return touched, nil
}

// runPlan applies p under its locks. Cached net balances of the touched users are
// invalidated before the locks are released.
func (e *Engine) runPlan(ctx context.Context, p *plan) ([]string, error) {
	release, err := e.locker.Acquire(ctx, p.locks)
	if err != nil {
		return nil, err
	}
	defer release()

	var touched []string
	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		touched, err = p.apply(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, touched)
	return touched, nil
}

// invalidate bumps the cache generation of users. A user whose bump fails is read from
// the store until a later bump succeeds.
func (e *Engine) invalidate(ctx context.Context, users []string) {
	if e.cache == nil || len(users) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := e.cache.Invalidate(ctx, users); err != nil {
		e.stale.mark(users)
		e.logger.ErrorContext(ctx, "Failed to invalidate net balances, bypassing cache", "users", users, "error", err)
		return
	}
	e.stale.clear(users)
}

// afterCommit runs the side effects of a committed mutation. They survive cancellation
// of the request that caused them.
func (e *Engine) afterCommit(ctx context.Context, event events.Event, touched []string) {
	ctx = context.WithoutCancel(ctx)

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish ledger event", "type", event.Type, "error", err)
	}

	e.logger.InfoContext(ctx, "Ledger mutation committed",
		"type", event.Type,
		"actor", event.ActorID,
		"expense_id", event.ExpenseID,
		"settlement_id", event.SettlementID,
		"group_id", event.GroupID,
		"currency", event.Currency,
		"users", touched)
}

func resultOf(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	if apperr.IsConflict(err) {
		return metrics.ResultConflict
	}
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		pe *apperr.PermissionError
		xe *apperr.ExcessSettlementError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &pe) || errors.As(err, &xe) {
		return metrics.ResultRejected
	}
	return metrics.ResultError
}
