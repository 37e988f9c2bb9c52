package ledger

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Queries is the read-only view of the ledger. It never mutates state and only ever
// sees committed data.
type Queries struct {
	store  storage.Reader
	cache  NetCache
	stale  *staleUsers
	logger *slog.Logger
}

// NewQueries builds a read side over store without caching.
func NewQueries(store storage.Reader) *Queries {
	return &Queries{store: store, logger: slog.Default()}
}

// GroupSummary is everything a group page needs in one read.
type GroupSummary struct {
	Group       *models.Group
	Balances    []models.Balance
	Members     []calculator.MemberBalance
	Suggested   []calculator.DebtEdge
	Settlements []*models.Settlement
}

// GroupBalances lists the edges in a group's scope. The caller must be a member.
func (q *Queries) GroupBalances(ctx context.Context, s Session, groupID string) ([]models.Balance, error) {
	if _, err := q.memberOf(ctx, s, groupID); err != nil {
		return nil, err
	}
	return q.store.ListBalancesByGroup(ctx, groupID)
}

// UserBalances lists every edge touching userID across groups and personal scope.
func (q *Queries) UserBalances(ctx context.Context, s Session, userID string) ([]models.Balance, error) {
	if err := self(s, userID, "balances"); err != nil {
		return nil, err
	}
	return q.store.ListBalancesByUser(ctx, userID)
}

// NetBalance returns userID's signed total per currency across every scope.
// Positive means the user is owed money.
func (q *Queries) NetBalance(ctx context.Context, s Session, userID string) (map[string]int64, error) {
	if err := self(s, userID, "net balance"); err != nil {
		return nil, err
	}

	cached := q.cache != nil && !q.stale.has(userID)
	var token string
	if cached {
		net, t, ok := q.cache.Lookup(ctx, userID)
		if ok {
			q.logger.DebugContext(ctx, "Net balance served from cache", "user_id", userID)
			return net, nil
		}
		token = t
	}

	edges, err := q.store.ListBalancesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	net := calculator.NetBalances(userID, edges)

	if cached {
		q.cache.Store(ctx, userID, token, net)
	}
	return net, nil
}

// UserSettlements lists settlements paid or received by userID, newest first.
func (q *Queries) UserSettlements(ctx context.Context, s Session, userID string) ([]*models.Settlement, error) {
	if err := self(s, userID, "settlements"); err != nil {
		return nil, err
	}
	return q.store.ListSettlementsByUser(ctx, userID)
}

// GroupSettlements lists a group's settlements, newest first.
func (q *Queries) GroupSettlements(ctx context.Context, s Session, groupID string) ([]*models.Settlement, error) {
	if _, err := q.memberOf(ctx, s, groupID); err != nil {
		return nil, err
	}
	return q.store.ListSettlementsByGroup(ctx, groupID)
}

// SuggestedSettlements proposes a short list of payments that would clear the group.
func (q *Queries) SuggestedSettlements(ctx context.Context, s Session, groupID string) ([]calculator.DebtEdge, error) {
	edges, err := q.GroupBalances(ctx, s, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.SimplifyDebts(edges), nil
}

// GroupSummary reads a group's edges and settlements concurrently and derives member
// positions and suggested payments from them.
func (q *Queries) GroupSummary(ctx context.Context, s Session, groupID string) (*GroupSummary, error) {
	group, err := q.memberOf(ctx, s, groupID)
	if err != nil {
		return nil, err
	}

	summary := &GroupSummary{Group: group}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary.Balances, err = q.store.ListBalancesByGroup(gctx, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		summary.Settlements, err = q.store.ListSettlementsByGroup(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Members = calculator.MemberBalances(summary.Balances)
	summary.Suggested = calculator.SimplifyDebts(summary.Balances)
	return summary, nil
}

// GetExpense returns an expense the caller may see: one they paid for or take part in,
// or any expense of a group they belong to.
func (q *Queries) GetExpense(ctx context.Context, s Session, expenseID string) (*models.Expense, error) {
	if err := s.require("read", "expense "+expenseID); err != nil {
		return nil, err
	}
	expense, err := q.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.Involves(s.UserID) {
		return expense, nil
	}
	if expense.GroupID != "" {
		if _, err := q.memberOf(ctx, s, expense.GroupID); err == nil {
			return expense, nil
		}
	}
	return nil, apperr.Permission(s.UserID, "read", "expense "+expenseID)
}

// ExpenseSplits returns the computed shares of an expense.
func (q *Queries) ExpenseSplits(ctx context.Context, s Session, expenseID string) ([]models.ExpenseSplit, error) {
	expense, err := q.GetExpense(ctx, s, expenseID)
	if err != nil {
		return nil, err
	}
	return expense.Splits, nil
}

// GroupExpenses lists a group's expenses, newest first.
func (q *Queries) GroupExpenses(ctx context.Context, s Session, groupID string) ([]*models.Expense, error) {
	if _, err := q.memberOf(ctx, s, groupID); err != nil {
		return nil, err
	}
	return q.store.ListExpensesByGroup(ctx, groupID)
}

// PersonalExpenses lists userID's expenses outside any group, newest first.
func (q *Queries) PersonalExpenses(ctx context.Context, s Session, userID string) ([]*models.Expense, error) {
	if err := self(s, userID, "personal expenses"); err != nil {
		return nil, err
	}
	return q.store.ListPersonalExpenses(ctx, userID)
}

func (q *Queries) memberOf(ctx context.Context, s Session, groupID string) (*models.Group, error) {
	if err := s.require("read", "group "+groupID); err != nil {
		return nil, err
	}
	group, err := q.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(s.UserID) {
		return nil, apperr.Permission(s.UserID, "read", "group "+groupID)
	}
	return group, nil
}

func self(s Session, userID, what string) error {
	if err := s.require("read", what); err != nil {
		return err
	}
	if s.UserID != userID {
		return apperr.Permission(s.UserID, "read", what+" of user "+userID)
	}
	return nil
}

// staleUsers are users whose cached net balance could not be invalidated. The nil set
// is empty.
type staleUsers struct {
	mu    sync.Mutex
	users map[string]struct{}
}

func newStaleUsers() *staleUsers {
	return &staleUsers{users: make(map[string]struct{})}
}

func (s *staleUsers) mark(users []string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u] = struct{}{}
	}
}

func (s *staleUsers) clear(users []string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		delete(s.users, u)
	}
}

func (s *staleUsers) has(userID string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}
