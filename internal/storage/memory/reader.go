package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func (s *Store) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, apperr.NotFound("expense", expenseID)
	}
	return cloneExpense(e), nil
}

func (s *Store) ListExpensesByGroup(_ context.Context, groupID string) ([]*models.Expense, error) {
	return s.filterExpenses(func(e *models.Expense) bool {
		return e.GroupID == groupID
	}), nil
}

func (s *Store) ListPersonalExpenses(_ context.Context, userID string) ([]*models.Expense, error) {
	return s.filterExpenses(func(e *models.Expense) bool {
		return e.GroupID == "" && e.Involves(userID)
	}), nil
}

func (s *Store) filterExpenses(keep func(*models.Expense) bool) []*models.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Expense
	for _, e := range s.expenses {
		if keep(e) {
			out = append(out, cloneExpense(e))
		}
	}
	storage.SortExpenses(out)
	return out
}

func (s *Store) ListBalancesByGroup(_ context.Context, groupID string) ([]models.Balance, error) {
	scope := models.ScopeOf(groupID)
	return s.filterBalances(func(k models.EdgeKey) bool { return k.Scope == scope }), nil
}

func (s *Store) ListBalancesByUser(_ context.Context, userID string) ([]models.Balance, error) {
	return s.filterBalances(func(k models.EdgeKey) bool {
		return k.UserA == userID || k.UserB == userID
	}), nil
}

func (s *Store) filterBalances(keep func(models.EdgeKey) bool) []models.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Balance
	for k, b := range s.balances {
		if keep(k) {
			out = append(out, b)
		}
	}
	storage.SortBalances(out)
	return out
}

func (s *Store) ListSettlementsByUser(_ context.Context, userID string) ([]*models.Settlement, error) {
	return s.filterSettlements(func(st *models.Settlement) bool {
		return st.FromUserID == userID || st.ToUserID == userID
	}), nil
}

func (s *Store) ListSettlementsByGroup(_ context.Context, groupID string) ([]*models.Settlement, error) {
	return s.filterSettlements(func(st *models.Settlement) bool {
		return st.GroupID != "" && st.GroupID == groupID
	}), nil
}

func (s *Store) filterSettlements(keep func(*models.Settlement) bool) []*models.Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Settlement
	for _, st := range s.settlements {
		if keep(st) {
			cp := *st
			out = append(out, &cp)
		}
	}
	storage.SortSettlements(out)
	return out
}

func (s *Store) CreateGroup(_ context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *group
	cp.Members = nil
	for _, m := range group.Members {
		if !slices.Contains(cp.Members, m) {
			cp.Members = append(cp.Members, m)
		}
	}
	slices.SortFunc(cp.Members, models.CompareUserIDs)
	s.groups[cp.ID] = &cp
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, apperr.NotFound("group", groupID)
	}
	return cloneGroup(g), nil
}

func (s *Store) AddGroupMembers(_ context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return apperr.NotFound("group", groupID)
	}
	members := slices.Clone(g.Members)
	for _, id := range userIDs {
		if !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	slices.SortFunc(members, models.CompareUserIDs)
	g.Members = members
	return nil
}

func (s *Store) RemoveGroupMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return apperr.NotFound("group", groupID)
	}
	i := slices.Index(g.Members, userID)
	if i < 0 {
		return apperr.NotFound("group member", groupID+"/"+userID)
	}
	g.Members = slices.Delete(slices.Clone(g.Members), i, i+1)
	return nil
}

func (s *Store) ListGroupsByMember(_ context.Context, userID string) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Group
	for _, g := range s.groups {
		if g.HasMember(userID) {
			out = append(out, cloneGroup(g))
		}
	}
	slices.SortFunc(out, func(a, b *models.Group) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func cloneGroup(g *models.Group) *models.Group {
	cp := *g
	cp.Members = slices.Clone(g.Members)
	return &cp
}
