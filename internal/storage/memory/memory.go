// Package memory provides an in-process implementation of storage.Store.
//
// Transactions buffer their writes in an overlay and publish them in one step at commit.
// Every record carries a version; a commit whose reads were overtaken by another commit
// fails with apperr.ErrConcurrencyConflict and publishes nothing.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps the ledger in maps guarded by a single RWMutex.
type Store struct {
	mu          sync.RWMutex
	expenses    map[string]*models.Expense
	balances    map[models.EdgeKey]models.Balance
	settlements []*models.Settlement
	groups      map[string]*models.Group
	versions    map[string]uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		expenses: make(map[string]*models.Expense),
		balances: make(map[models.EdgeKey]models.Balance),
		groups:   make(map[string]*models.Group),
		versions: make(map[string]uint64),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func expenseRecord(id string) string { return "expense:" + id }

// WithTx runs fn against an overlay and publishes the overlay if fn succeeds and
// nothing fn read has been committed by someone else in the meantime.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		store:    s,
		reads:    make(map[string]uint64),
		balances: make(map[models.EdgeKey]*models.Balance),
		expenses: make(map[string]*models.Expense),
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for record, seen := range t.reads {
		if s.versions[record] != seen {
			return fmt.Errorf("%w: %s changed during transaction", apperr.ErrConcurrencyConflict, record)
		}
	}

	for key, b := range t.balances {
		if b == nil {
			delete(s.balances, key)
		} else {
			s.balances[key] = *b
		}
		s.versions[key.String()]++
	}
	for id, e := range t.expenses {
		if e == nil {
			delete(s.expenses, id)
		} else {
			s.expenses[id] = e
		}
		s.versions[expenseRecord(id)]++
	}
	s.settlements = append(s.settlements, t.settlements...)
	return nil
}

// tx is the overlay of one transaction. A nil map value marks a deletion.
type tx struct {
	store       *Store
	reads       map[string]uint64
	balances    map[models.EdgeKey]*models.Balance
	expenses    map[string]*models.Expense
	settlements []*models.Settlement
}

func (t *tx) GetBalance(_ context.Context, key models.EdgeKey) (*models.Balance, error) {
	if b, ok := t.balances[key]; ok {
		if b == nil {
			return nil, nil
		}
		cp := *b
		return &cp, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if _, seen := t.reads[key.String()]; !seen {
		t.reads[key.String()] = t.store.versions[key.String()]
	}
	b, ok := t.store.balances[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *tx) PutBalance(_ context.Context, b models.Balance) error {
	if b.Amount <= 0 {
		return fmt.Errorf("refusing to store non-positive balance %d for %s", b.Amount, b.Key())
	}
	t.balances[b.Key()] = &b
	return nil
}

func (t *tx) DeleteBalance(_ context.Context, key models.EdgeKey) error {
	t.balances[key] = nil
	return nil
}

func (t *tx) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	if e, ok := t.expenses[expenseID]; ok {
		if e == nil {
			return nil, apperr.NotFound("expense", expenseID)
		}
		return cloneExpense(e), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	record := expenseRecord(expenseID)
	if _, seen := t.reads[record]; !seen {
		t.reads[record] = t.store.versions[record]
	}
	e, ok := t.store.expenses[expenseID]
	if !ok {
		return nil, apperr.NotFound("expense", expenseID)
	}
	return cloneExpense(e), nil
}

func (t *tx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if _, err := t.GetExpense(ctx, expense.ID); err == nil {
		return fmt.Errorf("expense %s already exists", expense.ID)
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = expense.CreatedAt
	}
	for i := range expense.Splits {
		expense.Splits[i].ExpenseID = expense.ID
	}
	t.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

func (t *tx) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if _, err := t.GetExpense(ctx, expense.ID); err != nil {
		return err
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = time.Now().UTC()
	}
	for i := range expense.Splits {
		expense.Splits[i].ExpenseID = expense.ID
	}
	t.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

func (t *tx) DeleteExpense(ctx context.Context, expenseID string) error {
	if _, err := t.GetExpense(ctx, expenseID); err != nil {
		return err
	}
	t.expenses[expenseID] = nil
	return nil
}

func (t *tx) CreateSettlement(_ context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = time.Now().UTC()
	}
	cp := *settlement
	t.settlements = append(t.settlements, &cp)
	return nil
}

func cloneExpense(e *models.Expense) *models.Expense {
	cp := *e
	cp.Splits = slices.Clone(e.Splits)
	return &cp
}
