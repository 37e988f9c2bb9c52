// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// Store defines the read side and the transactional write side of the ledger.
// This abstraction allows swapping storage backends (SQLite, in-memory)
// without changing the ledger engine.
//
// Reads always observe the last committed state. Writes happen only inside WithTx.
type Store interface {
	Reader

	// WithTx runs fn inside a single transaction. If fn returns an error nothing it did is
	// visible; otherwise all of its writes become visible together.
	// Backends report write contention by returning an error wrapping
	// apperr.ErrConcurrencyConflict.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Reader exposes committed ledger state.
type Reader interface {
	// GetExpense retrieves an expense with its splits.
	// Returns an apperr.NotFoundError if it does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroup returns a group's expenses, newest expense date first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// ListPersonalExpenses returns the personal-scope expenses userID paid for or takes part in.
	ListPersonalExpenses(ctx context.Context, userID string) ([]*models.Expense, error)

	// ListBalancesByGroup returns every edge in the group's scope.
	ListBalancesByGroup(ctx context.Context, groupID string) ([]models.Balance, error)

	// ListBalancesByUser returns every edge touching userID across all scopes.
	ListBalancesByUser(ctx context.Context, userID string) ([]models.Balance, error)

	// ListSettlementsByUser returns settlements paid or received by userID, newest first.
	ListSettlementsByUser(ctx context.Context, userID string) ([]*models.Settlement, error)

	// ListSettlementsByGroup returns the group's settlements, newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	GroupStore
}

// GroupStore persists the group registry. Groups are not ledger state and are written
// outside ledger transactions.
type GroupStore interface {
	// CreateGroup persists a new group. The group.ID field is populated if empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	// Returns an apperr.NotFoundError if it does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddGroupMembers adds users to a group; already present members are ignored.
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error

	// RemoveGroupMember removes a user from a group.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error

	// ListGroupsByMember returns the groups userID belongs to.
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)
}

// Tx is the write side of a ledger transaction. Balance reads inside a Tx see the
// transaction's own writes.
type Tx interface {
	// GetBalance returns the edge stored under key, or nil when the pair is settled.
	GetBalance(ctx context.Context, key models.EdgeKey) (*models.Balance, error)

	// PutBalance inserts or replaces the edge for balance.Key(). Amount must be positive.
	PutBalance(ctx context.Context, balance models.Balance) error

	// DeleteBalance removes the edge stored under key, if any.
	DeleteBalance(ctx context.Context, key models.EdgeKey) error

	// GetExpense reads an expense and its splits as seen by the transaction.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// CreateExpense persists a new expense and its splits.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense replaces an expense and its splits.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its splits.
	DeleteExpense(ctx context.Context, expenseID string) error

	// CreateSettlement appends a settlement record.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
}
