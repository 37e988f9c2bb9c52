package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = `id, description, category, amount, currency, paid_by, group_id, split_type,
	expense_date, created_by, created_at, updated_at`

// CreateExpense persists a new expense and its splits.
func (t *tx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = expense.CreatedAt
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.Description, string(expense.Category), expense.Amount, expense.Currency,
		expense.PaidBy, nullable(expense.GroupID), string(expense.SplitType),
		toNanos(expense.ExpenseDate), expense.CreatedBy, toNanos(expense.CreatedAt), toNanos(expense.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return insertSplits(ctx, t.q, expense)
}

// UpdateExpense replaces an expense row and all of its splits.
func (t *tx) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = time.Now().UTC()
	}

	result, err := t.q.ExecContext(ctx,
		`UPDATE expenses SET description = ?, category = ?, amount = ?, currency = ?, paid_by = ?,
		   group_id = ?, split_type = ?, expense_date = ?, updated_at = ?
		 WHERE id = ?`,
		expense.Description, string(expense.Category), expense.Amount, expense.Currency, expense.PaidBy,
		nullable(expense.GroupID), string(expense.SplitType), toNanos(expense.ExpenseDate),
		toNanos(expense.UpdatedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("expense", expense.ID)
	}

	if _, err := t.q.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete old splits: %w", err)
	}
	return insertSplits(ctx, t.q, expense)
}

// DeleteExpense removes an expense; its splits go with it via ON DELETE CASCADE.
func (t *tx) DeleteExpense(ctx context.Context, expenseID string) error {
	result, err := t.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("expense", expenseID)
	}
	return nil
}

// GetExpense reads an expense as seen by the transaction.
func (t *tx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, t.q, expenseID)
}

// GetExpense retrieves a committed expense with its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID)
}

// ListExpensesByGroup returns the group's expenses, newest expense date first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	return listExpenses(ctx, s.db,
		`SELECT `+expenseColumns+` FROM expenses WHERE group_id = ?`, groupID)
}

// ListPersonalExpenses returns the personal expenses userID paid for or takes part in.
func (s *SQLiteStore) ListPersonalExpenses(ctx context.Context, userID string) ([]*models.Expense, error) {
	return listExpenses(ctx, s.db,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE group_id IS NULL AND (paid_by = ? OR id IN (SELECT expense_id FROM expense_splits WHERE user_id = ?))`,
		userID, userID)
}

func insertSplits(ctx context.Context, q querier, expense *models.Expense) error {
	for i := range expense.Splits {
		split := &expense.Splits[i]
		split.ExpenseID = expense.ID

		var shares any
		if split.Shares > 0 {
			shares = split.Shares
		}
		_, err := q.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, user_id, amount, percentage, shares) VALUES (?, ?, ?, ?, ?)",
			split.ExpenseID, split.UserID, split.Amount, nullable(split.Percentage), shares,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split for %s: %w", split.UserID, err)
		}
	}
	return nil
}

func getExpense(ctx context.Context, q querier, expenseID string) (*models.Expense, error) {
	row := q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Splits, err = loadSplits(ctx, q, expense.ID); err != nil {
		return nil, err
	}
	return expense, nil
}

func listExpenses(ctx context.Context, q querier, query string, args ...any) ([]*models.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	// Splits are loaded after the expense cursor is closed; the pool may hold a single connection.
	for _, expense := range expenses {
		if expense.Splits, err = loadSplits(ctx, q, expense.ID); err != nil {
			return nil, err
		}
	}
	storage.SortExpenses(expenses)
	return expenses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var groupID sql.NullString
	var category, splitType string
	var expenseDate, createdAt, updatedAt int64

	err := row.Scan(&expense.ID, &expense.Description, &category, &expense.Amount, &expense.Currency,
		&expense.PaidBy, &groupID, &splitType, &expenseDate, &expense.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	expense.GroupID = groupID.String
	expense.Category = models.Category(category)
	expense.SplitType = models.SplitType(splitType)
	expense.ExpenseDate = fromNanos(expenseDate)
	expense.CreatedAt = fromNanos(createdAt)
	expense.UpdatedAt = fromNanos(updatedAt)
	return expense, nil
}

func loadSplits(ctx context.Context, q querier, expenseID string) ([]models.ExpenseSplit, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id, amount, percentage, shares FROM expense_splits WHERE expense_id = ?",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.ExpenseSplit
	for rows.Next() {
		split := models.ExpenseSplit{ExpenseID: expenseID}
		var percentage sql.NullString
		var shares sql.NullInt64
		if err := rows.Scan(&split.UserID, &split.Amount, &percentage, &shares); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Percentage = percentage.String
		split.Shares = shares.Int64
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	storage.SortSplits(splits)
	return splits, nil
}
