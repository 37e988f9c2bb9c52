package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const balanceColumns = `from_user_id, to_user_id, group_id, currency, amount, updated_at`

// GetBalance returns the edge stored under key, or nil if the pair is settled.
func (t *tx) GetBalance(ctx context.Context, key models.EdgeKey) (*models.Balance, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM balances
		 WHERE scope = ? AND currency = ? AND user_a = ? AND user_b = ?`,
		key.Scope, key.Currency, key.UserA, key.UserB,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance %s: %w", key, err)
	}
	balances, err := scanBalances(rows)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, nil
	}
	return &balances[0], nil
}

// PutBalance inserts or replaces the single edge stored for the balance's pair.
func (t *tx) PutBalance(ctx context.Context, b models.Balance) error {
	if b.Amount <= 0 {
		return fmt.Errorf("refusing to store non-positive balance %d for %s", b.Amount, b.Key())
	}
	key := b.Key()
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO balances (scope, currency, user_a, user_b, from_user_id, to_user_id, group_id, amount, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope, currency, user_a, user_b) DO UPDATE SET
		   from_user_id = excluded.from_user_id,
		   to_user_id = excluded.to_user_id,
		   amount = excluded.amount,
		   updated_at = excluded.updated_at`,
		key.Scope, key.Currency, key.UserA, key.UserB,
		b.FromUserID, b.ToUserID, nullable(b.GroupID), b.Amount, toNanos(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put balance %s: %w", key, err)
	}
	return nil
}

// DeleteBalance removes the edge stored under key, if any.
func (t *tx) DeleteBalance(ctx context.Context, key models.EdgeKey) error {
	_, err := t.q.ExecContext(ctx,
		`DELETE FROM balances WHERE scope = ? AND currency = ? AND user_a = ? AND user_b = ?`,
		key.Scope, key.Currency, key.UserA, key.UserB,
	)
	if err != nil {
		return fmt.Errorf("failed to delete balance %s: %w", key, err)
	}
	return nil
}

// ListBalancesByGroup returns every edge in the group's scope.
func (s *SQLiteStore) ListBalancesByGroup(ctx context.Context, groupID string) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE scope = ?`,
		models.ScopeOf(groupID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances by group: %w", err)
	}
	balances, err := scanBalances(rows)
	if err != nil {
		return nil, err
	}
	storage.SortBalances(balances)
	return balances, nil
}

// ListBalancesByUser returns every edge touching userID across all scopes.
func (s *SQLiteStore) ListBalancesByUser(ctx context.Context, userID string) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_a = ? OR user_b = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances by user: %w", err)
	}
	balances, err := scanBalances(rows)
	if err != nil {
		return nil, err
	}
	storage.SortBalances(balances)
	return balances, nil
}

func scanBalances(rows *sql.Rows) ([]models.Balance, error) {
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		var b models.Balance
		var groupID sql.NullString
		var updatedAt int64
		if err := rows.Scan(&b.FromUserID, &b.ToUserID, &groupID, &b.Currency, &b.Amount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.GroupID = groupID.String
		b.UpdatedAt = fromNanos(updatedAt)
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}
