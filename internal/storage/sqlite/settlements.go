package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const settlementColumns = `id, group_id, from_user_id, to_user_id, amount, currency, created_at, created_by, note`

// CreateSettlement appends a settlement record.
func (t *tx) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = time.Now().UTC()
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, nullable(settlement.GroupID), settlement.FromUserID, settlement.ToUserID,
		settlement.Amount, settlement.Currency, toNanos(settlement.CreatedAt), settlement.CreatedBy,
		nullable(settlement.Note),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE group_id = ?`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	return scanSettlements(rows)
}

// ListSettlementsByUser retrieves all settlements paid or received by userID, newest first.
func (s *SQLiteStore) ListSettlementsByUser(ctx context.Context, userID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE from_user_id = ? OR to_user_id = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by user: %w", err)
	}
	return scanSettlements(rows)
}

func scanSettlements(rows *sql.Rows) ([]*models.Settlement, error) {
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		var groupID, note sql.NullString
		var createdAt int64

		if err := rows.Scan(&settlement.ID, &groupID, &settlement.FromUserID, &settlement.ToUserID,
			&settlement.Amount, &settlement.Currency, &createdAt, &settlement.CreatedBy, &note); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlement.GroupID = groupID.String
		settlement.Note = note.String
		settlement.CreatedAt = fromNanos(createdAt)

		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	storage.SortSettlements(settlements)
	return settlements, nil
}
