package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// SettlementInput describes a payment from FromUserID to ToUserID.
type SettlementInput struct {
	FromUserID string
	ToUserID   string
	// Amount is in minor units of Currency.
	Amount   int64
	Currency string
	GroupID  string
	Note     string
}

// CreateSettlement records a payment that reduces the debt FromUserID owes ToUserID in
// the given currency and scope. The edge must exist in that direction and hold at least
// Amount; an exact amount removes it. The caller must be one of the two parties.
func (e *Engine) CreateSettlement(ctx context.Context, s Session, in SettlementInput) (*models.Settlement, error) {
	if err := s.require("record", "settlement"); err != nil {
		return nil, err
	}
	currency, err := e.validateSettlement(ctx, s, in)
	if err != nil {
		return nil, err
	}

	key := models.NewEdgeKey(in.FromUserID, in.ToUserID, currency, in.GroupID)
	now := e.clock()
	settlement := &models.Settlement{
		ID:         uuid.New().String(),
		GroupID:    in.GroupID,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Amount:     in.Amount,
		Currency:   currency,
		CreatedAt:  now,
		CreatedBy:  s.UserID,
		Note:       strings.TrimSpace(in.Note),
	}

	touched, err := e.mutate(ctx, opCreateSettlement, func(context.Context) (*plan, error) {
		return &plan{
			locks: []string{key.String()},
			apply: func(ctx context.Context, tx storage.Tx) ([]string, error) {
				if err := settle(ctx, tx, key, settlement, now); err != nil {
					return nil, err
				}
				if err := tx.CreateSettlement(ctx, settlement); err != nil {
					return nil, err
				}
				return []string{key.UserA, key.UserB}, nil
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.SettlementRecorded, s.UserID, now)
	ev.SettlementID = settlement.ID
	ev.GroupID = settlement.GroupID
	ev.Currency = settlement.Currency
	ev.Amount = settlement.Amount
	ev.Users = []string{settlement.FromUserID, settlement.ToUserID}
	e.afterCommit(ctx, ev, touched)
	return settlement, nil
}

// settle reduces the edge under key by the settlement amount.
func settle(ctx context.Context, tx storage.Tx, key models.EdgeKey, st *models.Settlement, now time.Time) error {
	edge, err := tx.GetBalance(ctx, key)
	if err != nil {
		return err
	}
	if edge == nil || edge.FromUserID != st.FromUserID {
		return apperr.NotFound("balance", fmt.Sprintf("%s owes %s %s in %s",
			st.FromUserID, st.ToUserID, st.Currency, key.Scope))
	}
	if st.Amount > edge.Amount {
		return &apperr.ExcessSettlementError{
			FromUserID:  st.FromUserID,
			ToUserID:    st.ToUserID,
			Currency:    st.Currency,
			Scope:       key.Scope,
			Requested:   st.Amount,
			Outstanding: edge.Amount,
		}
	}
	if st.Amount == edge.Amount {
		return tx.DeleteBalance(ctx, key)
	}
	edge.Amount -= st.Amount
	edge.UpdatedAt = now
	return tx.PutBalance(ctx, *edge)
}

func (e *Engine) validateSettlement(ctx context.Context, s Session, in SettlementInput) (string, error) {
	if in.FromUserID == "" {
		return "", apperr.Validation("fromUserId", "is required")
	}
	if in.ToUserID == "" {
		return "", apperr.Validation("toUserId", "is required")
	}
	if in.FromUserID == in.ToUserID {
		return "", apperr.Validation("toUserId", "cannot settle with yourself")
	}
	if in.Amount <= 0 {
		return "", apperr.Validation("amount", "must be positive")
	}
	currency, err := models.NormalizeCurrency(in.Currency)
	if err != nil {
		return "", &apperr.ValidationError{Field: "currency", Err: err}
	}
	if s.UserID != in.FromUserID && s.UserID != in.ToUserID {
		return "", apperr.Permission(s.UserID, "record", "a settlement between other users")
	}
	if in.GroupID != "" {
		if _, err := e.store.GetGroup(ctx, in.GroupID); err != nil {
			return "", err
		}
	}
	return currency, nil
}
