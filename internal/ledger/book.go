package ledger

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Book accumulates signed deltas per balance edge key. A positive delta means the key's
// UserA owes UserB more; a negative one means UserB owes UserA more. Keys with a zero
// delta are kept so that everything an operation looked at is still locked.
type Book map[models.EdgeKey]int64

// Owe records that debtor owes creditor amount more, in currency and scope.
func (b Book) Owe(debtor, creditor, currency, groupID string, amount int64) {
	if debtor == creditor {
		return
	}
	key := models.NewEdgeKey(debtor, creditor, currency, groupID)
	if key.UserA == debtor {
		b[key] += amount
	} else {
		b[key] -= amount
	}
}

// Merge adds other scaled by sign (+1 to apply, -1 to reverse).
func (b Book) Merge(other Book, sign int64) {
	for k, v := range other {
		b[k] += sign * v
	}
}

// ExpenseDeltas returns the ledger effect of an expense: every participant other than
// the payer owes the payer their share.
func ExpenseDeltas(e *models.Expense) Book {
	b := make(Book, len(e.Splits))
	for _, s := range e.Splits {
		b.Owe(s.UserID, e.PaidBy, e.Currency, e.GroupID, s.Amount)
	}
	return b
}

// Keys returns the keys in lock order.
func (b Book) Keys() []models.EdgeKey {
	keys := make([]models.EdgeKey, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y models.EdgeKey) int {
		return cmp.Compare(x.String(), y.String())
	})
	return keys
}

// LockNames returns the lock name of every key.
func (b Book) LockNames() []string {
	keys := b.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}

// Apply nets every non-zero delta into the stored edge for its key: the edge is replaced,
// flipped or deleted so at most one positive edge remains. It returns the users whose
// balances changed.
func (b Book) Apply(ctx context.Context, tx storage.Tx, now time.Time) ([]string, error) {
	var touched []string
	for _, key := range b.Keys() {
		delta := b[key]
		if delta == 0 {
			continue
		}

		current, err := tx.GetBalance(ctx, key)
		if err != nil {
			return nil, err
		}
		var signed int64
		if current != nil {
			signed = current.Signed()
		}
		if (delta > 0 && signed > math.MaxInt64-delta) || (delta < 0 && signed < math.MinInt64-delta) {
			return nil, fmt.Errorf("balance %s overflows", key)
		}
		signed += delta

		switch {
		case signed == 0:
			err = tx.DeleteBalance(ctx, key)
		case signed > 0:
			err = tx.PutBalance(ctx, models.Balance{
				FromUserID: key.UserA, ToUserID: key.UserB, GroupID: key.GroupID(),
				Currency: key.Currency, Amount: signed, UpdatedAt: now,
			})
		default:
			err = tx.PutBalance(ctx, models.Balance{
				FromUserID: key.UserB, ToUserID: key.UserA, GroupID: key.GroupID(),
				Currency: key.Currency, Amount: -signed, UpdatedAt: now,
			})
		}
		if err != nil {
			return nil, err
		}
		touched = append(touched, key.UserA, key.UserB)
	}

	slices.Sort(touched)
	return slices.Compact(touched), nil
}
