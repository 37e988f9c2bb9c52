package models

import "time"

// Settlement is an append-only record of a payment that reduced a balance edge.
// Settlements are never mutated or deleted.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group scope; empty for personal settlements.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	// Amount is the payment amount in minor units of Currency.
	Amount int64

	// Currency is an upper-case ISO 4217 code.
	Currency string

	// CreatedAt is when the settlement was recorded.
	CreatedAt time.Time

	// CreatedBy is the user ID who recorded this settlement.
	CreatedBy string

	// Note is an optional description for the settlement.
	Note string
}
