// Package events publishes ledger changes to other systems after they commit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a ledger change. It doubles as the AMQP routing key.
type Type string

const (
	ExpenseCreated     Type = "expense.created"
	ExpenseUpdated     Type = "expense.updated"
	ExpenseDeleted     Type = "expense.deleted"
	SettlementRecorded Type = "settlement.recorded"
)

// Event describes one committed ledger mutation.
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	OccurredAt   time.Time `json:"occurredAt"`
	ActorID      string    `json:"actorId"`
	ExpenseID    string    `json:"expenseId,omitempty"`
	SettlementID string    `json:"settlementId,omitempty"`
	GroupID      string    `json:"groupId,omitempty"`
	Currency     string    `json:"currency"`
	// Amount is in minor units of Currency.
	Amount int64 `json:"amount"`
	// Users lists everyone whose balances the mutation touched.
	Users []string `json:"users"`
}

// New stamps an event with a fresh ID.
func New(t Type, actorID string, at time.Time) Event {
	return Event{ID: uuid.New().String(), Type: t, ActorID: actorID, OccurredAt: at}
}

// ToJSON encodes the event body.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Publish is called after commit, so a failure cannot undo
// the mutation; callers log it and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
