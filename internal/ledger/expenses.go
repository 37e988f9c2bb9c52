package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// ExpenseInput describes an expense to create or the new state of one to update.
type ExpenseInput struct {
	Description string
	Category    models.Category
	// Amount is in minor units of Currency.
	Amount    int64
	Currency  string
	PaidBy    string
	GroupID   string
	SplitType models.SplitType
	// Participants may be empty for an EQUAL group expense, meaning every current member.
	Participants []models.Participant
	// ExpenseDate defaults to the creation time.
	ExpenseDate time.Time
}

// CreateExpense validates in, computes its splits and applies its ledger effect atomically.
func (e *Engine) CreateExpense(ctx context.Context, s Session, in ExpenseInput) (*models.Expense, error) {
	if err := s.require("create", "expense"); err != nil {
		return nil, err
	}

	expense, err := e.buildExpense(ctx, s, in)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	expense.ID = uuid.New().String()
	expense.CreatedBy = s.UserID
	expense.CreatedAt = now
	expense.UpdatedAt = now
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = now
	}
	book := ExpenseDeltas(expense)

	touched, err := e.mutate(ctx, opCreateExpense, func(context.Context) (*plan, error) {
		return &plan{
			locks: book.LockNames(),
			apply: func(ctx context.Context, tx storage.Tx) ([]string, error) {
				if err := tx.CreateExpense(ctx, expense); err != nil {
					return nil, err
				}
				return book.Apply(ctx, tx, now)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, expenseEvent(events.ExpenseCreated, s, expense, now), touched)
	return expense, nil
}

// UpdateExpense replaces an expense. Its previous ledger effect is reversed and the new
// one applied in the same transaction. Only the payer may update an expense.
func (e *Engine) UpdateExpense(ctx context.Context, s Session, expenseID string, in ExpenseInput) (*models.Expense, error) {
	if err := s.require("update", "expense "+expenseID); err != nil {
		return nil, err
	}

	var updated *models.Expense
	var now time.Time
	touched, err := e.mutate(ctx, opUpdateExpense, func(ctx context.Context) (*plan, error) {
		old, err := e.store.GetExpense(ctx, expenseID)
		if err != nil {
			return nil, err
		}
		if old.PaidBy != s.UserID {
			return nil, apperr.Permission(s.UserID, "update", "expense "+expenseID)
		}

		next, err := e.buildExpense(ctx, s, in)
		if err != nil {
			var ve *apperr.ValidationError
			if errors.As(err, &ve) {
				ve.ExpenseID = expenseID
			}
			return nil, err
		}
		now = e.clock()
		if !now.After(old.UpdatedAt) {
			now = old.UpdatedAt.Add(time.Nanosecond)
		}
		next.ID = old.ID
		next.CreatedBy = old.CreatedBy
		next.CreatedAt = old.CreatedAt
		next.UpdatedAt = now
		if next.ExpenseDate.IsZero() {
			next.ExpenseDate = old.ExpenseDate
		}

		book := make(Book)
		book.Merge(ExpenseDeltas(old), -1)
		book.Merge(ExpenseDeltas(next), 1)

		return &plan{
			locks: book.LockNames(),
			apply: func(ctx context.Context, tx storage.Tx) ([]string, error) {
				if err := checkUnchanged(ctx, tx, old); err != nil {
					return nil, err
				}
				if err := tx.UpdateExpense(ctx, next); err != nil {
					return nil, err
				}
				updated = next
				return book.Apply(ctx, tx, now)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, expenseEvent(events.ExpenseUpdated, s, updated, now), touched)
	return updated, nil
}

// DeleteExpense removes an expense and reverses its ledger effect exactly.
// The payer and, for group expenses, the group admin may delete.
func (e *Engine) DeleteExpense(ctx context.Context, s Session, expenseID string) error {
	if err := s.require("delete", "expense "+expenseID); err != nil {
		return err
	}

	var deleted *models.Expense
	var now time.Time
	touched, err := e.mutate(ctx, opDeleteExpense, func(ctx context.Context) (*plan, error) {
		old, err := e.store.GetExpense(ctx, expenseID)
		if err != nil {
			return nil, err
		}
		if err := e.canDelete(ctx, s, old); err != nil {
			return nil, err
		}

		now = e.clock()
		book := make(Book)
		book.Merge(ExpenseDeltas(old), -1)

		return &plan{
			locks: book.LockNames(),
			apply: func(ctx context.Context, tx storage.Tx) ([]string, error) {
				if err := checkUnchanged(ctx, tx, old); err != nil {
					return nil, err
				}
				if err := tx.DeleteExpense(ctx, old.ID); err != nil {
					return nil, err
				}
				deleted = old
				return book.Apply(ctx, tx, now)
			},
		}, nil
	})
	if err != nil {
		return err
	}

	e.afterCommit(ctx, expenseEvent(events.ExpenseDeleted, s, deleted, now), touched)
	return nil
}

func (e *Engine) canDelete(ctx context.Context, s Session, expense *models.Expense) error {
	if expense.PaidBy == s.UserID {
		return nil
	}
	if expense.GroupID != "" {
		group, err := e.store.GetGroup(ctx, expense.GroupID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if group != nil && group.IsAdmin(s.UserID) {
			return nil
		}
	}
	return apperr.Permission(s.UserID, "delete", "expense "+expense.ID)
}

// checkUnchanged fails with a concurrency conflict if the expense was modified after
// old was read, which means the deltas computed from old are stale.
func checkUnchanged(ctx context.Context, tx storage.Tx, old *models.Expense) error {
	current, err := tx.GetExpense(ctx, old.ID)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: expense %s was deleted concurrently", apperr.ErrConcurrencyConflict, old.ID)
		}
		return err
	}
	if !current.UpdatedAt.Equal(old.UpdatedAt) {
		return fmt.Errorf("%w: expense %s was modified concurrently", apperr.ErrConcurrencyConflict, old.ID)
	}
	return nil
}

// buildExpense validates in against the caller and the group, then computes the splits.
// The returned expense has no identity or timestamps yet.
func (e *Engine) buildExpense(ctx context.Context, s Session, in ExpenseInput) (*models.Expense, error) {
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount", "must be positive")
	}
	currency, err := models.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "currency", Err: err}
	}
	category, err := models.ParseCategory(string(in.Category))
	if err != nil {
		return nil, &apperr.ValidationError{Field: "category", Err: err}
	}
	if in.PaidBy == "" {
		return nil, apperr.Validation("paidBy", "is required")
	}
	if in.SplitType == "" {
		return nil, apperr.Validation("splitType", "is required")
	}

	participants := in.Participants
	if in.GroupID != "" {
		group, err := e.store.GetGroup(ctx, in.GroupID)
		if err != nil {
			return nil, err
		}
		if !group.HasMember(s.UserID) {
			return nil, apperr.Permission(s.UserID, "add expenses to", "group "+group.ID)
		}
		if !group.HasMember(in.PaidBy) {
			return nil, &apperr.ValidationError{Field: "paidBy", Reason: "payer is not a member of the group", ParticipantID: in.PaidBy}
		}
		if in.SplitType == models.SplitEqual && len(participants) == 0 {
			for _, member := range group.Members {
				participants = append(participants, models.Participant{UserID: member})
			}
		}
		for _, p := range participants {
			if !group.HasMember(p.UserID) {
				return nil, &apperr.ValidationError{Field: "participants", Reason: "not a member of the group", ParticipantID: p.UserID}
			}
		}
	} else if !involves(s.UserID, in.PaidBy, participants) {
		return nil, apperr.Permission(s.UserID, "record", "a personal expense it is not part of")
	}

	splits, err := calculator.CalculateSplit(in.Amount, in.SplitType, participants)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = generateDescription(splits)
	}

	return &models.Expense{
		Description: description,
		Category:    category,
		Amount:      in.Amount,
		Currency:    currency,
		PaidBy:      in.PaidBy,
		GroupID:     in.GroupID,
		SplitType:   in.SplitType,
		Splits:      splits,
		ExpenseDate: in.ExpenseDate.UTC(),
	}, nil
}

func involves(userID, payer string, participants []models.Participant) bool {
	if userID == payer {
		return true
	}
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// generateDescription names an expense after its participants.
func generateDescription(splits []models.ExpenseSplit) string {
	names := make([]string, len(splits))
	for i, s := range splits {
		names[i] = s.UserID
	}
	if len(names) <= 3 {
		return fmt.Sprintf("Split with %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("Split with %s and %d others",
		strings.Join(names[:2], ", "),
		len(names)-2,
	)
}

func expenseEvent(t events.Type, s Session, expense *models.Expense, at time.Time) events.Event {
	ev := events.New(t, s.UserID, at)
	ev.ExpenseID = expense.ID
	ev.GroupID = expense.GroupID
	ev.Currency = expense.Currency
	ev.Amount = expense.Amount
	ev.Users = []string{expense.PaidBy}
	for _, split := range expense.Splits {
		if split.UserID != expense.PaidBy {
			ev.Users = append(ev.Users, split.UserID)
		}
	}
	return ev
}

func isNotFound(err error) bool {
	var nf *apperr.NotFoundError
	return errors.As(err, &nf)
}
