// Package apperr defines the error taxonomy shared by the ledger engine and its
// transports. Every mutating failure leaves the ledger unchanged.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConcurrencyConflict reports transient contention on a balance edge key.
var ErrConcurrencyConflict = errors.New("concurrent modification of balance edge")

// ValidationError reports malformed input rejected before any ledger mutation.
type ValidationError struct {
	// Field is the offending input field (e.g., "participants[2].percentage").
	Field string
	// ParticipantID is set when a single participant caused the failure.
	ParticipantID string
	// ExpenseID is set when validating an update.
	ExpenseID string
	Reason    string
	Err       error
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.ParticipantID != "" {
		fmt.Fprintf(&b, " (participant %s)", e.ParticipantID)
	}
	if e.ExpenseID != "" {
		fmt.Fprintf(&b, " (expense %s)", e.ExpenseID)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing expense, group, user or balance edge.
type NotFoundError struct {
	Kind string
	ID   string
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// PermissionError reports a mutation or read by a user lacking the required relationship.
type PermissionError struct {
	UserID   string
	Action   string
	Resource string
}

// Permission builds a PermissionError.
func Permission(userID, action, resource string) *PermissionError {
	return &PermissionError{UserID: userID, Action: action, Resource: resource}
}

func (e *PermissionError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("authentication required to %s %s", e.Action, e.Resource)
	}
	return fmt.Sprintf("user %s may not %s %s", e.UserID, e.Action, e.Resource)
}

// ExcessSettlementError reports a settlement larger than the outstanding debt.
// Amounts are in minor units of Currency.
type ExcessSettlementError struct {
	FromUserID  string
	ToUserID    string
	Currency    string
	Scope       string
	Requested   int64
	Outstanding int64
}

func (e *ExcessSettlementError) Error() string {
	return fmt.Sprintf("settlement of %d exceeds outstanding debt %d owed by %s to %s (%s, scope %s)",
		e.Requested, e.Outstanding, e.FromUserID, e.ToUserID, e.Currency, e.Scope)
}

// ConflictError is returned once retries on a contended edge key are exhausted.
type ConflictError struct {
	Operation string
	Keys      []string
	Attempts  int
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts on %s: %v",
		e.Operation, e.Attempts, strings.Join(e.Keys, ","), e.Err)
}

// Unwrap exposes both the sentinel and the last underlying cause.
func (e *ConflictError) Unwrap() []error {
	return []error{ErrConcurrencyConflict, e.Err}
}

// IsConflict reports whether err is transient edge contention.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
