package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "participants", Reason: "duplicate participant", ParticipantID: "7", ExpenseID: "e1"}
	got := err.Error()
	for _, want := range []string{"participants", "duplicate participant", "participant 7", "expense e1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create expense: %w", NotFound("group", "g1"))
	var nf *NotFoundError
	if !errors.As(wrapped, &nf) {
		t.Fatal("expected NotFoundError through wrapping")
	}
	if nf.Kind != "group" || nf.ID != "g1" {
		t.Errorf("got %+v", nf)
	}
}

func TestConflictErrorUnwrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := &ConflictError{Operation: "CreateExpense", Keys: []string{"edge:g:INR:a:b"}, Attempts: 5, Err: cause}

	if !IsConflict(err) {
		t.Error("expected IsConflict to be true")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the underlying cause to be reachable")
	}
	if IsConflict(cause) {
		t.Error("plain error must not be a conflict")
	}
}
