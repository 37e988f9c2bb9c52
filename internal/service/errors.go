package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/apperr"
)

// codeOf maps a ledger error to its Connect code.
func codeOf(err error) connect.Code {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		pe *apperr.PermissionError
		xe *apperr.ExcessSettlementError
		ce *connect.Error
	)
	switch {
	case errors.As(err, &ce):
		return ce.Code()
	case errors.As(err, &ve):
		return connect.CodeInvalidArgument
	case errors.As(err, &nf):
		return connect.CodeNotFound
	case errors.As(err, &pe):
		return connect.CodePermissionDenied
	case errors.As(err, &xe):
		return connect.CodeFailedPrecondition
	case apperr.IsConflict(err):
		return connect.CodeAborted
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// fail logs err and converts it for the wire. Internal errors are not echoed to callers.
func (b *base) fail(ctx context.Context, op string, err error) error {
	code := codeOf(err)
	if code == connect.CodeInternal {
		b.logger.ErrorContext(ctx, op+" failed", "error", err)
		return connect.NewError(code, errors.New("internal error"))
	}
	b.logger.WarnContext(ctx, op+" rejected", "code", code, "error", err)
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	return connect.NewError(code, err)
}

// base carries what every service needs.
type base struct {
	logger *slog.Logger
}

func validation(field string, err error) *apperr.ValidationError {
	return &apperr.ValidationError{Field: field, Err: err}
}
