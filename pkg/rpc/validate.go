package rpc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidationFailed wraps every request validation failure.
var ErrValidationFailed = errors.New("validation failed")

// FieldError names the request field that failed a validation rule.
type FieldError struct {
	// Field is the JSON path of the field, e.g. "participants[1].userId".
	Field string
	Rule  string
	Param string
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s: '%s' failed '%s'", ErrValidationFailed, e.Field, e.Rule)
	if e.Param != "" {
		msg += " (" + e.Param + ")"
	}
	return msg
}

func (e *FieldError) Unwrap() error { return ErrValidationFailed }

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("failed to register 'positive_decimal': %w", err)
	}
	if err := v.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("failed to register 'nonnegative_decimal': %w", err)
	}
	return v, nil
}

// Validate checks msg against its validate tags and reports the first failing field.
func Validate(msg any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, errValidate)
	}

	if err := validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			_, field, _ := strings.Cut(fe.Namespace(), ".")
			return &FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()}
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

// NewValidationInterceptor rejects requests whose message fails Validate with
// CodeInvalidArgument before they reach the handler.
func NewValidationInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}
			if err := Validate(req.Any()); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			return next(ctx, req)
		}
	}
}
