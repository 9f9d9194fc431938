package quotations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrSessionNotFound        = errors.New("editing session not found")
	ErrQuotationNotFound      = errors.New("quotation not found")
	ErrItemNotFound           = errors.New("line item not found")
	ErrReadOnly               = errors.New("quotation is approved and read-only")
	ErrNothingToUndo          = errors.New("nothing to undo")
	ErrNotAmbiguous           = errors.New("line item does not require a selection")
	ErrInvalidOption          = errors.New("option index out of range")
	ErrGlobalDiscountDisabled = errors.New("global discount is disabled while line discounts are set")
	ErrUnmatchedItems         = errors.New("quotation has line items without a match")
	ErrSelectionRequired      = errors.New("quotation has line items awaiting a selection")
	ErrOperationInFlight      = errors.New("another save or finalize is in progress")
	ErrRemote                 = errors.New("quotation service request failed")
	ErrDuplicateRequest       = errors.New("request with this idempotency key was already processed")
	ErrStaleSession           = errors.New("editing session changed concurrently")
)

// CommitError wraps a failed call to the quotation service. It matches both
// ErrRemote and the underlying transport error.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrRemote, e.Err}
}

// ValidationError lists the fields of an input that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = validator.New()

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		out.Fields[fieldErr.Field()] = fieldErr.Tag()
	}
	return out
}

func validateRate(field string, rate float64) error {
	if rate < 0 || rate > 100 {
		return &ValidationError{Fields: map[string]string{field: "must be between 0 and 100"}}
	}
	return nil
}
