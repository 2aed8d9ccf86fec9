package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrCustomerNotFound = errors.WithMessage(ErrNotFound, "customer")
	ErrProductNotFound  = errors.WithMessage(ErrNotFound, "product")
	ErrOrderNotFound    = errors.WithMessage(ErrNotFound, "order")
	ErrDebtNotFound     = errors.WithMessage(ErrNotFound, "debt adjustment")
)

// ValidationError reports bad caller input. Nothing has been written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type EventKind string

const (
	OrderEvent          EventKind = "order"
	DebtAdjustmentEvent EventKind = "debt_adjustment"
)

// PartialWriteError means the event record was written but the customer's
// totalDebt was not adjusted. The only correct recovery is to re-drive the
// increment for EventID; retrying the whole operation would duplicate the event.
//
// Unwrap exposes the step-B cause, so check for this type before matching
// ErrStoreUnavailable or ErrNotFound.
type PartialWriteError struct {
	Kind       EventKind
	EventID    uuid.UUID
	CustomerID uuid.UUID
	Delta      decimal.Decimal
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s %s recorded but totalDebt of customer %s was not adjusted by %s: %v",
		e.Kind, e.EventID, e.CustomerID, e.Delta.String(), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
