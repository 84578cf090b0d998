package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidationError reports malformed input (non-positive quantity or price,
// unparseable date, missing required field). Never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing referenced resource (ingredient, import,
// batch, export).
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.Id)
}

// InsufficientStockError reports an allocation shortfall. Requested and
// Available are carried so the caller can present a precise message.
type InsufficientStockError struct {
	IngredientId string
	Requested    decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %s: requested %s, available %s",
		e.IngredientId, e.Requested.String(), e.Available.String())
}

// ConcurrentModificationError reports an optimistic-lock conflict on a batch
// row. The whole export is safe to retry: no partial effect was committed.
type ConcurrentModificationError struct {
	BatchId string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("batch %s was modified concurrently; retry the operation", e.BatchId)
}

// InvariantViolationError reports a defensive check failure, e.g. a computed
// remaining quantity below zero. It indicates a bug upstream and is surfaced
// rather than silently corrected.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Detail
}
