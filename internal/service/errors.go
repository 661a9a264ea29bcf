package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"inventory-ledger/internal/store"
)

var (
	// ErrNotFound covers unknown ids as well as objects owned by another principal
	ErrNotFound = store.ErrNotFound

	// ErrEmptyCart is returned when committing a cart without line items
	ErrEmptyCart = errors.New("cart has no line items")

	// ErrConflict means a concurrent operation changed the record first; the
	// caller may re-read and resubmit
	ErrConflict = errors.New("record modified concurrently")
)

// ValidationError reports malformed input, keyed by field
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for field := range e.Violations {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Violations[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InsufficientStockError aborts a commit when one product cannot cover the
// quantity requested across the whole cart
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested=%d, available=%d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

// OverReturnError is returned when a return exceeds what is left on a sale line
type OverReturnError struct {
	SaleItemID int64
	Requested  int
	Remaining  int
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("cannot return %d of sale item %d: only %d remaining",
		e.Requested, e.SaleItemID, e.Remaining)
}

// failureReason maps an error to a low-cardinality metric label
func failureReason(err error) string {
	var validationErr *ValidationError
	var stockErr *InsufficientStockError
	var overReturnErr *OverReturnError

	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &overReturnErr):
		return "over_return"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "storage"
	}
}
