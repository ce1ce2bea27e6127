package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrNotFound  = errors.New("order not found")

	// ErrTransactionAborted wraps a commit that could not go through; nothing
	// from the attempt is visible outside the transaction.
	ErrTransactionAborted = errors.New("order transaction aborted")
)

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// ProductNotFoundError: a cart line references a product with no stock entry.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InsufficientStockError aborts the whole order; no partial orders.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
