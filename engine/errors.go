/*
errors.go - Centralized error types for the reconciliation engine

ERROR CATEGORIES:
  1. Not found - an update/delete keyed by id names a missing record
  2. Missing product during reconciliation - skipped, reported to Observer
  3. Validation - malformed orders or transactions from the caller
  4. Store errors - passed through from the Repository unmodified

The engine never retries and never compensates steps already applied when
it runs against a Repository without WithTx support.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadyExists is returned when inserting a record whose id is taken.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidTransaction is returned for an unknown type or a negative amount.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidOrder is returned for lines with negative quantities.
	ErrInvalidOrder = errors.New("invalid order")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// MissingProductError is returned by StockLedger.ApplyDelta when the product
// does not exist. Batch application skips it and reports an event instead.
type MissingProductError struct {
	ProductID string
	Delta     int
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %q not found while applying stock delta %d", e.ProductID, e.Delta)
}

func (e *MissingProductError) Unwrap() error {
	return ErrProductNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrAlreadyExists)
}
