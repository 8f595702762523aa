/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  Every business-rule rejection the engine can raise, in one place.
  None of them is fatal: each one means "nothing was written, try again
  with different input".

ERROR CATEGORIES:
  1. Not found - a referenced product, customer or sale does not exist
  2. Stock - a requested quantity exceeds what is on hand
  3. Amount - non-positive amounts, settlements above the current debt
  4. Checkout - empty cart, credit sale without a customer, bad method

USAGE:
  Callers branch with errors.Is / errors.As:

    var stockErr *ledger.InsufficientStockError
    if errors.As(err, &stockErr) {
        fmt.Printf("only %d left of %s\n", stockErr.Available, stockErr.ProductName)
    }

SEE ALSO:
  - api/handlers.go: maps these errors to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrSaleNotFound     = errors.New("sale not found")

	// ErrInsufficientStock is returned when a quantity exceeds current stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidAmount covers non-positive amounts and settlements above the debt.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("invalid quantity")

	ErrEmptyCart = errors.New("cart is empty")

	// ErrMissingCustomer is returned when a credit sale has no customer.
	ErrMissingCustomer = errors.New("credit sale requires a customer")

	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidInput is returned for missing names and descriptions.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientTender is returned by the change calculator when the
	// customer hands over less than the total.
	ErrInsufficientTender = errors.New("tendered amount below total")

	ErrInvalidLine = errors.New("cart line does not exist")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError names the product that ran short.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): available %d, requested %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// SettlementExceedsDebtError is returned when a payment is larger than what
// the customer owes right now.
type SettlementExceedsDebtError struct {
	CustomerID CustomerID
	Debt       decimal.Decimal
	Requested  decimal.Decimal
}

func (e *SettlementExceedsDebtError) Error() string {
	return fmt.Sprintf("settlement of %s exceeds debt of %s for customer %s",
		e.Requested.StringFixed(2), e.Debt.StringFixed(2), e.CustomerID)
}

func (e *SettlementExceedsDebtError) Unwrap() error {
	return ErrInvalidAmount
}

type InsufficientTenderError struct {
	Total     decimal.Decimal
	Tendered  decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientTenderError) Error() string {
	return fmt.Sprintf("tendered %s for a total of %s, short by %s",
		e.Tendered.StringFixed(2), e.Total.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *InsufficientTenderError) Unwrap() error {
	return ErrInsufficientTender
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrSaleNotFound)
}

// IsClientError returns true if the error is a business-rule rejection
// caused by the caller's input rather than a storage failure.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrMissingCustomer) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientTender) ||
		errors.Is(err, ErrInvalidLine)
}
