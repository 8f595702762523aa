/*
Package ledger provides the transactional sales and credit engine.

PURPOSE:
  This package owns every operation that mutates shared business state:
  product stock, customer debt, and the immutable history of sales,
  expenses, and settlements. Screens, forms, and report formatting live
  outside; they hand validated primitives in and render what comes back.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, never float64
  - Product / Customer: the two mutable records (stock, debt)
  - Sale / Expense / Settlement: immutable records, written exactly once
  - PaymentMethod: closed variant {cash, credit}

DESIGN PRINCIPLES:
  1. Immutability: sales, expenses and settlements are never edited
  2. Precision: decimal arithmetic for every currency amount
  3. Type Safety: distinct ID types so a customer ID can't be passed as a product ID
  4. Single write path: every mutation runs inside Store.WithTx

USAGE:
  engine := ledger.New(store, ledger.Options{})
  cart := &ledger.Cart{}
  _ = cart.AddLine(burger, 3)
  sale, err := engine.Checkout.Finalize(ctx, cart, ledger.PaymentCash, nil)

SEE ALSO:
  - store.go: persistence interfaces
  - checkout.go: the sale commit coordinator
  - report.go: daily cash report
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type CustomerID string
type SaleID string
type ExpenseID string
type SettlementID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

// PaymentMethod is how a sale was paid. A cash sale has no customer; a
// credit sale always does and raises that customer's debt.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCredit
}

// ParsePaymentMethod accepts the canonical names plus the labels the shop
// has always used on its screens ("Contado", "Crédito (Fiado)").
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "contado":
		return PaymentCash, nil
	case "credit", "fiado", "crédito", "credito", "crédito (fiado)", "credito (fiado)":
		return PaymentCredit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// =============================================================================
// RECORDS
// =============================================================================

// Product is a sellable item. Only stock changes after creation.
type Product struct {
	ID        ProductID
	Name      string
	Cost      decimal.Decimal // unit acquisition price
	Price     decimal.Decimal // unit sale price
	Stock     int
	CreatedAt time.Time
}

// Customer is someone allowed to buy on credit ("fiado").
// Debt is only changed by the Credit ledger and never goes negative.
type Customer struct {
	ID        CustomerID
	Name      string
	Company   string
	Debt      decimal.Decimal
	CreatedAt time.Time
}

// Sale is one finalized transaction.
type Sale struct {
	ID         SaleID
	At         time.Time
	CustomerID *CustomerID // nil for cash sales
	Total      decimal.Decimal
	// Cost is the acquisition cost of the goods sold, captured at commit.
	// Nil when the sale was recorded without cost data.
	Cost   *decimal.Decimal
	Method PaymentMethod
	// Detail is a human-readable itemization ("3x Burger, 1x Fries").
	// It is derived history, never parsed back.
	Detail string
}

// IsCredit reports whether the sale raised a customer's debt.
func (s Sale) IsCredit() bool { return s.Method == PaymentCredit }

type Expense struct {
	ID          ExpenseID
	At          time.Time
	Description string
	Amount      decimal.Decimal
}

// Settlement is a payment ("abono") a customer made against their debt.
type Settlement struct {
	ID         SettlementID
	At         time.Time
	CustomerID CustomerID
	Amount     decimal.Decimal
}

// =============================================================================
// INPUTS
// =============================================================================

// NewProduct is the data needed to register a product.
type NewProduct struct {
	Name         string
	Cost         decimal.Decimal
	Price        decimal.Decimal
	InitialStock int
}

func (p NewProduct) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if p.Cost.IsNegative() || p.Price.IsNegative() {
		return fmt.Errorf("%w: cost and price must not be negative", ErrInvalidAmount)
	}
	if p.InitialStock < 0 {
		return fmt.Errorf("%w: initial stock must not be negative", ErrInvalidQuantity)
	}
	return nil
}

// MustParseMoney parses a decimal literal and panics on failure.
// Intended for constants and tests.
func MustParseMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
