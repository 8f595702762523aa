/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never holds a connection: it asks the Store for one unit of work,
  does its reads and writes through the Tx it is handed, and the Store
  commits or rolls back on every exit path.

KEY INTERFACES:
  Reader: lookups and range queries, safe to run concurrently
  Tx:     Reader plus the write operations, only valid inside WithTx
  Store:  Reader plus WithTx, the single serialized write path

WRITE SERIALIZATION:
  WithTx runs one writer at a time. A checkout's stock re-check and its
  decrements happen inside the same WithTx, so no other writer can change
  stock in between, and readers see either the state before the sale or
  the state after it - never a decremented stock without its sale row.

NOT FOUND:
  Get* methods return (nil, nil) when the row does not exist. The services
  turn that into ErrProductNotFound / ErrCustomerNotFound / ErrSaleNotFound.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite file database
  - ledger/store/memory.go: in-memory, for tests and demos

SEE ALSO:
  - checkout.go: the main WithTx user
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	// InStockOnly keeps products with stock > 0 (what the sale screen offers).
	InStockOnly bool
}

// CustomerFilter narrows ListCustomers.
type CustomerFilter struct {
	// WithDebtOnly keeps customers with debt > 0 (the collection list).
	WithDebtOnly bool
}

// Reader is the read side of the store.
type Reader interface {
	GetProduct(ctx context.Context, id ProductID) (*Product, error)

	// ListProducts returns products ordered by name.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)

	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)

	// ListCustomers returns customers ordered by name.
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error)

	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// SalesInRange returns sales with from <= At < to, oldest first.
	SalesInRange(ctx context.Context, from, to time.Time) ([]Sale, error)

	// SalesByCustomer returns a customer's sales, newest first.
	SalesByCustomer(ctx context.Context, id CustomerID) ([]Sale, error)

	// ExpensesInRange returns expenses with from <= At < to, oldest first.
	ExpensesInRange(ctx context.Context, from, to time.Time) ([]Expense, error)

	// SettlementsInRange returns settlements with from <= At < to, oldest first.
	SettlementsInRange(ctx context.Context, from, to time.Time) ([]Settlement, error)

	// SettlementsByCustomer returns a customer's settlements, newest first.
	SettlementsByCustomer(ctx context.Context, id CustomerID) ([]Settlement, error)
}

// Tx is the view of the store inside a write transaction.
// There are no delete operations: sales, expenses and settlements are
// immutable, products and customers are only adjusted.
type Tx interface {
	Reader

	InsertProduct(ctx context.Context, p Product) error
	UpdateProductStock(ctx context.Context, id ProductID, stock int) error

	InsertCustomer(ctx context.Context, c Customer) error
	UpdateCustomerDebt(ctx context.Context, id CustomerID, debt decimal.Decimal) error

	InsertSale(ctx context.Context, s Sale) error
	InsertExpense(ctx context.Context, e Expense) error
	InsertSettlement(ctx context.Context, s Settlement) error
}

// Store is the ledger's persistence.
type Store interface {
	Reader

	// WithTx executes fn within a serialized write transaction.
	// If fn returns an error (or panics) nothing it wrote is kept.
	// If fn returns nil, everything it wrote is committed together.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
