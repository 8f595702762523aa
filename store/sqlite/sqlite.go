/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists products, customers, sales, expenses and settlements in a
  single local database file.

KEY TABLES:
  products:    stock on hand (CHECK stock >= 0)
  customers:   running debt
  sales:       immutable; credit sales must reference a customer
  expenses:    immutable
  settlements: immutable payments against debt

INDEXES:
  - idx_sales_sold_at / idx_expenses_spent_at / idx_settlements_paid_at:
    daily report range scans (hot path)
  - idx_sales_customer / idx_settlements_customer: customer statement

CONCURRENCY:
  One connection, guarded by sync.RWMutex. WithTx takes the write lock for
  the whole unit of work, so writers are serialized and readers never see
  a half-applied sale.

TIMESTAMPS:
  Stored as UTC text in a fixed-width layout, so lexical order in SQL is
  chronological order.

MIGRATION:
  Schema lives in migrations/*.sql, embedded in the binary and applied
  with golang-migrate on New().

USAGE:
  store, err := sqlite.New("./negocio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.New(store, ledger.Options{})

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed-width (always nine fractional digits) so that
// string comparison matches time comparison.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrConstraint is returned when the database rejects a write that would
// break a schema invariant (negative stock, dangling customer reference).
var ErrConstraint = errors.New("database constraint violated")

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection: every ":memory:" connection is its own database,
	// and the store serializes writers anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close would also close s.db; only the source is released here.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version)
	return version, err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"settlements", "sales", "expenses", "customers", "products"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// queryer is what both *sql.DB and *sql.Tx offer.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// READS (ledger.Reader) - outside a transaction
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(ctx, s.db, id)
}

func (s *Store) ListProducts(ctx context.Context, f ledger.ProductFilter) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db, f)
}

func (s *Store) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCustomer(ctx, s.db, id)
}

func (s *Store) ListCustomers(ctx context.Context, f ledger.CustomerFilter) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCustomers(ctx, s.db, f)
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSale(ctx, s.db, id)
}

func (s *Store) SalesInRange(ctx context.Context, from, to time.Time) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return salesInRange(ctx, s.db, from, to)
}

func (s *Store) SalesByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return salesByCustomer(ctx, s.db, id)
}

func (s *Store) ExpensesInRange(ctx context.Context, from, to time.Time) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expensesInRange(ctx, s.db, from, to)
}

func (s *Store) SettlementsInRange(ctx context.Context, from, to time.Time) ([]ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return settlementsInRange(ctx, s.db, from, to)
}

func (s *Store) SettlementsByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return settlementsByCustomer(ctx, s.db, id)
}

// =============================================================================
// TRANSACTION VIEW (ledger.Tx)
// =============================================================================

// txStore runs everything on the open *sql.Tx. It never touches the
// parent's mutex; WithTx already holds the write lock.
type txStore struct {
	q queryer
}

func (t *txStore) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	return getProduct(ctx, t.q, id)
}

func (t *txStore) ListProducts(ctx context.Context, f ledger.ProductFilter) ([]ledger.Product, error) {
	return listProducts(ctx, t.q, f)
}

func (t *txStore) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return getCustomer(ctx, t.q, id)
}

func (t *txStore) ListCustomers(ctx context.Context, f ledger.CustomerFilter) ([]ledger.Customer, error) {
	return listCustomers(ctx, t.q, f)
}

func (t *txStore) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return getSale(ctx, t.q, id)
}

func (t *txStore) SalesInRange(ctx context.Context, from, to time.Time) ([]ledger.Sale, error) {
	return salesInRange(ctx, t.q, from, to)
}

func (t *txStore) SalesByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Sale, error) {
	return salesByCustomer(ctx, t.q, id)
}

func (t *txStore) ExpensesInRange(ctx context.Context, from, to time.Time) ([]ledger.Expense, error) {
	return expensesInRange(ctx, t.q, from, to)
}

func (t *txStore) SettlementsInRange(ctx context.Context, from, to time.Time) ([]ledger.Settlement, error) {
	return settlementsInRange(ctx, t.q, from, to)
}

func (t *txStore) SettlementsByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Settlement, error) {
	return settlementsByCustomer(ctx, t.q, id)
}

func (t *txStore) InsertProduct(ctx context.Context, p ledger.Product) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO products (id, name, cost, price, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Cost.String(), p.Price.String(), p.Stock, formatTime(p.CreatedAt))
	return wrapWriteError("insert product", err)
}

func (t *txStore) UpdateProductStock(ctx context.Context, id ledger.ProductID, stock int) error {
	res, err := t.q.ExecContext(ctx, "UPDATE products SET stock = ? WHERE id = ?", stock, id)
	if err != nil {
		return wrapWriteError("update stock", err)
	}
	return expectOneRow(res, fmt.Errorf("%w: %s", ledger.ErrProductNotFound, id))
}

func (t *txStore) InsertCustomer(ctx context.Context, c ledger.Customer) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, company, debt, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Company, c.Debt.String(), formatTime(c.CreatedAt))
	return wrapWriteError("insert customer", err)
}

func (t *txStore) UpdateCustomerDebt(ctx context.Context, id ledger.CustomerID, debt decimal.Decimal) error {
	if debt.IsNegative() {
		return fmt.Errorf("%w: debt for %s would be negative (%s)", ErrConstraint, id, debt)
	}
	res, err := t.q.ExecContext(ctx, "UPDATE customers SET debt = ? WHERE id = ?", debt.String(), id)
	if err != nil {
		return wrapWriteError("update debt", err)
	}
	return expectOneRow(res, fmt.Errorf("%w: %s", ledger.ErrCustomerNotFound, id))
}

func (t *txStore) InsertSale(ctx context.Context, s ledger.Sale) error {
	var cost sql.NullString
	if s.Cost != nil {
		cost = sql.NullString{String: s.Cost.String(), Valid: true}
	}
	var customerID sql.NullString
	if s.CustomerID != nil {
		customerID = sql.NullString{String: string(*s.CustomerID), Valid: true}
	}

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO sales (id, sold_at, customer_id, total, cost_total, payment_method, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, formatTime(s.At), customerID, s.Total.String(), cost, string(s.Method), s.Detail)
	return wrapWriteError("insert sale", err)
}

func (t *txStore) InsertExpense(ctx context.Context, e ledger.Expense) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO expenses (id, spent_at, description, amount)
		VALUES (?, ?, ?, ?)
	`, e.ID, formatTime(e.At), e.Description, e.Amount.String())
	return wrapWriteError("insert expense", err)
}

func (t *txStore) InsertSettlement(ctx context.Context, st ledger.Settlement) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO settlements (id, paid_at, customer_id, amount)
		VALUES (?, ?, ?, ?)
	`, st.ID, formatTime(st.At), st.CustomerID, st.Amount.String())
	return wrapWriteError("insert settlement", err)
}

// =============================================================================
// QUERIES
// =============================================================================

const productColumns = "id, name, cost, price, stock, created_at"

func getProduct(ctx context.Context, q queryer, id ledger.ProductID) (*ledger.Product, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	products, err := scanAll(rows, scanProduct)
	if err != nil || len(products) == 0 {
		return nil, err
	}
	return &products[0], nil
}

func listProducts(ctx context.Context, q queryer, f ledger.ProductFilter) ([]ledger.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if f.InStockOnly {
		query += " WHERE stock > 0"
	}
	query += " ORDER BY name, rowid"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return scanAll(rows, scanProduct)
}

const customerColumns = "id, name, company, debt, created_at"

func getCustomer(ctx context.Context, q queryer, id ledger.CustomerID) (*ledger.Customer, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	customers, err := scanAll(rows, scanCustomer)
	if err != nil || len(customers) == 0 {
		return nil, err
	}
	return &customers[0], nil
}

func listCustomers(ctx context.Context, q queryer, f ledger.CustomerFilter) ([]ledger.Customer, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY name, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	customers, err := scanAll(rows, scanCustomer)
	if err != nil || !f.WithDebtOnly {
		return customers, err
	}

	// debt is decimal text; compare in Go rather than casting to REAL.
	var owing []ledger.Customer
	for _, c := range customers {
		if c.Debt.IsPositive() {
			owing = append(owing, c)
		}
	}
	return owing, nil
}

const saleColumns = "id, sold_at, customer_id, total, cost_total, payment_method, detail"

func getSale(ctx context.Context, q queryer, id ledger.SaleID) (*ledger.Sale, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale: %w", err)
	}
	sales, err := scanAll(rows, scanSale)
	if err != nil || len(sales) == 0 {
		return nil, err
	}
	return &sales[0], nil
}

func salesInRange(ctx context.Context, q queryer, from, to time.Time) ([]ledger.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE sold_at >= ? AND sold_at < ?
		ORDER BY sold_at ASC, rowid ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	return scanAll(rows, scanSale)
}

func salesByCustomer(ctx context.Context, q queryer, id ledger.CustomerID) ([]ledger.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE customer_id = ?
		ORDER BY sold_at DESC, rowid DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer sales: %w", err)
	}
	return scanAll(rows, scanSale)
}

func expensesInRange(ctx context.Context, q queryer, from, to time.Time) ([]ledger.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, spent_at, description, amount FROM expenses
		WHERE spent_at >= ? AND spent_at < ?
		ORDER BY spent_at ASC, rowid ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	return scanAll(rows, scanExpense)
}

const settlementColumns = "id, paid_at, customer_id, amount"

func settlementsInRange(ctx context.Context, q queryer, from, to time.Time) ([]ledger.Settlement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE paid_at >= ? AND paid_at < ?
		ORDER BY paid_at ASC, rowid ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	return scanAll(rows, scanSettlement)
}

func settlementsByCustomer(ctx context.Context, q queryer, id ledger.CustomerID) ([]ledger.Settlement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE customer_id = ?
		ORDER BY paid_at DESC, rowid DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer settlements: %w", err)
	}
	return scanAll(rows, scanSettlement)
}

// =============================================================================
// SCANNING
// =============================================================================

func scanAll[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanProduct(rows *sql.Rows) (ledger.Product, error) {
	var (
		p               ledger.Product
		cost, price, at string
	)
	if err := rows.Scan(&p.ID, &p.Name, &cost, &price, &p.Stock, &at); err != nil {
		return p, fmt.Errorf("failed to scan product: %w", err)
	}
	var err error
	if p.Cost, err = decimal.NewFromString(cost); err != nil {
		return p, fmt.Errorf("product %s cost: %w", p.ID, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return p, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	p.CreatedAt, err = parseTime(at)
	return p, err
}

func scanCustomer(rows *sql.Rows) (ledger.Customer, error) {
	var (
		c        ledger.Customer
		debt, at string
	)
	if err := rows.Scan(&c.ID, &c.Name, &c.Company, &debt, &at); err != nil {
		return c, fmt.Errorf("failed to scan customer: %w", err)
	}
	var err error
	if c.Debt, err = decimal.NewFromString(debt); err != nil {
		return c, fmt.Errorf("customer %s debt: %w", c.ID, err)
	}
	c.CreatedAt, err = parseTime(at)
	return c, err
}

func scanSale(rows *sql.Rows) (ledger.Sale, error) {
	var (
		s          ledger.Sale
		at, total  string
		customerID sql.NullString
		cost       sql.NullString
		method     string
	)
	if err := rows.Scan(&s.ID, &at, &customerID, &total, &cost, &method, &s.Detail); err != nil {
		return s, fmt.Errorf("failed to scan sale: %w", err)
	}

	var err error
	if s.At, err = parseTime(at); err != nil {
		return s, err
	}
	if s.Total, err = decimal.NewFromString(total); err != nil {
		return s, fmt.Errorf("sale %s total: %w", s.ID, err)
	}
	if cost.Valid {
		c, err := decimal.NewFromString(cost.String)
		if err != nil {
			return s, fmt.Errorf("sale %s cost: %w", s.ID, err)
		}
		s.Cost = &c
	}
	if customerID.Valid {
		id := ledger.CustomerID(customerID.String)
		s.CustomerID = &id
	}
	s.Method = ledger.PaymentMethod(method)
	return s, nil
}

func scanExpense(rows *sql.Rows) (ledger.Expense, error) {
	var (
		e          ledger.Expense
		at, amount string
	)
	if err := rows.Scan(&e.ID, &at, &e.Description, &amount); err != nil {
		return e, fmt.Errorf("failed to scan expense: %w", err)
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("expense %s amount: %w", e.ID, err)
	}
	e.At, err = parseTime(at)
	return e, err
}

func scanSettlement(rows *sql.Rows) (ledger.Settlement, error) {
	var (
		st         ledger.Settlement
		at, amount string
	)
	if err := rows.Scan(&st.ID, &at, &st.CustomerID, &amount); err != nil {
		return st, fmt.Errorf("failed to scan settlement: %w", err)
	}
	var err error
	if st.Amount, err = decimal.NewFromString(amount); err != nil {
		return st, fmt.Errorf("settlement %s amount: %w", st.ID, err)
	}
	st.At, err = parseTime(at)
	return st, err
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func wrapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
