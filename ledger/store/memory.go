// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one RWMutex.
// WithTx works on a copy of the data and swaps it in on success, so a
// failed unit of work leaves nothing behind.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	products    map[ledger.ProductID]ledger.Product
	customers   map[ledger.CustomerID]ledger.Customer
	sales       []ledger.Sale
	expenses    []ledger.Expense
	settlements []ledger.Settlement
}

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func newMemData() *memData {
	return &memData{
		products:  make(map[ledger.ProductID]ledger.Product),
		customers: make(map[ledger.CustomerID]ledger.Customer),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	c.sales = append([]ledger.Sale(nil), d.sales...)
	c.expenses = append([]ledger.Expense(nil), d.expenses...)
	c.settlements = append([]ledger.Settlement(nil), d.settlements...)
	return c
}

// WithTx runs fn against a private copy and publishes it if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := m.data.clone()
	if err := fn(&memTx{data: working}); err != nil {
		return err
	}
	m.data = working
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newMemData()
	return nil
}

// =============================================================================
// READS (ledger.Reader)
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getProduct(id), nil
}

func (m *Memory) ListProducts(_ context.Context, f ledger.ProductFilter) ([]ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listProducts(f), nil
}

func (m *Memory) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getCustomer(id), nil
}

func (m *Memory) ListCustomers(_ context.Context, f ledger.CustomerFilter) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listCustomers(f), nil
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getSale(id), nil
}

func (m *Memory) SalesInRange(_ context.Context, from, to time.Time) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.salesInRange(from, to), nil
}

func (m *Memory) SalesByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.salesByCustomer(id), nil
}

func (m *Memory) ExpensesInRange(_ context.Context, from, to time.Time) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.expensesInRange(from, to), nil
}

func (m *Memory) SettlementsInRange(_ context.Context, from, to time.Time) ([]ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.settlementsInRange(from, to), nil
}

func (m *Memory) SettlementsByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.settlementsByCustomer(id), nil
}

// =============================================================================
// TRANSACTION VIEW (ledger.Tx)
// =============================================================================

// memTx reads and writes the working copy without locking; the parent
// Memory holds the write lock for the whole unit of work.
type memTx struct {
	data *memData
}

func (t *memTx) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	return t.data.getProduct(id), nil
}

func (t *memTx) ListProducts(_ context.Context, f ledger.ProductFilter) ([]ledger.Product, error) {
	return t.data.listProducts(f), nil
}

func (t *memTx) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return t.data.getCustomer(id), nil
}

func (t *memTx) ListCustomers(_ context.Context, f ledger.CustomerFilter) ([]ledger.Customer, error) {
	return t.data.listCustomers(f), nil
}

func (t *memTx) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return t.data.getSale(id), nil
}

func (t *memTx) SalesInRange(_ context.Context, from, to time.Time) ([]ledger.Sale, error) {
	return t.data.salesInRange(from, to), nil
}

func (t *memTx) SalesByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Sale, error) {
	return t.data.salesByCustomer(id), nil
}

func (t *memTx) ExpensesInRange(_ context.Context, from, to time.Time) ([]ledger.Expense, error) {
	return t.data.expensesInRange(from, to), nil
}

func (t *memTx) SettlementsInRange(_ context.Context, from, to time.Time) ([]ledger.Settlement, error) {
	return t.data.settlementsInRange(from, to), nil
}

func (t *memTx) SettlementsByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Settlement, error) {
	return t.data.settlementsByCustomer(id), nil
}

func (t *memTx) InsertProduct(_ context.Context, p ledger.Product) error {
	if _, ok := t.data.products[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	t.data.products[p.ID] = p
	return nil
}

func (t *memTx) UpdateProductStock(_ context.Context, id ledger.ProductID, stock int) error {
	p, ok := t.data.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrProductNotFound, id)
	}
	if stock < 0 {
		return fmt.Errorf("stock for %s would be negative (%d)", id, stock)
	}
	p.Stock = stock
	t.data.products[id] = p
	return nil
}

func (t *memTx) InsertCustomer(_ context.Context, c ledger.Customer) error {
	if _, ok := t.data.customers[c.ID]; ok {
		return fmt.Errorf("customer %s already exists", c.ID)
	}
	t.data.customers[c.ID] = c
	return nil
}

func (t *memTx) UpdateCustomerDebt(_ context.Context, id ledger.CustomerID, debt decimal.Decimal) error {
	c, ok := t.data.customers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCustomerNotFound, id)
	}
	if debt.IsNegative() {
		return fmt.Errorf("debt for %s would be negative (%s)", id, debt)
	}
	c.Debt = debt
	t.data.customers[id] = c
	return nil
}

func (t *memTx) InsertSale(_ context.Context, s ledger.Sale) error {
	if s.CustomerID != nil {
		if _, ok := t.data.customers[*s.CustomerID]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrCustomerNotFound, *s.CustomerID)
		}
	}
	t.data.sales = append(t.data.sales, s)
	return nil
}

func (t *memTx) InsertExpense(_ context.Context, e ledger.Expense) error {
	t.data.expenses = append(t.data.expenses, e)
	return nil
}

func (t *memTx) InsertSettlement(_ context.Context, s ledger.Settlement) error {
	if _, ok := t.data.customers[s.CustomerID]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCustomerNotFound, s.CustomerID)
	}
	t.data.settlements = append(t.data.settlements, s)
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (d *memData) getProduct(id ledger.ProductID) *ledger.Product {
	p, ok := d.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (d *memData) listProducts(f ledger.ProductFilter) []ledger.Product {
	var out []ledger.Product
	for _, p := range d.products {
		if f.InStockOnly && p.Stock <= 0 {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return listKey{a.Name, a.CreatedAt, string(a.ID)}.less(listKey{b.Name, b.CreatedAt, string(b.ID)})
	})
	return out
}

func (d *memData) getCustomer(id ledger.CustomerID) *ledger.Customer {
	c, ok := d.customers[id]
	if !ok {
		return nil
	}
	return &c
}

func (d *memData) listCustomers(f ledger.CustomerFilter) []ledger.Customer {
	var out []ledger.Customer
	for _, c := range d.customers {
		if f.WithDebtOnly && !c.Debt.IsPositive() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return listKey{a.Name, a.CreatedAt, string(a.ID)}.less(listKey{b.Name, b.CreatedAt, string(b.ID)})
	})
	return out
}

// listKey orders products and customers by name, then creation time, then
// ID, so equal names come out in insertion order as they do in SQLite.
type listKey struct {
	name string
	at   time.Time
	id   string
}

func (k listKey) less(o listKey) bool {
	if k.name != o.name {
		return k.name < o.name
	}
	if !k.at.Equal(o.at) {
		return k.at.Before(o.at)
	}
	return k.id < o.id
}

func (d *memData) getSale(id ledger.SaleID) *ledger.Sale {
	for _, s := range d.sales {
		if s.ID == id {
			s := s
			return &s
		}
	}
	return nil
}

func inRange(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func (d *memData) salesInRange(from, to time.Time) []ledger.Sale {
	var out []ledger.Sale
	for _, s := range d.sales {
		if inRange(s.At, from, to) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (d *memData) salesByCustomer(id ledger.CustomerID) []ledger.Sale {
	var out []ledger.Sale
	for _, s := range d.sales {
		if s.CustomerID != nil && *s.CustomerID == id {
			out = append(out, s)
		}
	}
	sortNewestFirst(out, func(s ledger.Sale) time.Time { return s.At })
	return out
}

func (d *memData) expensesInRange(from, to time.Time) []ledger.Expense {
	var out []ledger.Expense
	for _, e := range d.expenses {
		if inRange(e.At, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (d *memData) settlementsInRange(from, to time.Time) []ledger.Settlement {
	var out []ledger.Settlement
	for _, s := range d.settlements {
		if inRange(s.At, from, to) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (d *memData) settlementsByCustomer(id ledger.CustomerID) []ledger.Settlement {
	var out []ledger.Settlement
	for _, s := range d.settlements {
		if s.CustomerID == id {
			out = append(out, s)
		}
	}
	sortNewestFirst(out, func(s ledger.Settlement) time.Time { return s.At })
	return out
}

// sortNewestFirst reverses insertion order first so records with equal
// timestamps still come out newest first.
func sortNewestFirst[T any](items []T, at func(T) time.Time) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).After(at(items[j])) })
}
