package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/comideria/pos-ledger/ledger/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testClock is a settable clock shared by the engine under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var shopTZ = time.FixedZone("ART", -3*60*60)

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory, *testClock) {
	t.Helper()
	mem := store.NewMemory()
	clk := &testClock{t: time.Date(2025, time.March, 10, 12, 0, 0, 0, shopTZ)}
	engine := ledger.New(mem, ledger.Options{Now: clk.Now, Location: shopTZ})
	return engine, mem, clk
}

func money(s string) decimal.Decimal {
	return ledger.MustParseMoney(s)
}

func addProduct(t *testing.T, e *ledger.Engine, name, cost, price string, stock int) ledger.Product {
	t.Helper()
	p, err := e.Inventory.AddProduct(context.Background(), ledger.NewProduct{
		Name:         name,
		Cost:         money(cost),
		Price:        money(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return p
}

func addCustomer(t *testing.T, e *ledger.Engine, name string) ledger.Customer {
	t.Helper()
	c, err := e.Credit.Register(context.Background(), name, "")
	require.NoError(t, err)
	return c
}

func stockOf(t *testing.T, e *ledger.Engine, id ledger.ProductID) int {
	t.Helper()
	p, err := e.Inventory.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func debtOf(t *testing.T, e *ledger.Engine, id ledger.CustomerID) decimal.Decimal {
	t.Helper()
	c, err := e.Credit.Get(context.Background(), id)
	require.NoError(t, err)
	return c.Debt
}

func cartWith(t *testing.T, lines ...any) *ledger.Cart {
	t.Helper()
	cart := &ledger.Cart{}
	for i := 0; i < len(lines); i += 2 {
		require.NoError(t, cart.AddLine(lines[i].(ledger.Product), lines[i+1].(int)))
	}
	return cart
}

func decEqual(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func customerRef(id ledger.CustomerID) *ledger.CustomerID { return &id }

// newMemoryWithSale seeds one cash sale without cost data, as an import
// from an older till would leave it.
func newMemoryWithSale(t *testing.T, total string) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	err := mem.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.InsertSale(context.Background(), ledger.Sale{
			ID:     "imported",
			At:     time.Date(2025, time.March, 10, 10, 0, 0, 0, shopTZ),
			Total:  money(total),
			Method: ledger.PaymentCash,
		})
	})
	require.NoError(t, err)
	return mem
}
