package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/comideria/pos-ledger/ledger/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCheckout_ScenarioA_CashSale(t *testing.T) {
	// GIVEN: Burger with stock 10 at 5.00
	// WHEN: 3 are sold for cash
	// THEN: stock is 7 and one cash sale of 15.00 exists without customer

	engine, _, clk := newTestEngine(t)
	ctx := context.Background()
	burger := addProduct(t, engine, "Burger", "3.00", "5.00", 10)

	cart := cartWith(t, burger, 3)
	decEqual(t, "15.00", cart.Total())

	sale, err := engine.Checkout.Finalize(ctx, cart, ledger.PaymentCash, nil)
	require.NoError(t, err)

	assert.Equal(t, 7, stockOf(t, engine, burger.ID))
	decEqual(t, "15.00", sale.Total)
	assert.Equal(t, ledger.PaymentCash, sale.Method)
	assert.Nil(t, sale.CustomerID)
	assert.Equal(t, "3x Burger", sale.Detail)
	assert.True(t, sale.At.Equal(clk.Now()))
	require.NotNil(t, sale.Cost)
	decEqual(t, "9.00", *sale.Cost)
	assert.True(t, cart.IsEmpty(), "cart is cleared on success")

	stored, err := engine.Checkout.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	decEqual(t, "15.00", stored.Total)
}

func TestCheckout_ScenarioB_CreditSale(t *testing.T) {
	// GIVEN: Alice owes nothing
	// WHEN: a 20.00 sale is put on her account
	// THEN: she owes 20.00 and the sale references her

	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	alice := addCustomer(t, engine, "Alice")
	combo := addProduct(t, engine, "Combo", "8", "10.00", 5)

	sale, err := engine.Checkout.Finalize(ctx, cartWith(t, combo, 2), ledger.PaymentCredit, customerRef(alice.ID))
	require.NoError(t, err)

	decEqual(t, "20.00", debtOf(t, engine, alice.ID))
	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, alice.ID, *sale.CustomerID)
	assert.True(t, sale.IsCredit())

	history, err := engine.Store.SalesByCustomer(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sale.ID, history[0].ID)
}

func TestCheckout_ZeroTotalSale(t *testing.T) {
	// GIVEN: a free sample priced at 0.00 with stock 5
	// WHEN: one is given away for cash and one on Alice's account
	// THEN: both sales are recorded, stock drops by 2, Alice still owes 0.00

	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	alice := addCustomer(t, engine, "Alice")
	sample := addProduct(t, engine, "Sample", "0.20", "0", 5)

	cashSale, err := engine.Checkout.Finalize(ctx, cartWith(t, sample, 1), ledger.PaymentCash, nil)
	require.NoError(t, err)
	decEqual(t, "0", cashSale.Total)

	creditSale, err := engine.Checkout.Finalize(ctx, cartWith(t, sample, 1), ledger.PaymentCredit, customerRef(alice.ID))
	require.NoError(t, err)
	decEqual(t, "0", creditSale.Total)
	require.NotNil(t, creditSale.CustomerID)

	assert.Equal(t, 3, stockOf(t, engine, sample.ID))
	decEqual(t, "0", debtOf(t, engine, alice.ID))

	st, err := engine.Credit.Statement(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, st.CreditSales, 1)
	assert.Equal(t, creditSale.ID, st.CreditSales[0].ID)
	decEqual(t, "0", st.Drift())
}

func TestCheckout_ScenarioD_InsufficientStock(t *testing.T) {
	// GIVEN: Fries with stock 2
	// WHEN: a cart asks for 5
	// THEN: finalize fails, stock stays 2, no sale is written

	engine, mem, _ := newTestEngine(t)
	ctx := context.Background()
	fries := addProduct(t, engine, "Fries", "1", "2.50", 2)

	// The cart was filled while the screen still showed plenty of fries.
	stale := fries
	stale.Stock = 10
	cart := cartWith(t, stale, 5)

	_, err := engine.Checkout.Finalize(ctx, cart, ledger.PaymentCash, nil)

	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockOf(t, engine, fries.ID))
	assert.Empty(t, allSales(t, mem))
	assert.False(t, cart.IsEmpty(), "cart is kept on failure")
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCheckout_RejectsBeforeTouchingStore(t *testing.T) {
	engine, mem, _ := newTestEngine(t)
	ctx := context.Background()
	burger := addProduct(t, engine, "Burger", "3", "5", 10)
	alice := addCustomer(t, engine, "Alice")

	tests := []struct {
		name     string
		cart     *ledger.Cart
		method   ledger.PaymentMethod
		customer *ledger.CustomerID
		want     error
	}{
		{"empty cart", &ledger.Cart{}, ledger.PaymentCash, nil, ledger.ErrEmptyCart},
		{"nil cart", nil, ledger.PaymentCash, nil, ledger.ErrEmptyCart},
		{"unknown method", cartWith(t, burger, 1), ledger.PaymentMethod("barter"), nil, ledger.ErrInvalidPaymentMethod},
		{"credit without customer", cartWith(t, burger, 1), ledger.PaymentCredit, nil, ledger.ErrMissingCustomer},
		{"cash with customer", cartWith(t, burger, 1), ledger.PaymentCash, customerRef(alice.ID), ledger.ErrInvalidPaymentMethod},
		{"credit for unknown customer", cartWith(t, burger, 1), ledger.PaymentCredit, customerRef("ghost"), ledger.ErrCustomerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Checkout.Finalize(ctx, tt.cart, tt.method, tt.customer)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 10, stockOf(t, engine, burger.ID))
	assert.True(t, debtOf(t, engine, alice.ID).IsZero())
	assert.Empty(t, allSales(t, mem))
}

func TestCheckout_UnknownProduct(t *testing.T) {
	engine, mem, _ := newTestEngine(t)
	ctx := context.Background()

	ghost := ledger.Product{ID: "ghost", Name: "Ghost", Price: money("1"), Stock: 5}
	_, err := engine.Checkout.Finalize(ctx, cartWith(t, ghost, 1), ledger.PaymentCash, nil)
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)
	assert.Empty(t, allSales(t, mem))
}

func TestCheckout_GetSale_NotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Checkout.GetSale(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrSaleNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestCheckout_DuplicateLinesAreCheckedTogether(t *testing.T) {
	// GIVEN: 4 empanadas in stock
	// AND: a stale cart with two lines of 3 empanadas each
	// WHEN: finalizing
	// THEN: rejected as a whole, 6 > 4, nothing decremented

	engine, mem, _ := newTestEngine(t)
	ctx := context.Background()
	empanada := addProduct(t, engine, "Empanada", "1", "2", 4)

	stale := empanada
	stale.Stock = 100
	cart := cartWith(t, stale, 3, stale, 3)

	_, err := engine.Checkout.Finalize(ctx, cart, ledger.PaymentCash, nil)
	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 4, stockOf(t, engine, empanada.ID))
	assert.Empty(t, allSales(t, mem))
}

func TestCheckout_DuplicateLinesDecrementOnce(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	empanada := addProduct(t, engine, "Empanada", "1", "2", 10)

	sale, err := engine.Checkout.Finalize(ctx, cartWith(t, empanada, 3, empanada, 2), ledger.PaymentCash, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, stockOf(t, engine, empanada.ID))
	decEqual(t, "10", sale.Total)
	assert.Equal(t, "3x Empanada, 2x Empanada", sale.Detail)
}

func TestCheckout_SecondProductShort_FirstUntouched(t *testing.T) {
	// GIVEN: a cart with Burger x2 and Soda x3
	// AND: Soda dropped to 1 after the cart was filled
	// WHEN: finalizing
	// THEN: neither product's stock changes

	engine, mem, _ := newTestEngine(t)
	ctx := context.Background()
	burger := addProduct(t, engine, "Burger", "3", "5", 10)
	soda := addProduct(t, engine, "Soda", "0.5", "1.5", 4)

	cart := cartWith(t, burger, 2, soda, 3)
	_, err := engine.Inventory.Decrement(ctx, soda.ID, 3)
	require.NoError(t, err)

	_, err = engine.Checkout.Finalize(ctx, cart, ledger.PaymentCash, nil)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	assert.Equal(t, 10, stockOf(t, engine, burger.ID))
	assert.Equal(t, 1, stockOf(t, engine, soda.ID))
	assert.Empty(t, allSales(t, mem))
}

func TestCheckout_FailureAfterDecrement_RollsBack(t *testing.T) {
	// GIVEN: a store whose debt update fails
	// WHEN: a credit sale is finalized
	// THEN: the sale, the decrement and the debt are all discarded

	mem := store.NewMemory()
	faulty := &failingStore{Memory: mem, failDebt: errors.New("disk full")}
	clk := &testClock{t: time.Date(2025, time.March, 10, 12, 0, 0, 0, shopTZ)}
	engine := ledger.New(faulty, ledger.Options{Now: clk.Now, Location: shopTZ})
	ctx := context.Background()

	burger := addProduct(t, engine, "Burger", "3", "5", 10)
	alice := addCustomer(t, engine, "Alice")

	_, err := engine.Checkout.Finalize(ctx, cartWith(t, burger, 2), ledger.PaymentCredit, customerRef(alice.ID))
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, 10, stockOf(t, engine, burger.ID))
	assert.True(t, debtOf(t, engine, alice.ID).IsZero())
	assert.Empty(t, allSales(t, mem))
}

func TestCheckout_CanceledContext(t *testing.T) {
	engine, mem, _ := newTestEngine(t)
	burger := addProduct(t, engine, "Burger", "3", "5", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Checkout.Finalize(ctx, cartWith(t, burger, 1), ledger.PaymentCash, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, stockOf(t, engine, burger.ID))
	assert.Empty(t, allSales(t, mem))
}

// =============================================================================
// HELPERS
// =============================================================================

type failingStore struct {
	*store.Memory
	failDebt error
}

func (s *failingStore) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.Memory.WithTx(ctx, func(tx ledger.Tx) error {
		return fn(&failingTx{Tx: tx, failDebt: s.failDebt})
	})
}

type failingTx struct {
	ledger.Tx
	failDebt error
}

func (tx *failingTx) UpdateCustomerDebt(ctx context.Context, id ledger.CustomerID, debt decimal.Decimal) error {
	if tx.failDebt != nil {
		return tx.failDebt
	}
	return tx.Tx.UpdateCustomerDebt(ctx, id, debt)
}

func allSales(t *testing.T, r ledger.Reader) []ledger.Sale {
	t.Helper()
	sales, err := r.SalesInRange(context.Background(), time.Unix(0, 0), time.Now().AddDate(10, 0, 0))
	require.NoError(t, err)
	return sales
}
