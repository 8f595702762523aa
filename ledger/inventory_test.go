package ledger_test

import (
	"context"
	"testing"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_AddProduct(t *testing.T) {
	engine, _, clk := newTestEngine(t)
	ctx := context.Background()

	p, err := engine.Inventory.AddProduct(ctx, ledger.NewProduct{
		Name:         "  Burger ",
		Cost:         money("3.10"),
		Price:        money("5.00"),
		InitialStock: 10,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Burger", p.Name)
	assert.Equal(t, 10, p.Stock)
	assert.True(t, p.CreatedAt.Equal(clk.Now()))

	got, err := engine.Inventory.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	decEqual(t, "5.00", got.Price)
	decEqual(t, "3.10", got.Cost)
}

func TestInventory_AddProduct_Rejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Inventory.AddProduct(ctx, ledger.NewProduct{Name: " ", Price: money("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = engine.Inventory.AddProduct(ctx, ledger.NewProduct{Name: "Soda", Price: money("-1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = engine.Inventory.AddProduct(ctx, ledger.NewProduct{Name: "Soda", InitialStock: -1})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	products, err := engine.Inventory.List(ctx, ledger.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestInventory_Decrement(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	burger := addProduct(t, engine, "Burger", "3", "5", 10)

	stock, err := engine.Inventory.Decrement(ctx, burger.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
	assert.Equal(t, 7, stockOf(t, engine, burger.ID))

	// Exactly the remaining stock is allowed; stock may reach zero.
	stock, err = engine.Inventory.Decrement(ctx, burger.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestInventory_Decrement_InsufficientStock_LeavesStock(t *testing.T) {
	// GIVEN: 2 fries on hand
	// WHEN: decrementing 3
	// THEN: InsufficientStockError with availability, stock still 2

	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	fries := addProduct(t, engine, "Fries", "1", "2.50", 2)

	_, err := engine.Inventory.Decrement(ctx, fries.ID, 3)

	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
	assert.Equal(t, fries.ID, stockErr.ProductID)
	assert.Equal(t, "Fries", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockOf(t, engine, fries.ID))
}

func TestInventory_Decrement_InvalidInput(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	fries := addProduct(t, engine, "Fries", "1", "2.50", 2)

	_, err := engine.Inventory.Decrement(ctx, fries.ID, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = engine.Inventory.Decrement(ctx, fries.ID, -1)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = engine.Inventory.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)
	assert.True(t, ledger.IsNotFound(err))

	assert.Equal(t, 2, stockOf(t, engine, fries.ID))
}

func TestInventory_Restock(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	soda := addProduct(t, engine, "Soda", "0.50", "1.20", 0)

	stock, err := engine.Inventory.Restock(ctx, soda.ID, 24)
	require.NoError(t, err)
	assert.Equal(t, 24, stock)

	_, err = engine.Inventory.Restock(ctx, soda.ID, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = engine.Inventory.Restock(ctx, "missing", 5)
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	assert.Equal(t, 24, stockOf(t, engine, soda.ID))
}

func TestInventory_List_InStockOnly(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	addProduct(t, engine, "Soda", "0.5", "1", 0)
	addProduct(t, engine, "Burger", "3", "5", 4)
	addProduct(t, engine, "Empanada", "1", "2", 12)

	all, err := engine.Inventory.List(ctx, ledger.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Burger", all[0].Name, "ordered by name")

	available, err := engine.Inventory.List(ctx, ledger.ProductFilter{InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 2)
	for _, p := range available {
		assert.Positive(t, p.Stock)
	}
}
