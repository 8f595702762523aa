package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Inventory owns product stock. Stock never goes negative: a decrement
// larger than what is on hand fails and leaves stock unchanged.
type Inventory struct {
	store Store
	clock clock
	newID func() string
}

// AddProduct registers a product with its initial stock.
func (inv *Inventory) AddProduct(ctx context.Context, np NewProduct) (Product, error) {
	if err := np.validate(); err != nil {
		return Product{}, err
	}

	p := Product{
		ID:        ProductID(inv.newID()),
		Name:      strings.TrimSpace(np.Name),
		Cost:      np.Cost,
		Price:     np.Price,
		Stock:     np.InitialStock,
		CreatedAt: inv.clock.Now(),
	}
	err := inv.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Get returns a product or ErrProductNotFound.
func (inv *Inventory) Get(ctx context.Context, id ProductID) (Product, error) {
	return loadProduct(ctx, inv.store, id)
}

// List returns products ordered by name.
func (inv *Inventory) List(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return inv.store.ListProducts(ctx, filter)
}

// Decrement removes qty units from stock and returns the new stock.
func (inv *Inventory) Decrement(ctx context.Context, id ProductID, qty int) (int, error) {
	var stock int
	err := inv.store.WithTx(ctx, func(tx Tx) error {
		var err error
		stock, err = decrementStock(ctx, tx, id, qty)
		return err
	})
	return stock, err
}

// Restock adds qty units to stock and returns the new stock.
func (inv *Inventory) Restock(ctx context.Context, id ProductID, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: restock quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}

	var stock int
	err := inv.store.WithTx(ctx, func(tx Tx) error {
		p, err := loadProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		stock = p.Stock + qty
		return tx.UpdateProductStock(ctx, id, stock)
	})
	return stock, err
}

// decrementStock is the read-then-write stock check. It must run inside a
// Tx so no other writer can change stock between the read and the write.
func decrementStock(ctx context.Context, tx Tx, id ProductID, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: decrement quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}
	p, err := loadProduct(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if qty > p.Stock {
		return 0, &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Stock,
			Requested:   qty,
		}
	}
	stock := p.Stock - qty
	if err := tx.UpdateProductStock(ctx, id, stock); err != nil {
		return 0, err
	}
	return stock, nil
}

func loadProduct(ctx context.Context, r Reader, id ProductID) (Product, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p == nil {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return *p, nil
}
