/*
checkout.go - Sale commit coordinator

PURPOSE:
  Turns a cart into a recorded sale. Finalizing touches three kinds of
  state - the sale history, product stock, and (for credit) customer
  debt - and they must all change together or not at all.

FLOW:
  1. Reject what can be rejected without the store: empty cart, unknown
     payment method, credit without a customer, cash with a customer.
  2. Open one write transaction.
  3. Re-check every product against its CURRENT persisted stock. The cart
     only knows the stock that was on screen when the line was added;
     another sale may have consumed it since. Quantities are summed per
     product, so two lines of the same item are checked together.
  4. Only when every product has enough stock: insert the sale, decrement
     each product, charge the customer for credit sales.
  5. Commit. Any error before that rolls everything back.

CART STATE:
  Success: Building -> Empty (the cart is cleared)
  Failure: Building -> Building (the cart is left as it was)

WHY RE-CHECK UP FRONT:
  Because step 3 holds the single writer slot, step 4's decrements can't
  fail for quantity reasons. There is nothing to compensate.

SEE ALSO:
  - cart.go: the accumulator passed in
  - inventory.go: decrementStock
  - credit.go: chargeDebt
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type Checkout struct {
	store Store
	clock clock
	newID func() string
}

// Finalize records the cart as one sale. customerID must be set for
// credit sales and nil for cash sales.
func (co *Checkout) Finalize(ctx context.Context, cart *Cart, method PaymentMethod, customerID *CustomerID) (Sale, error) {
	if cart == nil || cart.IsEmpty() {
		return Sale{}, ErrEmptyCart
	}
	if !method.Valid() {
		return Sale{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	if method == PaymentCredit && customerID == nil {
		return Sale{}, ErrMissingCustomer
	}
	if method == PaymentCash && customerID != nil {
		return Sale{}, fmt.Errorf("%w: cash sale cannot carry customer %s", ErrInvalidPaymentMethod, *customerID)
	}

	lines := cart.Lines()
	var sale Sale
	err := co.store.WithTx(ctx, func(tx Tx) error {
		if method == PaymentCredit {
			if _, err := loadCustomer(ctx, tx, *customerID); err != nil {
				return err
			}
		}

		demand, err := checkStock(ctx, tx, lines)
		if err != nil {
			return err
		}

		cost := decimal.Zero
		for _, d := range demand {
			cost = cost.Add(d.product.Cost.Mul(decimal.NewFromInt(int64(d.quantity))))
		}

		sale = Sale{
			ID:     SaleID(co.newID()),
			At:     co.clock.Now(),
			Total:  cart.Total(),
			Cost:   &cost,
			Method: method,
			Detail: cart.Detail(),
		}
		if customerID != nil {
			id := *customerID
			sale.CustomerID = &id
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		for _, d := range demand {
			if _, err := decrementStock(ctx, tx, d.product.ID, d.quantity); err != nil {
				return err
			}
		}

		// A free sale still goes on the customer's history but adds no debt.
		if method == PaymentCredit && sale.Total.IsPositive() {
			if _, err := chargeDebt(ctx, tx, *customerID, sale.Total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	cart.Clear()
	return sale, nil
}

// GetSale returns a recorded sale or ErrSaleNotFound.
func (co *Checkout) GetSale(ctx context.Context, id SaleID) (Sale, error) {
	s, err := co.store.GetSale(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if s == nil {
		return Sale{}, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	return *s, nil
}

type productDemand struct {
	product  Product
	quantity int
}

// checkStock sums the cart per product (first-seen order) and compares
// each sum with the product's persisted stock.
func checkStock(ctx context.Context, tx Tx, lines []LineItem) ([]productDemand, error) {
	index := make(map[ProductID]int, len(lines))
	var demand []productDemand
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: line for %s has quantity %d", ErrInvalidQuantity, l.ProductID, l.Quantity)
		}
		if i, ok := index[l.ProductID]; ok {
			demand[i].quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(demand)
		demand = append(demand, productDemand{product: Product{ID: l.ProductID}, quantity: l.Quantity})
	}

	for i := range demand {
		p, err := loadProduct(ctx, tx, demand[i].product.ID)
		if err != nil {
			return nil, err
		}
		if demand[i].quantity > p.Stock {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   demand[i].quantity,
			}
		}
		demand[i].product = p
	}
	return demand, nil
}
