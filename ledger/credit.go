/*
credit.go - Customer credit ("fiado") ledger

PURPOSE:
  Tracks what each customer owes. Debt goes up when a credit sale is
  finalized (or an operator charges it directly) and goes down with each
  settlement ("abono"). Every settlement is kept as an immutable record.

INVARIANTS:
  - debt >= 0 at all times
  - a settlement never exceeds the debt at the moment it is written
  - for customers whose debt only moved through sales and settlements:
      debt = Σ credit sale totals − Σ settlements

LIVE DEBT:
  Settle and SettleAll read the debt inside the write transaction. A
  "pay everything" button that remembered the debt from when the screen
  was drawn would otherwise overpay after a credit sale landed in between.

SEE ALSO:
  - checkout.go: charges the customer as part of a credit sale
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Credit struct {
	store Store
	clock clock
	newID func() string
}

// Register creates a customer with zero debt.
func (c *Credit) Register(ctx context.Context, name, company string) (Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}

	cust := Customer{
		ID:        CustomerID(c.newID()),
		Name:      name,
		Company:   strings.TrimSpace(company),
		Debt:      decimal.Zero,
		CreatedAt: c.clock.Now(),
	}
	err := c.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertCustomer(ctx, cust)
	})
	if err != nil {
		return Customer{}, err
	}
	return cust, nil
}

// Get returns a customer or ErrCustomerNotFound.
func (c *Credit) Get(ctx context.Context, id CustomerID) (Customer, error) {
	return loadCustomer(ctx, c.store, id)
}

func (c *Credit) List(ctx context.Context, filter CustomerFilter) ([]Customer, error) {
	return c.store.ListCustomers(ctx, filter)
}

// Charge adds amount to the customer's debt and returns the new debt.
func (c *Credit) Charge(ctx context.Context, id CustomerID, amount decimal.Decimal) (decimal.Decimal, error) {
	var debt decimal.Decimal
	err := c.store.WithTx(ctx, func(tx Tx) error {
		var err error
		debt, err = chargeDebt(ctx, tx, id, amount)
		return err
	})
	return debt, err
}

// Settle records a payment of amount against the customer's debt.
func (c *Credit) Settle(ctx context.Context, id CustomerID, amount decimal.Decimal) (Settlement, error) {
	if !amount.IsPositive() {
		return Settlement{}, fmt.Errorf("%w: settlement must be positive, got %s", ErrInvalidAmount, amount)
	}

	var s Settlement
	err := c.store.WithTx(ctx, func(tx Tx) error {
		cust, err := loadCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		s, err = c.settle(ctx, tx, cust, amount)
		return err
	})
	return s, err
}

// SettleAll pays off the customer's whole debt as it stands right now.
// A customer who owes nothing gets ErrInvalidAmount.
func (c *Credit) SettleAll(ctx context.Context, id CustomerID) (Settlement, error) {
	var s Settlement
	err := c.store.WithTx(ctx, func(tx Tx) error {
		cust, err := loadCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cust.Debt.IsPositive() {
			return fmt.Errorf("%w: customer %s has no debt to settle", ErrInvalidAmount, id)
		}
		s, err = c.settle(ctx, tx, cust, cust.Debt)
		return err
	})
	return s, err
}

func (c *Credit) settle(ctx context.Context, tx Tx, cust Customer, amount decimal.Decimal) (Settlement, error) {
	if amount.GreaterThan(cust.Debt) {
		return Settlement{}, &SettlementExceedsDebtError{
			CustomerID: cust.ID,
			Debt:       cust.Debt,
			Requested:  amount,
		}
	}

	s := Settlement{
		ID:         SettlementID(c.newID()),
		At:         c.clock.Now(),
		CustomerID: cust.ID,
		Amount:     amount,
	}
	if err := tx.UpdateCustomerDebt(ctx, cust.ID, cust.Debt.Sub(amount)); err != nil {
		return Settlement{}, err
	}
	if err := tx.InsertSettlement(ctx, s); err != nil {
		return Settlement{}, err
	}
	return s, nil
}

// Statement is a customer's credit history.
type Statement struct {
	Customer    Customer
	CreditSales []Sale       // newest first
	Settlements []Settlement // newest first
	Charged     decimal.Decimal
	Settled     decimal.Decimal
}

// Balance is what the history says the customer owes.
func (s Statement) Balance() decimal.Decimal {
	return s.Charged.Sub(s.Settled)
}

// Drift is the recorded debt minus the history balance. Non-zero only
// after direct charges, which are not backed by a sale.
func (s Statement) Drift() decimal.Decimal {
	return s.Customer.Debt.Sub(s.Balance())
}

// Statement returns the customer's credit sales and settlements.
func (c *Credit) Statement(ctx context.Context, id CustomerID) (Statement, error) {
	cust, err := loadCustomer(ctx, c.store, id)
	if err != nil {
		return Statement{}, err
	}
	sales, err := c.store.SalesByCustomer(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	settlements, err := c.store.SettlementsByCustomer(ctx, id)
	if err != nil {
		return Statement{}, err
	}

	st := Statement{Customer: cust, Charged: decimal.Zero, Settled: decimal.Zero}
	for _, s := range sales {
		if !s.IsCredit() {
			continue
		}
		st.CreditSales = append(st.CreditSales, s)
		st.Charged = st.Charged.Add(s.Total)
	}
	for _, s := range settlements {
		st.Settled = st.Settled.Add(s.Amount)
	}
	st.Settlements = settlements
	return st, nil
}

func chargeDebt(ctx context.Context, tx Tx, id CustomerID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: charge must be positive, got %s", ErrInvalidAmount, amount)
	}
	cust, err := loadCustomer(ctx, tx, id)
	if err != nil {
		return decimal.Zero, err
	}
	debt := cust.Debt.Add(amount)
	if err := tx.UpdateCustomerDebt(ctx, id, debt); err != nil {
		return decimal.Zero, err
	}
	return debt, nil
}

func loadCustomer(ctx context.Context, r Reader, id CustomerID) (Customer, error) {
	cust, err := r.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if cust == nil {
		return Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
	}
	return *cust, nil
}
