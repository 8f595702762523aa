package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Expenses records money paid out of the till. Entries are immutable.
type Expenses struct {
	store Store
	clock clock
	newID func() string
}

func (e *Expenses) Record(ctx context.Context, description string, amount decimal.Decimal) (Expense, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Expense{}, fmt.Errorf("%w: expense description is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: expense must be positive, got %s", ErrInvalidAmount, amount)
	}

	exp := Expense{
		ID:          ExpenseID(e.newID()),
		At:          e.clock.Now(),
		Description: description,
		Amount:      amount,
	}
	err := e.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertExpense(ctx, exp)
	})
	if err != nil {
		return Expense{}, err
	}
	return exp, nil
}
