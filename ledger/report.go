package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Profit is the gross profit for a set of sales.
//
// Sales carry their acquisition cost from the moment they are finalized,
// so for those the profit is exact (total − cost). Sales recorded without
// cost data fall back to total × MarginRatio. Estimated is true whenever
// at least one sale used the fallback; anything displaying Amount must
// label it as an estimate in that case.
type Profit struct {
	Amount        decimal.Decimal
	Estimated     bool
	MarginRatio   decimal.Decimal
	CostedSales   int
	UncostedSales int
}

// Report summarizes the till for a period.
type Report struct {
	From time.Time // inclusive
	To   time.Time // exclusive

	Sales       []Sale
	Expenses    []Expense
	Settlements []Settlement

	TotalSales    decimal.Decimal
	CashSales     decimal.Decimal
	CreditSales   decimal.Decimal
	TotalExpenses decimal.Decimal

	// NetCash is cash sales minus expenses: what should be in the drawer.
	NetCash decimal.Decimal

	// SettlementsReceived is money collected against debts in the period.
	// Reported on its own; it is not part of NetCash.
	SettlementsReceived decimal.Decimal

	Profit Profit
}

// Reports is the read-only reporting aggregator.
type Reports struct {
	store       Store
	clock       clock
	marginRatio decimal.Decimal
}

// Daily reports the calendar day containing date, in the shop's time zone.
func (r *Reports) Daily(ctx context.Context, date time.Time) (Report, error) {
	from, to := r.clock.DayBounds(date)
	return r.Range(ctx, from, to)
}

// Today reports the current calendar day by the engine's clock.
func (r *Reports) Today(ctx context.Context) (Report, error) {
	return r.Daily(ctx, r.clock.Now())
}

// Range reports every record with from <= At < to.
func (r *Reports) Range(ctx context.Context, from, to time.Time) (Report, error) {
	sales, err := r.store.SalesInRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	expenses, err := r.store.ExpensesInRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	settlements, err := r.store.SettlementsInRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		From:                from,
		To:                  to,
		Sales:               sales,
		Expenses:            expenses,
		Settlements:         settlements,
		TotalSales:          decimal.Zero,
		CashSales:           decimal.Zero,
		CreditSales:         decimal.Zero,
		TotalExpenses:       decimal.Zero,
		SettlementsReceived: decimal.Zero,
		Profit:              Profit{Amount: decimal.Zero, MarginRatio: r.marginRatio},
	}

	for _, s := range sales {
		rep.TotalSales = rep.TotalSales.Add(s.Total)
		switch s.Method {
		case PaymentCash:
			rep.CashSales = rep.CashSales.Add(s.Total)
		case PaymentCredit:
			rep.CreditSales = rep.CreditSales.Add(s.Total)
		}

		if s.Cost != nil {
			rep.Profit.Amount = rep.Profit.Amount.Add(s.Total.Sub(*s.Cost))
			rep.Profit.CostedSales++
		} else {
			rep.Profit.Amount = rep.Profit.Amount.Add(s.Total.Mul(r.marginRatio))
			rep.Profit.UncostedSales++
		}
	}
	rep.Profit.Estimated = rep.Profit.UncostedSales > 0
	rep.Profit.Amount = rep.Profit.Amount.Round(2)

	for _, e := range expenses {
		rep.TotalExpenses = rep.TotalExpenses.Add(e.Amount)
	}
	for _, s := range settlements {
		rep.SettlementsReceived = rep.SettlementsReceived.Add(s.Amount)
	}

	rep.NetCash = rep.CashSales.Sub(rep.TotalExpenses)
	return rep, nil
}
