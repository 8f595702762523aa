package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport(estimated bool) ledger.Report {
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	alice := ledger.CustomerID("c-alice")
	cost := decimal.RequireFromString("9")

	return ledger.Report{
		From: day,
		To:   day.AddDate(0, 0, 1),
		Sales: []ledger.Sale{
			{ID: "s1", At: day.Add(9 * time.Hour), Total: decimal.RequireFromString("15"), Cost: &cost, Method: ledger.PaymentCash, Detail: "3x Burger"},
			{ID: "s2", At: day.Add(13 * time.Hour), CustomerID: &alice, Total: decimal.RequireFromString("20"), Method: ledger.PaymentCredit, Detail: "4x Burger"},
		},
		Expenses: []ledger.Expense{
			{ID: "e1", At: day.Add(10 * time.Hour), Description: "Ice", Amount: decimal.RequireFromString("5")},
		},
		Settlements: []ledger.Settlement{
			{ID: "st1", At: day.Add(18 * time.Hour), CustomerID: alice, Amount: decimal.RequireFromString("7.5")},
		},
		TotalSales:          decimal.RequireFromString("35"),
		CashSales:           decimal.RequireFromString("15"),
		CreditSales:         decimal.RequireFromString("20"),
		TotalExpenses:       decimal.RequireFromString("5"),
		NetCash:             decimal.RequireFromString("10"),
		SettlementsReceived: decimal.RequireFromString("7.5"),
		Profit: ledger.Profit{
			Amount:      decimal.RequireFromString("11"),
			Estimated:   estimated,
			MarginRatio: decimal.RequireFromString("0.25"),
		},
	}
}

func roundTrip(t *testing.T, rep ledger.Report) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteDailyReport(&buf, rep, CustomerNames{"c-alice": "Alice"}, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestDailyReport_Sheets(t *testing.T) {
	f := roundTrip(t, sampleReport(false))

	assert.Equal(t, []string{SummarySheet, SalesSheet, ExpensesSheet, SettlementsSheet}, f.GetSheetList())
}

func TestDailyReport_Summary(t *testing.T) {
	f := roundTrip(t, sampleReport(false))

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 8)

	assert.Equal(t, []string{"Date", "2025-03-10"}, rows[0])
	assert.Equal(t, []string{"Net cash", "10"}, rows[5])
	assert.Equal(t, []string{"Settlements received", "7.5"}, rows[6])
	assert.Equal(t, []string{"Profit", "11"}, rows[7])
}

func TestDailyReport_EstimatedProfitIsLabeled(t *testing.T) {
	f := roundTrip(t, sampleReport(true))

	label, err := f.GetCellValue(SummarySheet, "A8")
	require.NoError(t, err)
	assert.Contains(t, label, "estimated")
	assert.Contains(t, label, "25%")
}

func TestDailyReport_Sales(t *testing.T) {
	f := roundTrip(t, sampleReport(false))

	rows, err := f.GetRows(SalesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Time", "Payment", "Customer", "Detail", "Total", "Cost"}, rows[0])
	assert.Equal(t, []string{"09:00:00", "cash", "", "3x Burger", "15", "9.00"}, rows[1])
	// Trailing empty cells are dropped by GetRows.
	assert.Equal(t, []string{"13:00:00", "credit", "Alice", "4x Burger", "20"}, rows[2])
}

func TestDailyReport_ExpensesAndSettlements(t *testing.T) {
	f := roundTrip(t, sampleReport(false))

	expenses, err := f.GetRows(ExpensesSheet)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, []string{"10:00:00", "Ice", "5"}, expenses[1])

	settlements, err := f.GetRows(SettlementsSheet)
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	assert.Equal(t, []string{"18:00:00", "Alice", "7.5"}, settlements[1])
}

func TestDailyReport_EmptyDay(t *testing.T) {
	day := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	f := roundTrip(t, ledger.Report{From: day, To: day.AddDate(0, 0, 1)})

	rows, err := f.GetRows(SalesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "headers only")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "cierre-2025-03-10.xlsx", FileName(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)))
}
