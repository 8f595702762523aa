// Package export renders ledger reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet     = "Summary"
	SalesSheet       = "Sales"
	ExpensesSheet    = "Expenses"
	SettlementsSheet = "Settlements"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CustomerNames resolves customer IDs for the sales sheet. Missing names
// fall back to the ID.
type CustomerNames map[ledger.CustomerID]string

func (n CustomerNames) name(id *ledger.CustomerID) string {
	if id == nil {
		return ""
	}
	if name, ok := n[*id]; ok {
		return name
	}
	return string(*id)
}

// DailyReport builds a workbook with one summary sheet and one sheet per
// record kind. Timestamps are shown in loc.
func DailyReport(rep ledger.Report, names CustomerNames, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	for _, sheet := range []string{SalesSheet, ExpensesSheet, SettlementsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	if err := writeSummary(f, rep, loc); err != nil {
		return nil, err
	}

	var rows [][]any
	for _, s := range rep.Sales {
		cost := ""
		if s.Cost != nil {
			cost = s.Cost.StringFixed(2)
		}
		rows = append(rows, []any{
			s.At.In(loc).Format("15:04:05"),
			string(s.Method),
			names.name(s.CustomerID),
			s.Detail,
			s.Total.InexactFloat64(),
			cost,
		})
	}
	if err := writeTable(f, SalesSheet, []string{"Time", "Payment", "Customer", "Detail", "Total", "Cost"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, e := range rep.Expenses {
		rows = append(rows, []any{e.At.In(loc).Format("15:04:05"), e.Description, e.Amount.InexactFloat64()})
	}
	if err := writeTable(f, ExpensesSheet, []string{"Time", "Description", "Amount"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, s := range rep.Settlements {
		rows = append(rows, []any{s.At.In(loc).Format("15:04:05"), names.name(&s.CustomerID), s.Amount.InexactFloat64()})
	}
	if err := writeTable(f, SettlementsSheet, []string{"Time", "Customer", "Amount"}, rows); err != nil {
		return nil, err
	}

	return f, nil
}

// WriteDailyReport streams the workbook to w.
func WriteDailyReport(w io.Writer, rep ledger.Report, names CustomerNames, loc *time.Location) error {
	f, err := DailyReport(rep, names, loc)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// FileName is the download name for the report of the day starting at from.
func FileName(from time.Time) string {
	return fmt.Sprintf("cierre-%s.xlsx", from.Format("2006-01-02"))
}

func writeSummary(f *excelize.File, rep ledger.Report, loc *time.Location) error {
	profitLabel := "Profit"
	if rep.Profit.Estimated {
		profitLabel = fmt.Sprintf("Profit (estimated, %s%% margin on uncosted sales)", rep.Profit.MarginRatio.Shift(2).String())
	}

	rows := [][]any{
		{"Date", rep.From.In(loc).Format("2006-01-02")},
		{"Total sales", rep.TotalSales.InexactFloat64()},
		{"Cash sales", rep.CashSales.InexactFloat64()},
		{"Credit sales", rep.CreditSales.InexactFloat64()},
		{"Expenses", rep.TotalExpenses.InexactFloat64()},
		{"Net cash", rep.NetCash.InexactFloat64()},
		{"Settlements received", rep.SettlementsReceived.InexactFloat64()},
		{profitLabel, rep.Profit.Amount.InexactFloat64()},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headings []string, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &headings); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
