/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("15.00"), never as JSON numbers, so
  no float rounding happens on either side of the wire.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, numeric strings, positive quantities). Business rules
  (settlement <= debt, stock on hand) stay in the ledger.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/comideria/pos-ledger/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateProductRequest is the request to register a product.
type CreateProductRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Cost         string `json:"cost" validate:"required,numeric"`
	Price        string `json:"price" validate:"required,numeric"`
	InitialStock int    `json:"initial_stock" validate:"gte=0"`
}

// RestockRequest adds units to a product.
type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// CreateCustomerRequest is the request to register a credit customer.
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Company string `json:"company" validate:"max=120"`
}

// AmountRequest carries a money amount (charges, settlements).
type AmountRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

// CartLineRequest is one line of a client-held cart.
type CartLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// QuoteRequest prices a cart without recording anything.
type QuoteRequest struct {
	Lines    []CartLineRequest `json:"lines" validate:"dive"`
	Tendered string            `json:"tendered,omitempty" validate:"omitempty,numeric"`
}

// FinalizeSaleRequest records a cart as a sale.
type FinalizeSaleRequest struct {
	Lines         []CartLineRequest `json:"lines" validate:"dive"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	CustomerID    *string           `json:"customer_id,omitempty"`
	Tendered      string            `json:"tendered,omitempty" validate:"omitempty,numeric"`
}

// CreateExpenseRequest records money taken out of the till.
type CreateExpenseRequest struct {
	Description string `json:"description" validate:"required,max=200"`
	Amount      string `json:"amount" validate:"required,numeric"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Cost      string `json:"cost"`
	Price     string `json:"price"`
	Stock     int    `json:"stock"`
	CreatedAt string `json:"created_at"`
}

// CustomerDTO represents a credit customer.
type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company,omitempty"`
	Debt      string `json:"debt"`
	CreatedAt string `json:"created_at"`
}

// SaleDTO represents a recorded sale.
type SaleDTO struct {
	ID            string  `json:"id"`
	At            string  `json:"at"`
	CustomerID    *string `json:"customer_id"`
	Total         string  `json:"total"`
	Cost          *string `json:"cost"`
	PaymentMethod string  `json:"payment_method"`
	Detail        string  `json:"detail"`
}

// FinalizeSaleResponse is returned after a sale is recorded.
type FinalizeSaleResponse struct {
	Sale   SaleDTO `json:"sale"`
	Change *string `json:"change,omitempty"`
}

// LineItemDTO is one priced cart line.
type LineItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// QuoteDTO is a priced cart.
type QuoteDTO struct {
	Lines  []LineItemDTO `json:"lines"`
	Total  string        `json:"total"`
	Detail string        `json:"detail"`
	Change *string       `json:"change,omitempty"`
}

// SettlementDTO represents a payment against a customer's debt.
type SettlementDTO struct {
	ID         string `json:"id"`
	At         string `json:"at"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
}

// SettlementResponse pairs a settlement with the customer's new state.
type SettlementResponse struct {
	Settlement SettlementDTO `json:"settlement"`
	Customer   CustomerDTO   `json:"customer"`
}

// StatementDTO is a customer's credit history.
type StatementDTO struct {
	Customer    CustomerDTO     `json:"customer"`
	CreditSales []SaleDTO       `json:"credit_sales"`
	Settlements []SettlementDTO `json:"settlements"`
	Charged     string          `json:"charged"`
	Settled     string          `json:"settled"`
	Balance     string          `json:"balance"`
	Drift       string          `json:"drift"`
}

// ExpenseDTO represents an expense.
type ExpenseDTO struct {
	ID          string `json:"id"`
	At          string `json:"at"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// ProfitDTO is the report's profit figure. When Estimated is true the
// amount includes margin-ratio estimates and must be shown as such.
type ProfitDTO struct {
	Amount        string `json:"amount"`
	Estimated     bool   `json:"estimated"`
	MarginRatio   string `json:"margin_ratio"`
	CostedSales   int    `json:"costed_sales"`
	UncostedSales int    `json:"uncosted_sales"`
}

// ReportDTO is the daily cash report.
type ReportDTO struct {
	Date                string          `json:"date"`
	From                string          `json:"from"`
	To                  string          `json:"to"`
	TotalSales          string          `json:"total_sales"`
	CashSales           string          `json:"cash_sales"`
	CreditSales         string          `json:"credit_sales"`
	TotalExpenses       string          `json:"total_expenses"`
	NetCash             string          `json:"net_cash"`
	SettlementsReceived string          `json:"settlements_received"`
	Profit              ProfitDTO       `json:"profit"`
	Sales               []SaleDTO       `json:"sales"`
	Expenses            []ExpenseDTO    `json:"expenses"`
	Settlements         []SettlementDTO `json:"settlements"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d decimal.Decimal) *string {
	s := money(d)
	return &s
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func toProductDTO(p ledger.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Cost:      money(p.Cost),
		Price:     money(p.Price),
		Stock:     p.Stock,
		CreatedAt: stamp(p.CreatedAt),
	}
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Company:   c.Company,
		Debt:      money(c.Debt),
		CreatedAt: stamp(c.CreatedAt),
	}
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            string(s.ID),
		At:            stamp(s.At),
		Total:         money(s.Total),
		PaymentMethod: string(s.Method),
		Detail:        s.Detail,
	}
	if s.CustomerID != nil {
		id := string(*s.CustomerID)
		dto.CustomerID = &id
	}
	if s.Cost != nil {
		dto.Cost = moneyPtr(*s.Cost)
	}
	return dto
}

func toSaleDTOs(sales []ledger.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	return dtos
}

func toSettlementDTO(s ledger.Settlement) SettlementDTO {
	return SettlementDTO{
		ID:         string(s.ID),
		At:         stamp(s.At),
		CustomerID: string(s.CustomerID),
		Amount:     money(s.Amount),
	}
}

func toSettlementDTOs(settlements []ledger.Settlement) []SettlementDTO {
	dtos := make([]SettlementDTO, len(settlements))
	for i, s := range settlements {
		dtos[i] = toSettlementDTO(s)
	}
	return dtos
}

func toExpenseDTO(e ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          string(e.ID),
		At:          stamp(e.At),
		Description: e.Description,
		Amount:      money(e.Amount),
	}
}

func toQuoteDTO(cart *ledger.Cart) QuoteDTO {
	lines := cart.Lines()
	dto := QuoteDTO{
		Lines:  make([]LineItemDTO, len(lines)),
		Total:  money(cart.Total()),
		Detail: cart.Detail(),
	}
	for i, l := range lines {
		dto.Lines[i] = LineItemDTO{
			ProductID: string(l.ProductID),
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPrice),
			Subtotal:  money(l.Subtotal()),
		}
	}
	return dto
}

func toStatementDTO(st ledger.Statement) StatementDTO {
	return StatementDTO{
		Customer:    toCustomerDTO(st.Customer),
		CreditSales: toSaleDTOs(st.CreditSales),
		Settlements: toSettlementDTOs(st.Settlements),
		Charged:     money(st.Charged),
		Settled:     money(st.Settled),
		Balance:     money(st.Balance()),
		Drift:       money(st.Drift()),
	}
}

func toReportDTO(rep ledger.Report) ReportDTO {
	dto := ReportDTO{
		Date:                rep.From.Format("2006-01-02"),
		From:                stamp(rep.From),
		To:                  stamp(rep.To),
		TotalSales:          money(rep.TotalSales),
		CashSales:           money(rep.CashSales),
		CreditSales:         money(rep.CreditSales),
		TotalExpenses:       money(rep.TotalExpenses),
		NetCash:             money(rep.NetCash),
		SettlementsReceived: money(rep.SettlementsReceived),
		Profit: ProfitDTO{
			Amount:        money(rep.Profit.Amount),
			Estimated:     rep.Profit.Estimated,
			MarginRatio:   rep.Profit.MarginRatio.String(),
			CostedSales:   rep.Profit.CostedSales,
			UncostedSales: rep.Profit.UncostedSales,
		},
		Sales:       toSaleDTOs(rep.Sales),
		Expenses:    make([]ExpenseDTO, len(rep.Expenses)),
		Settlements: toSettlementDTOs(rep.Settlements),
	}
	for i, e := range rep.Expenses {
		dto.Expenses[i] = toExpenseDTO(e)
	}
	return dto
}
