/*
handlers.go - HTTP API handlers for the POS ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger services.

ENDPOINTS:
  Products:
    GET    /api/products                    List products (?in_stock=true)
    POST   /api/products                    Register product
    GET    /api/products/{id}               Get product
    POST   /api/products/{id}/restock       Add stock

  Customers (fiado):
    GET    /api/customers                   List customers (?with_debt=true)
    POST   /api/customers                   Register customer
    GET    /api/customers/{id}              Get customer
    GET    /api/customers/{id}/statement    Credit sales + settlements
    POST   /api/customers/{id}/charges      Direct debt adjustment
    POST   /api/customers/{id}/settlements  Partial payment (abono)
    POST   /api/customers/{id}/settle-all   Pay off current debt

  Sales:
    POST   /api/cart/quote                  Price a cart, nothing recorded
    POST   /api/sales                       Finalize a cart
    GET    /api/sales/{id}                  Get sale

  Till:
    POST   /api/expenses                    Record expense
    GET    /api/reports/daily               Daily report (?date=YYYY-MM-DD)
    GET    /api/reports/daily/export        Same, as XLSX

CART:
  The cart lives in the client. Quote and finalize receive the full list
  of {product_id, quantity} lines and rebuild a ledger.Cart from current
  product data before doing anything else.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed validation tags
  - 404: Product / customer / sale not found
  - 409: Insufficient stock
  - 422: Other business rejections (bad amount, empty cart, ...)
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or authorization. The server is meant to run on the
  shop's own machine.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/comideria/pos-ledger/export"
	"github.com/comideria/pos-ledger/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears every record in a store. Both ledger stores implement it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.Engine
	Store    Resetter
	Logger   *logrus.Logger
	Location *time.Location

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over engine. store must be the engine's store.
func NewHandler(engine *ledger.Engine, store Resetter, logger *logrus.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		Engine:   engine,
		Store:    store,
		Logger:   logger,
		Location: loc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products, or only those in stock.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := ledger.ProductFilter{InStockOnly: queryBool(r, "in_stock")}
	products, err := h.Engine.Inventory.List(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Inventory.Get(r.Context(), ledger.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// CreateProduct registers a product with its initial stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	cost, ok := parseMoney(w, "cost", req.Cost)
	if !ok {
		return
	}
	price, ok := parseMoney(w, "price", req.Price)
	if !ok {
		return
	}

	p, err := h.Engine.Inventory.AddProduct(r.Context(), ledger.NewProduct{
		Name:         req.Name,
		Cost:         cost,
		Price:        price,
		InitialStock: req.InitialStock,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// RestockProduct adds units to a product's stock.
func (h *Handler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := ledger.ProductID(chi.URLParam(r, "id"))
	if _, err := h.Engine.Inventory.Restock(ctx, id, req.Quantity); err != nil {
		h.writeLedgerError(w, r, "Failed to restock product", err)
		return
	}

	p, err := h.Engine.Inventory.Get(ctx, id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers, or only those who owe money.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	filter := ledger.CustomerFilter{WithDebtOnly: queryBool(r, "with_debt")}
	customers, err := h.Engine.Credit.List(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.Credit.Get(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// CreateCustomer registers a credit customer with zero debt.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Engine.Credit.Register(r.Context(), req.Name, req.Company)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// GetStatement returns the customer's credit sales and settlements.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.Credit.Statement(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// ChargeCustomer adds to a customer's debt without a sale.
func (h *Handler) ChargeCustomer(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseMoney(w, "amount", req.Amount)
	if !ok {
		return
	}

	ctx := r.Context()
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	if _, err := h.Engine.Credit.Charge(ctx, id, amount); err != nil {
		h.writeLedgerError(w, r, "Failed to charge customer", err)
		return
	}
	h.writeCustomer(w, r, id, http.StatusOK)
}

// SettleDebt records a partial payment.
func (h *Handler) SettleDebt(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseMoney(w, "amount", req.Amount)
	if !ok {
		return
	}

	id := ledger.CustomerID(chi.URLParam(r, "id"))
	s, err := h.Engine.Credit.Settle(r.Context(), id, amount)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to record settlement", err)
		return
	}
	h.writeSettlement(w, r, s)
}

// SettleAllDebt pays off whatever the customer owes right now.
func (h *Handler) SettleAllDebt(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	s, err := h.Engine.Credit.SettleAll(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to settle debt", err)
		return
	}
	h.writeSettlement(w, r, s)
}

func (h *Handler) writeSettlement(w http.ResponseWriter, r *http.Request, s ledger.Settlement) {
	c, err := h.Engine.Credit.Get(r.Context(), s.CustomerID)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, SettlementResponse{
		Settlement: toSettlementDTO(s),
		Customer:   toCustomerDTO(c),
	})
}

func (h *Handler) writeCustomer(w http.ResponseWriter, r *http.Request, id ledger.CustomerID, status int) {
	c, err := h.Engine.Credit.Get(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get customer", err)
		return
	}
	writeJSON(w, status, toCustomerDTO(c))
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// QuoteCart prices a cart against current stock without recording it.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.buildCart(r.Context(), req.Lines)
	if err != nil {
		h.writeLedgerError(w, r, "Cart rejected", err)
		return
	}

	quote := toQuoteDTO(cart)
	if req.Tendered != "" {
		change, ok := h.change(w, r, cart, req.Tendered)
		if !ok {
			return
		}
		quote.Change = change
	}
	writeJSON(w, http.StatusOK, quote)
}

// FinalizeSale records the cart as one sale.
func (h *Handler) FinalizeSale(w http.ResponseWriter, r *http.Request) {
	var req FinalizeSaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := ledger.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid payment method", err)
		return
	}

	ctx := r.Context()
	cart, err := h.buildCart(ctx, req.Lines)
	if err != nil {
		h.writeLedgerError(w, r, "Cart rejected", err)
		return
	}

	// Change is worked out before finalizing; Finalize empties the cart.
	var change *string
	if req.Tendered != "" {
		var ok bool
		if change, ok = h.change(w, r, cart, req.Tendered); !ok {
			return
		}
	}

	var customerID *ledger.CustomerID
	if req.CustomerID != nil && *req.CustomerID != "" {
		id := ledger.CustomerID(*req.CustomerID)
		customerID = &id
	}

	sale, err := h.Engine.Checkout.Finalize(ctx, cart, method, customerID)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to finalize sale", err)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"sale_id":        sale.ID,
		"total":          sale.Total.String(),
		"payment_method": sale.Method,
		"request_id":     middleware.GetReqID(ctx),
	}).Info("sale recorded")

	writeJSON(w, http.StatusCreated, FinalizeSaleResponse{Sale: toSaleDTO(sale), Change: change})
}

// GetSale returns a recorded sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Checkout.GetSale(r.Context(), ledger.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(s))
}

// buildCart rebuilds a cart from client lines using current product data.
func (h *Handler) buildCart(ctx context.Context, lines []CartLineRequest) (*ledger.Cart, error) {
	cart := &ledger.Cart{}
	for _, l := range lines {
		p, err := h.Engine.Inventory.Get(ctx, ledger.ProductID(l.ProductID))
		if err != nil {
			return nil, err
		}
		if err := cart.AddLine(p, l.Quantity); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, cart *ledger.Cart, tendered string) (*string, bool) {
	amount, ok := parseMoney(w, "tendered", tendered)
	if !ok {
		return nil, false
	}
	change, err := cart.Change(amount)
	if err != nil {
		h.writeLedgerError(w, r, "Not enough money tendered", err)
		return nil, false
	}
	return moneyPtr(change), true
}

// =============================================================================
// TILL HANDLERS
// =============================================================================

// CreateExpense records money taken out of the till.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseMoney(w, "amount", req.Amount)
	if !ok {
		return
	}

	e, err := h.Engine.Expenses.Record(r.Context(), req.Description, amount)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to record expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(e))
}

// GetDailyReport returns the cash report for ?date=YYYY-MM-DD (default today).
func (h *Handler) GetDailyReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.dailyReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// ExportDailyReport returns the daily report as an XLSX workbook.
func (h *Handler) ExportDailyReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.dailyReport(w, r)
	if !ok {
		return
	}

	customers, err := h.Engine.Credit.List(r.Context(), ledger.CustomerFilter{})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list customers", err)
		return
	}
	names := make(export.CustomerNames, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	// Buffered so a failed build still gets a JSON error response.
	var buf bytes.Buffer
	if err := export.WriteDailyReport(&buf, rep, names, h.Location); err != nil {
		h.writeLedgerError(w, r, "Failed to build spreadsheet", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.FileName(rep.From)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.WithError(err).Error("failed to write spreadsheet")
	}
}

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) (ledger.Report, bool) {
	ctx := r.Context()
	var (
		rep ledger.Report
		err error
	)
	if s := r.URL.Query().Get("date"); s != "" {
		date, perr := time.ParseInLocation("2006-01-02", s, h.Location)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", perr)
			return ledger.Report{}, false
		}
		rep, err = h.Engine.Reports.Daily(ctx, date)
	} else {
		rep, err = h.Engine.Reports.Today(ctx)
	}
	if err != nil {
		h.writeLedgerError(w, r, "Failed to build report", err)
		return ledger.Report{}, false
	}
	return rep, true
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into req and runs its validation tags. It
// writes the 400 response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: "validation", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// writeLedgerError maps ledger error kinds to HTTP statuses. Anything that
// is not a known business rejection is a 500 and gets logged.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).WithError(err).Error(message)
		writeError(w, status, message, err)
		return
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var stockErr *ledger.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = map[string]any{
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		}
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, ledger.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found"
	case errors.Is(err, ledger.ErrSaleNotFound):
		return http.StatusNotFound, "sale_not_found"
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "invalid_quantity"
	case errors.Is(err, ledger.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, ledger.ErrMissingCustomer):
		return http.StatusUnprocessableEntity, "missing_customer"
	case errors.Is(err, ledger.ErrInvalidPaymentMethod):
		return http.StatusUnprocessableEntity, "invalid_payment_method"
	case errors.Is(err, ledger.ErrInsufficientTender):
		return http.StatusUnprocessableEntity, "insufficient_tender"
	case ledger.IsClientError(err):
		return http.StatusUnprocessableEntity, "invalid_input"
	}
	return http.StatusInternalServerError, ""
}

func parseMoney(w http.ResponseWriter, field, s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", field), err)
		return decimal.Zero, false
	}
	return d, true
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
