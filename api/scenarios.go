/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with a small
	food stall's data. Everything goes through the ledger engine, so the
	seeded state obeys the same rules as real use.

AVAILABLE SCENARIOS:

	comideria-basics:  Menu and two credit customers, no sales yet
	busy-day:          A day of cash and credit sales, an expense, an abono
	fiado-collection:  Customers with outstanding debt, ready to collect

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register products with cost, price and stock
 3. Register customers
 4. Optionally ring up sales, expenses and settlements

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-day"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/comideria/pos-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "comideria-basics",
		Name:        "Comidería Basics",
		Description: "Burger, fries, empanadas and soda on the menu; Alice and Bruno can buy on credit",
	},
	{
		ID:          "busy-day",
		Name:        "Busy Day",
		Description: "Cash and credit sales, an ice run paid from the till, and a partial payment from Bruno",
	},
	{
		ID:          "fiado-collection",
		Name:        "Fiado Collection",
		Description: "Three customers owe money; one already paid part of it",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "comideria-basics":
		load = func(ctx context.Context) error { _, err := h.loadBasics(ctx); return err }
	case "busy-day":
		load = h.loadBusyDay
	case "fiado-collection":
		load = h.loadFiadoCollection
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		h.writeLedgerError(w, r, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		h.writeLedgerError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeLedgerError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// menu is what a basics load returns, keyed by product name and customer name.
type menu struct {
	products  map[string]ledger.Product
	customers map[string]ledger.Customer
}

func (h *Handler) loadBasics(ctx context.Context) (*menu, error) {
	m := &menu{
		products:  make(map[string]ledger.Product),
		customers: make(map[string]ledger.Customer),
	}

	items := []ledger.NewProduct{
		{Name: "Burger", Cost: ledger.MustParseMoney("3.00"), Price: ledger.MustParseMoney("5.00"), InitialStock: 10},
		{Name: "Fries", Cost: ledger.MustParseMoney("1.00"), Price: ledger.MustParseMoney("2.50"), InitialStock: 2},
		{Name: "Empanada", Cost: ledger.MustParseMoney("0.80"), Price: ledger.MustParseMoney("1.50"), InitialStock: 24},
		{Name: "Soda", Cost: ledger.MustParseMoney("0.40"), Price: ledger.MustParseMoney("1.25"), InitialStock: 30},
	}
	for _, np := range items {
		p, err := h.Engine.Inventory.AddProduct(ctx, np)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", np.Name, err)
		}
		m.products[p.Name] = p
	}

	for _, c := range []struct{ name, company string }{
		{"Alice", "Taller Norte"},
		{"Bruno", ""},
	} {
		cust, err := h.Engine.Credit.Register(ctx, c.name, c.company)
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", c.name, err)
		}
		m.customers[cust.Name] = cust
	}

	return m, nil
}

func (h *Handler) loadBusyDay(ctx context.Context) error {
	m, err := h.loadBasics(ctx)
	if err != nil {
		return err
	}

	bruno := m.customers["Bruno"].ID
	sales := []struct {
		lines    []any
		method   ledger.PaymentMethod
		customer *ledger.CustomerID
	}{
		{[]any{"Burger", 3}, ledger.PaymentCash, nil},
		{[]any{"Empanada", 6, "Soda", 2}, ledger.PaymentCash, nil},
		{[]any{"Burger", 2, "Fries", 1}, ledger.PaymentCredit, &bruno},
		{[]any{"Soda", 4}, ledger.PaymentCash, nil},
	}
	for i, s := range sales {
		if err := h.ringUp(ctx, m, s.lines, s.method, s.customer); err != nil {
			return fmt.Errorf("sale %d: %w", i+1, err)
		}
	}

	if _, err := h.Engine.Expenses.Record(ctx, "Ice", ledger.MustParseMoney("5.00")); err != nil {
		return err
	}
	if _, err := h.Engine.Credit.Settle(ctx, bruno, ledger.MustParseMoney("6.00")); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadFiadoCollection(ctx context.Context) error {
	m, err := h.loadBasics(ctx)
	if err != nil {
		return err
	}

	carla, err := h.Engine.Credit.Register(ctx, "Carla", "Ferretería Sur")
	if err != nil {
		return err
	}
	m.customers[carla.Name] = carla

	alice := m.customers["Alice"].ID
	bruno := m.customers["Bruno"].ID
	charges := []struct {
		lines    []any
		customer ledger.CustomerID
	}{
		{[]any{"Burger", 2}, alice},
		{[]any{"Empanada", 4, "Soda", 2}, alice},
		{[]any{"Burger", 1, "Soda", 1}, bruno},
		{[]any{"Empanada", 8}, carla.ID},
	}
	for i, c := range charges {
		customer := c.customer
		if err := h.ringUp(ctx, m, c.lines, ledger.PaymentCredit, &customer); err != nil {
			return fmt.Errorf("credit sale %d: %w", i+1, err)
		}
	}

	_, err = h.Engine.Credit.Settle(ctx, carla.ID, ledger.MustParseMoney("5.00"))
	return err
}

// ringUp builds a cart from name/quantity pairs and finalizes it.
func (h *Handler) ringUp(ctx context.Context, m *menu, lines []any, method ledger.PaymentMethod, customer *ledger.CustomerID) error {
	cart := &ledger.Cart{}
	for i := 0; i < len(lines); i += 2 {
		name := lines[i].(string)
		p, err := h.Engine.Inventory.Get(ctx, m.products[name].ID)
		if err != nil {
			return err
		}
		if err := cart.AddLine(p, lines[i+1].(int)); err != nil {
			return err
		}
	}
	_, err := h.Engine.Checkout.Finalize(ctx, cart, method, customer)
	return err
}
