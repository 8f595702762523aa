/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the till frontend

ROUTE GROUPS:
  /api/products/*       Inventory
  /api/customers/*      Credit customers (fiado)
  /api/cart/*           Cart pricing
  /api/sales/*          Sales
  /api/expenses         Till expenses
  /api/reports/*        Daily cash report
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Post("/{id}/restock", h.RestockProduct)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/statement", h.GetStatement)
			r.Post("/{id}/charges", h.ChargeCustomer)
			r.Post("/{id}/settlements", h.SettleDebt)
			r.Post("/{id}/settle-all", h.SettleAllDebt)
		})

		r.Post("/cart/quote", h.QuoteCart)

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.FinalizeSale)
			r.Get("/{id}", h.GetSale)
		})

		r.Post("/expenses", h.CreateExpense)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.GetDailyReport)
			r.Get("/daily/export", h.ExportDailyReport)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				entry := logger.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request failed")
					return
				}
				entry.Info("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
