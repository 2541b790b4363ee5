/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in request logs
  2. RealIP:        Honour X-Forwarded-For behind a proxy
  3. RequestLogger: zerolog access log (logging package)
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health           Liveness (no actor required)
  /api/warehouses       Catalog
  /api/products         Catalog
  /api/stock/*          Balances, adjustments, transfers, export
  /api/movements/*      Movement log and export
  /api/waybills/*       Inter-warehouse shipments
  /api/invoices/*       Sales and payments
  /api/expenses/*       Expense approval workflow
  /api/activity         Activity log
  /api/users/*          Directory lookups
  /api/admin/*          Reconciliation

SECURITY NOTE:
  Every route except /api/health requires an X-Actor-ID header naming a
  directory user. The header is trusted as-is; put the service behind an
  authenticating proxy in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - actor.go: RequireActor middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/logging"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor(h.Directory))

			// Catalog routes
			r.Get("/warehouses", h.ListWarehouses)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.UpsertProduct)
			})

			// Stock routes
			r.Route("/stock", func(r chi.Router) {
				r.Get("/", h.ListStock)
				r.Get("/export", h.ExportStock)
				r.Post("/adjust", h.AdjustStock)
				r.Post("/transfer", h.TransferStock)
				r.Get("/{warehouseID}/{productID}", h.GetStock)
			})
			r.Route("/movements", func(r chi.Router) {
				r.Get("/", h.ListMovements)
				r.Get("/export", h.ExportMovements)
			})

			// Waybill routes
			r.Route("/waybills", func(r chi.Router) {
				r.Get("/", h.ListWaybills)
				r.Post("/", h.CreateWaybill)
				r.Get("/{id}", h.GetWaybill)
				r.Post("/{id}/receive", h.ReceiveWaybill)
				r.Post("/{id}/cancel", h.CancelWaybill)
			})

			// Invoice routes
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.ListInvoices)
				r.Post("/", h.CreateInvoice)
				r.Get("/{id}", h.GetInvoice)
				r.Post("/{id}/payments", h.RecordPayment)
			})

			// Expense routes
			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.SubmitExpense)
				r.Get("/{id}", h.GetExpense)
				r.Post("/{id}/approve", h.ApproveExpense)
				r.Post("/{id}/reject", h.RejectExpense)
				r.Post("/{id}/revoke", h.RevokeExpense)
				r.Post("/{id}/return", h.ReturnExpense)
				r.Post("/{id}/pay", h.PayExpense)
			})

			r.Get("/activity", h.ListActivity)
			r.Get("/users", h.ListUsers)
			r.Post("/users", h.AddUser)
			r.Get("/users/delegates", h.ListDelegates)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Post("/reconcile", h.Reconcile)
				r.Get("/reconcile/runs", h.ListReconciliationRuns)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "not_found"})
	})

	return r
}
