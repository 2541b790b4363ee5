/*
handlers.go - HTTP API handlers for the warehouse system

PURPOSE:
  Exposes the stock ledger, waybills, invoices and the expense workflow
  as a JSON API. Handlers parse and validate the request, resolve the
  actor, call exactly one core operation and serialize the result.

ENDPOINTS:
  Catalog:
    GET    /api/warehouses                List warehouses
    GET    /api/products                  List products
    POST   /api/products                  Create or update a product (admin)

  Stock (stock_handlers.go):
    GET    /api/stock                     All balances
    GET    /api/stock/{warehouseID}/{productID}
    POST   /api/stock/adjust              Single-key adjustment
    POST   /api/stock/transfer            Immediate transfer
    GET    /api/stock/export              Balances as .xlsx
    GET    /api/movements                 Movement log (filters)
    GET    /api/movements/export          Movement log as .xlsx

  Waybills, invoices, expenses: see their *_handlers.go files.

  Admin:
    GET    /api/activity                  Activity log, newest first
    GET    /api/users                     Directory users
    POST   /api/users                     Add or replace a user (admin)
    GET    /api/users/delegates           Finance delegates for approval
    POST   /api/admin/reconcile           Rebuild balances from movements
    GET    /api/admin/reconcile/runs      Past reconciliation runs

REQUEST FLOW:
  1. RequireActor resolves X-Actor-ID (401 if missing/unknown)
  2. Decode JSON and run validator tags (400 with field map)
  3. Call the core operation
  4. Serialize the result, or map the error kind (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error kind to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/expense"
	"github.com/mellovesfromage/warehouse-system/identity"
	"github.com/mellovesfromage/warehouse-system/invoice"
	"github.com/mellovesfromage/warehouse-system/stock"
	"github.com/mellovesfromage/warehouse-system/waybill"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is the database liveness check used by Health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the core components the API exposes.
type Services struct {
	DB         Pinger // optional
	Catalog    *stock.Catalog
	Ledger     *stock.Ledger
	Waybills   *waybill.Registry
	Invoices   *invoice.Registry
	Expenses   *expense.Workflow
	Activity   *audit.Log
	Directory  *identity.Directory
	Reconciler *ReconcileScheduler
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	log      zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a handler over s.
func NewHandler(s Services, logger zerolog.Logger) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Handler{
		Services: s,
		log:      logger.With().Str("component", "api").Logger(),
		validate: v,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	respondError(w, h.log, err)
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return h.validate.Struct(dst)
}

// decodeOptional reads a JSON body if one was sent.
func decodeOptional(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func queryLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.Invalid("limit", "must be a non-negative integer")
	}
	return n, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and the active stock policy. A failing database
// ping answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"policy": h.Ledger.Policy(),
	})
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.Warehouses())
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.Products())
}

// UpsertProduct creates a product, or updates it when id is given.
func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	actor := actorFrom(r.Context())
	p, err := h.Catalog.UpsertProduct(stock.ProductInput{
		ID: req.ID, Name: req.Name, SKU: req.SKU, UnitPrice: req.UnitPrice,
	}, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.Activity.Append(r.Context(), actor.Ref, "product.upsert", fmt.Sprintf("%s (%s) at %s", p.Name, p.SKU, p.UnitPrice.StringFixed(2)))
	writeJSON(w, http.StatusOK, p)
}

// =============================================================================
// ACTIVITY & USERS
// =============================================================================

// ListActivity returns the activity log newest first, optionally limited.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 0)
	if err != nil {
		h.fail(w, err)
		return
	}
	entries := h.Activity.List()
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Directory.Users())
}

// AddUser adds a user to the directory, or replaces the one with the same id.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.Admin {
		h.fail(w, &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "manage users", Need: "admin"})
		return
	}
	var req UserRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	u := identity.User{
		ID:              req.ID,
		Username:        req.Username,
		Name:            req.Name,
		Role:            identity.Role(req.Role),
		FinanceDelegate: req.FinanceDelegate,
		WarehouseAccess: req.WarehouseAccess,
	}
	if err := h.Directory.Add(u); err != nil {
		h.fail(w, err)
		return
	}
	h.Activity.Append(r.Context(), actor.Ref, "user.add", fmt.Sprintf("%s (%s, %s)", u.Name, u.ID, u.Role))
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) ListDelegates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Directory.FinanceDelegates())
}

// =============================================================================
// ADMIN
// =============================================================================

// Reconcile rebuilds every cached balance from the movement log.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.Admin {
		h.fail(w, &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "reconcile stock", Need: "admin"})
		return
	}
	report, err := h.Reconciler.RunNow(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.Activity.Append(r.Context(), actor.Ref, "stock.reconcile",
		fmt.Sprintf("replayed %d movements over %d balances, %d drifted", report.Movements, report.Keys, len(report.Drift)))
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		h.fail(w, err)
		return
	}
	runs, err := h.Reconciler.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// resolveDelegate checks that id names a finance delegate.
func (h *Handler) resolveDelegate(id string) (core.ActorRef, error) {
	if strings.TrimSpace(id) == "" {
		return core.ActorRef{}, nil
	}
	u, err := h.Directory.User(id)
	if err != nil {
		return core.ActorRef{}, core.Invalid("delegate_to", "unknown user "+id)
	}
	if !u.FinanceDelegate {
		return core.ActorRef{}, core.Invalid("delegate_to", u.Name+" is not a finance delegate")
	}
	return u.Actor().Ref, nil
}
