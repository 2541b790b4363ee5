// Package invoice records sales out of a warehouse and the payments made
// against them.
//
// Creating an invoice debits every item from the selling warehouse in a
// single ledger posting, so an invoice either exists with all of its sale
// movements or not at all. Payments are a sub-ledger on the invoice: the
// status is always derived from Total minus the sum of payments.
package invoice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
)

type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal is Quantity x UnitPrice.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

type Payment struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	RecordedBy core.ActorRef   `json:"recorded_by"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type Invoice struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	CustomerID  string          `json:"customer_id"`
	WarehouseID string          `json:"warehouse_id"`
	Items       []Item          `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	Payments    []Payment       `json:"payments"`
	IssuedBy    core.ActorRef   `json:"issued_by"`
	IssuedAt    time.Time       `json:"issued_at"`
}

// Paid is the sum of all payments.
func (inv Invoice) Paid() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range inv.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// BalanceDue is Total minus Paid. It goes negative on overpayment.
func (inv Invoice) BalanceDue() decimal.Decimal {
	return inv.Total.Sub(inv.Paid())
}

func (inv *Invoice) clone() Invoice {
	c := *inv
	c.Items = append([]Item(nil), inv.Items...)
	c.Payments = append([]Payment(nil), inv.Payments...)
	return c
}

// =============================================================================
// INPUTS
// =============================================================================

// ItemInput is one requested line. A nil UnitPrice takes the catalog price.
type ItemInput struct {
	ProductID string
	Quantity  int64
	UnitPrice *decimal.Decimal
}

type CreateInput struct {
	CustomerID  string
	WarehouseID string
	Items       []ItemInput
}

type PaymentInput struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
}

// =============================================================================
// REGISTRY
// =============================================================================

type Options struct {
	Logger zerolog.Logger
	Clock  core.Clock
}

type Registry struct {
	ledger   *stock.Ledger
	activity *audit.Log
	log      zerolog.Logger
	clock    core.Clock
	numbers  *core.Sequence
	locks    *core.KeyedMutex

	mu    sync.RWMutex
	byID  map[string]*Invoice
	order []string
}

func NewRegistry(ledger *stock.Ledger, activity *audit.Log, opts Options) *Registry {
	return &Registry{
		ledger:   ledger,
		activity: activity,
		log:      opts.Logger.With().Str("component", "invoice").Logger(),
		clock:    opts.Clock.OrDefault(),
		numbers:  core.NewSequence("INV"),
		locks:    core.NewKeyedMutex(),
		byID:     make(map[string]*Invoice),
	}
}

// Create prices the items, debits them from the warehouse and stores the
// invoice as unpaid.
func (r *Registry) Create(ctx context.Context, in CreateInput, actor core.Actor) (Invoice, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return Invoice{}, core.Invalid("customer_id", "is required")
	}
	if in.WarehouseID == "" {
		return Invoice{}, core.Invalid("warehouse_id", "is required")
	}
	if len(in.Items) == 0 {
		return Invoice{}, core.Invalid("items", "at least one item is required")
	}

	catalog := r.ledger.Catalog()
	inv := &Invoice{
		ID:          core.NewID(),
		CustomerID:  in.CustomerID,
		WarehouseID: in.WarehouseID,
		Items:       make([]Item, 0, len(in.Items)),
		Total:       decimal.Zero,
		Status:      StatusUnpaid,
		IssuedBy:    actor.Ref,
	}
	entries := make([]stock.Entry, 0, len(in.Items))
	names := make([]string, 0, len(in.Items))
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return Invoice{}, core.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		product, err := catalog.Product(it.ProductID)
		if err != nil {
			return Invoice{}, err
		}
		price := product.UnitPrice
		if it.UnitPrice != nil {
			if it.UnitPrice.IsNegative() {
				return Invoice{}, core.Invalid(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
			}
			price = *it.UnitPrice
		}
		item := Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price}
		inv.Items = append(inv.Items, item)
		inv.Total = inv.Total.Add(item.LineTotal())
		names = append(names, fmt.Sprintf("%d x %s", it.Quantity, product.Name))
		entries = append(entries, stock.Entry{
			WarehouseID: in.WarehouseID,
			ProductID:   it.ProductID,
			Delta:       -it.Quantity,
			Kind:        stock.MoveSale,
			ReferenceID: inv.ID,
		})
	}

	if _, err := r.ledger.Post(ctx, entries, actor); err != nil {
		return Invoice{}, err
	}
	inv.Number = r.numbers.Next()
	inv.IssuedAt = r.clock()

	r.mu.Lock()
	r.byID[inv.ID] = inv
	r.order = append(r.order, inv.ID)
	out := inv.clone()
	r.mu.Unlock()

	r.record(ctx, actor, "invoice.create", fmt.Sprintf("Invoice %s for customer %s: %s, total %s",
		out.Number, out.CustomerID, strings.Join(names, ", "), out.Total.StringFixed(2)))
	r.log.Info().Str("invoice", out.Number).Str("total", out.Total.String()).Msg("invoice issued")
	return out, nil
}

// RecordPayment appends a payment and recomputes the status. Payments on a
// paid invoice are still recorded; the invoice stays paid with a credit
// balance.
func (r *Registry) RecordPayment(ctx context.Context, id string, in PaymentInput, actor core.Actor) (Invoice, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	r.mu.RLock()
	inv, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Invoice{}, core.NotFound("invoice", id)
	}
	if !in.Amount.IsPositive() {
		return Invoice{}, core.Invalid("amount", "must be greater than zero")
	}
	if strings.TrimSpace(in.Method) == "" {
		return Invoice{}, core.Invalid("method", "is required")
	}

	p := Payment{
		ID:         core.NewID(),
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  in.Reference,
		RecordedBy: actor.Ref,
		RecordedAt: r.clock(),
	}

	r.mu.Lock()
	inv.Payments = append(inv.Payments, p)
	if inv.BalanceDue().IsPositive() {
		inv.Status = StatusPartial
	} else {
		inv.Status = StatusPaid
	}
	out := inv.clone()
	r.mu.Unlock()

	r.record(ctx, actor, "invoice.payment", fmt.Sprintf("Invoice %s: payment of %s via %s, balance due %s (%s)",
		out.Number, p.Amount.StringFixed(2), p.Method, out.BalanceDue().StringFixed(2), out.Status))
	return out, nil
}

func (r *Registry) record(ctx context.Context, actor core.Actor, action, detail string) {
	if r.activity != nil {
		r.activity.Append(ctx, actor.Ref, action, detail)
	}
}

func (r *Registry) Get(id string) (Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.byID[id]
	if !ok {
		return Invoice{}, core.NotFound("invoice", id)
	}
	return inv.clone(), nil
}

// List returns every invoice, newest first.
func (r *Registry) List() []Invoice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Invoice, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.byID[r.order[i]].clone())
	}
	return out
}
