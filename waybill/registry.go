/*
Package waybill models in-flight transfers between two warehouses.

LIFECYCLE:

	              Create (debit source)
	                     │
	                     ▼
	               ┌───────────┐
	               │ InTransit │
	               └───────────┘
	        Receive │         │ Cancel
	 (credit dest.) ▼         ▼ (credit source back)
	        ┌──────────┐   ┌───────────┐
	        │ Received │   │ Cancelled │
	        └──────────┘   └───────────┘

STOCK ACCOUNTING:
  The source is debited when the waybill is created (transfer-out), so the
  goods are never counted in two places. Receive credits the destination
  (transfer-in); Cancel credits the source back (return). Create then
  Receive moves the quantity; Create then Cancel nets to zero.

CONCURRENCY:
  Transitions on one waybill are serialized by a per-id lock held across
  the status check, the ledger posting and the status write. If the ledger
  rejects the posting the waybill is left untouched.
*/
package waybill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
)

type Status string

const (
	StatusInTransit Status = "in_transit"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

type Waybill struct {
	ID              string         `json:"id"`
	Number          string         `json:"number"`
	FromWarehouseID string         `json:"from_warehouse_id"`
	ToWarehouseID   string         `json:"to_warehouse_id"`
	ProductID       string         `json:"product_id"`
	Quantity        int64          `json:"quantity"`
	Status          Status         `json:"status"`
	Note            string         `json:"note,omitempty"`
	IssuedBy        core.ActorRef  `json:"issued_by"`
	IssuedAt        time.Time      `json:"issued_at"`
	ReceivedBy      *core.ActorRef `json:"received_by,omitempty"`
	ReceivedAt      *time.Time     `json:"received_at,omitempty"`
	CancelledBy     *core.ActorRef `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
}

func (w *Waybill) clone() Waybill {
	c := *w
	if w.ReceivedBy != nil {
		by, at := *w.ReceivedBy, *w.ReceivedAt
		c.ReceivedBy, c.ReceivedAt = &by, &at
	}
	if w.CancelledBy != nil {
		by, at := *w.CancelledBy, *w.CancelledAt
		c.CancelledBy, c.CancelledAt = &by, &at
	}
	return c
}

// CreateInput is a validated request to ship goods.
type CreateInput struct {
	FromWarehouseID string
	ToWarehouseID   string
	ProductID       string
	Quantity        int64
	Note            string
}

// Options configures a Registry.
type Options struct {
	Logger zerolog.Logger
	Clock  core.Clock
}

// Registry owns every waybill.
type Registry struct {
	ledger   *stock.Ledger
	activity *audit.Log
	log      zerolog.Logger
	clock    core.Clock
	numbers  *core.Sequence
	locks    *core.KeyedMutex

	mu    sync.RWMutex
	byID  map[string]*Waybill
	order []string
}

// NewRegistry creates an empty registry posting to ledger.
func NewRegistry(ledger *stock.Ledger, activity *audit.Log, opts Options) *Registry {
	return &Registry{
		ledger:   ledger,
		activity: activity,
		log:      opts.Logger.With().Str("component", "waybill").Logger(),
		clock:    opts.Clock.OrDefault(),
		numbers:  core.NewSequence("WB"),
		locks:    core.NewKeyedMutex(),
		byID:     make(map[string]*Waybill),
	}
}

// Create issues a waybill and reserves the quantity at the source.
func (r *Registry) Create(ctx context.Context, in CreateInput, actor core.Actor) (Waybill, error) {
	if in.FromWarehouseID == "" || in.ToWarehouseID == "" || in.ProductID == "" {
		return Waybill{}, core.Invalid("", "from_warehouse_id, to_warehouse_id and product_id are required")
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return Waybill{}, core.Invalid("to_warehouse_id", "must differ from from_warehouse_id")
	}
	if in.Quantity <= 0 {
		return Waybill{}, core.Invalid("quantity", "must be positive")
	}
	if _, err := r.ledger.Catalog().Warehouse(in.ToWarehouseID); err != nil {
		return Waybill{}, err
	}

	w := &Waybill{
		ID:              core.NewID(),
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		Status:          StatusInTransit,
		Note:            in.Note,
		IssuedBy:        actor.Ref,
	}
	if _, err := r.ledger.Post(ctx, []stock.Entry{{
		WarehouseID: in.FromWarehouseID,
		ProductID:   in.ProductID,
		Delta:       -in.Quantity,
		Kind:        stock.MoveTransferOut,
		ReferenceID: w.ID,
		Note:        in.Note,
	}}, actor); err != nil {
		return Waybill{}, err
	}
	w.Number = r.numbers.Next()
	w.IssuedAt = r.clock()

	r.mu.Lock()
	r.byID[w.ID] = w
	r.order = append(r.order, w.ID)
	out := w.clone()
	r.mu.Unlock()

	r.record(ctx, actor, "waybill.create", out, "in transit")
	r.log.Info().Str("waybill", out.Number).Int64("quantity", out.Quantity).Msg("waybill issued")
	return out, nil
}

// Receive books the goods into the destination warehouse.
func (r *Registry) Receive(ctx context.Context, id string, actor core.Actor) (Waybill, error) {
	return r.transition(ctx, id, actor, "receive", func(w *Waybill) stock.Entry {
		return stock.Entry{
			WarehouseID: w.ToWarehouseID,
			ProductID:   w.ProductID,
			Delta:       w.Quantity,
			Kind:        stock.MoveTransferIn,
			ReferenceID: w.ID,
		}
	}, func(w *Waybill, at time.Time) {
		by := actor.Ref
		w.Status = StatusReceived
		w.ReceivedBy, w.ReceivedAt = &by, &at
	})
}

// Cancel returns the reserved goods to the source warehouse.
func (r *Registry) Cancel(ctx context.Context, id string, actor core.Actor) (Waybill, error) {
	return r.transition(ctx, id, actor, "cancel", func(w *Waybill) stock.Entry {
		return stock.Entry{
			WarehouseID: w.FromWarehouseID,
			ProductID:   w.ProductID,
			Delta:       w.Quantity,
			Kind:        stock.MoveReturn,
			ReferenceID: w.ID,
		}
	}, func(w *Waybill, at time.Time) {
		by := actor.Ref
		w.Status = StatusCancelled
		w.CancelledBy, w.CancelledAt = &by, &at
	})
}

func (r *Registry) transition(
	ctx context.Context,
	id string,
	actor core.Actor,
	action string,
	posting func(*Waybill) stock.Entry,
	apply func(*Waybill, time.Time),
) (Waybill, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	r.mu.RLock()
	w, ok := r.byID[id]
	var snapshot Waybill
	if ok {
		snapshot = w.clone()
	}
	r.mu.RUnlock()
	if !ok {
		return Waybill{}, core.NotFound("waybill", id)
	}
	if snapshot.Status != StatusInTransit {
		return Waybill{}, &core.TransitionError{Resource: "waybill", ID: snapshot.Number, Action: action, From: string(snapshot.Status)}
	}

	if _, err := r.ledger.Post(ctx, []stock.Entry{posting(&snapshot)}, actor); err != nil {
		return Waybill{}, err
	}

	r.mu.Lock()
	apply(w, r.clock())
	out := w.clone()
	r.mu.Unlock()

	r.record(ctx, actor, "waybill."+action, out, string(out.Status))
	return out, nil
}

func (r *Registry) record(ctx context.Context, actor core.Actor, action string, w Waybill, state string) {
	if r.activity == nil {
		return
	}
	catalog := r.ledger.Catalog()
	product, from, to := w.ProductID, w.FromWarehouseID, w.ToWarehouseID
	if p, err := catalog.Product(w.ProductID); err == nil {
		product = p.Name
	}
	if wh, err := catalog.Warehouse(w.FromWarehouseID); err == nil {
		from = wh.Name
	}
	if wh, err := catalog.Warehouse(w.ToWarehouseID); err == nil {
		to = wh.Name
	}
	r.activity.Append(ctx, actor.Ref, action,
		fmt.Sprintf("Waybill %s: %d x %s from %s to %s (%s)", w.Number, w.Quantity, product, from, to, state))
}

// Get returns a waybill by id.
func (r *Registry) Get(id string) (Waybill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return Waybill{}, core.NotFound("waybill", id)
	}
	return w.clone(), nil
}

// List returns every waybill, newest first.
func (r *Registry) List() []Waybill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Waybill, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.byID[r.order[i]].clone())
	}
	return out
}
