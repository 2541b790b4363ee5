/*
ledger.go - Stock ledger: balances derived from an append-only movement log

PURPOSE:
  The Ledger answers "how many units of product P are in warehouse W" and
  is the only component allowed to change that answer. Every change is a
  Movement; the per-key balance is a cache of the movement sum that is
  rebuilt from the store on construction and re-verified by Reconcile.

CONCURRENCY:
  Two layers of locking:
  1. Per-key locks (core.KeyedMutex) serialize the read-check-write of a
     StockKey. Multi-key postings lock every key in sorted order.
  2. The commit lock covers read-check-append-publish in Post, so no
     reader sees a movement without its balance, and a Reconcile repair
     cannot be overwritten by a posting that read the old balance.
     Readers take the commit lock shared.

POLICY:
  Permissive (default): debits may drive balances negative.
  Strict: a debit that would leave a balance below zero fails with
  core.ErrInsufficientStock and nothing is appended.

EXAMPLE:
  led, _ := stock.NewLedger(ctx, catalog, store.NewMemory(), stock.Options{})
  mv, err := led.Adjust(ctx, stock.AdjustInput{WarehouseID: "1", ProductID: "7", Delta: 10}, actor)
  fmt.Println(mv.BalanceAfter)

SEE ALSO:
  - store.go: MovementStore contract
  - waybill/registry.go, invoice/registry.go: Callers of Post
*/
package stock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
)

// =============================================================================
// LEDGER
// =============================================================================

// Options configures a Ledger.
type Options struct {
	Policy   Policy
	Activity *audit.Log // optional; receives Adjust/Transfer summaries
	Logger   zerolog.Logger
	Clock    core.Clock
}

type Ledger struct {
	catalog  *Catalog
	store    MovementStore
	policy   Policy
	activity *audit.Log
	log      zerolog.Logger
	clock    core.Clock

	keys *core.KeyedMutex

	commitMu sync.RWMutex
	balances map[StockKey]int64
	seq      int64
}

// NewLedger creates a ledger over store and rebuilds the balance cache from
// whatever movements the store already holds.
func NewLedger(ctx context.Context, catalog *Catalog, store MovementStore, opts Options) (*Ledger, error) {
	policy := opts.Policy
	if policy == "" {
		policy = Permissive
	}
	l := &Ledger{
		catalog:  catalog,
		store:    store,
		policy:   policy,
		activity: opts.Activity,
		log:      opts.Logger.With().Str("component", "ledger").Logger(),
		clock:    opts.Clock.OrDefault(),
		keys:     core.NewKeyedMutex(),
		balances: make(map[StockKey]int64),
	}
	report, err := l.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild balances: %w", err)
	}
	l.log.Info().Int("movements", report.Movements).Int("keys", report.Keys).Str("policy", string(policy)).Msg("ledger ready")
	return l, nil
}

// Policy returns the configured negative-stock policy.
func (l *Ledger) Policy() Policy { return l.policy }

// Catalog returns the catalog the ledger validates against.
func (l *Ledger) Catalog() *Catalog { return l.catalog }

// =============================================================================
// POSTING
// =============================================================================

// Entry is one line of a posting.
type Entry struct {
	WarehouseID string
	ProductID   string
	Delta       int64
	Kind        MovementKind
	ReferenceID string
	Note        string
}

func (e Entry) key() StockKey { return StockKey{WarehouseID: e.WarehouseID, ProductID: e.ProductID} }

// Post applies entries atomically: either every movement is appended and
// every balance updated, or nothing changes. Post does not write to the
// activity log; callers summarize the business operation themselves.
func (l *Ledger) Post(ctx context.Context, entries []Entry, actor core.Actor) ([]Movement, error) {
	if len(entries) == 0 {
		return nil, core.Invalid("entries", "must not be empty")
	}
	lockKeys := make([]string, 0, len(entries))
	for i := range entries {
		if err := l.validateEntry(&entries[i]); err != nil {
			return nil, err
		}
		lockKeys = append(lockKeys, entries[i].key().String())
	}

	unlock := l.keys.LockAll(lockKeys...)
	defer unlock()

	// Reconcile may rewrite cached balances without the per-key locks, so
	// the running totals are read under the commit lock and it stays held
	// until the movements are published.
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	running := make(map[StockKey]int64, len(entries))
	for _, e := range entries {
		k := e.key()
		if _, seen := running[k]; !seen {
			running[k] = l.balances[k]
		}
	}

	now := l.clock()
	movements := make([]Movement, len(entries))
	for i, e := range entries {
		k := e.key()
		if (e.Delta > 0 && running[k] > math.MaxInt64-e.Delta) ||
			(e.Delta < 0 && running[k] < math.MinInt64-e.Delta) {
			return nil, core.Invalid("delta", "out of range")
		}
		next := running[k] + e.Delta
		if l.policy == Strict && e.Delta < 0 && next < 0 {
			return nil, &core.InsufficientStockError{
				WarehouseID: e.WarehouseID,
				ProductID:   e.ProductID,
				Available:   running[k],
				Requested:   -e.Delta,
			}
		}
		running[k] = next
		movements[i] = Movement{
			ID:           core.NewID(),
			Kind:         e.Kind,
			WarehouseID:  e.WarehouseID,
			ProductID:    e.ProductID,
			Delta:        e.Delta,
			BalanceAfter: next,
			Timestamp:    now,
			Actor:        actor.Ref,
			ReferenceID:  e.ReferenceID,
			Note:         e.Note,
		}
	}

	for i := range movements {
		movements[i].Seq = l.seq + int64(i) + 1
	}
	if err := l.store.AppendBatch(ctx, movements); err != nil {
		return nil, fmt.Errorf("failed to record movements: %w", err)
	}
	l.seq += int64(len(movements))
	for _, m := range movements {
		l.balances[m.Key()] = m.BalanceAfter
	}
	return movements, nil
}

func (l *Ledger) validateEntry(e *Entry) error {
	if e.Delta == 0 {
		return core.Invalid("delta", "must not be zero")
	}
	if e.Kind == "" {
		e.Kind = MoveAdjustment
	}
	if !e.Kind.Valid() {
		return core.Invalid("kind", fmt.Sprintf("unknown movement kind %q", e.Kind))
	}
	if _, err := l.catalog.Warehouse(e.WarehouseID); err != nil {
		return err
	}
	if _, err := l.catalog.Product(e.ProductID); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// AdjustInput describes a single-key quantity change.
type AdjustInput struct {
	WarehouseID string
	ProductID   string
	Delta       int64
	Kind        MovementKind // defaults to adjustment
	ReferenceID string
	Note        string
}

// Adjust applies delta to one balance. The returned movement's
// BalanceAfter is the new quantity.
func (l *Ledger) Adjust(ctx context.Context, in AdjustInput, actor core.Actor) (Movement, error) {
	ms, err := l.Post(ctx, []Entry{{
		WarehouseID: in.WarehouseID,
		ProductID:   in.ProductID,
		Delta:       in.Delta,
		Kind:        in.Kind,
		ReferenceID: in.ReferenceID,
		Note:        in.Note,
	}}, actor)
	if err != nil {
		return Movement{}, err
	}
	m := ms[0]
	l.record(ctx, actor, "stock.adjust", fmt.Sprintf("%s %+d of product %s in warehouse %s (now %d)",
		m.Kind, m.Delta, m.ProductID, m.WarehouseID, m.BalanceAfter))
	return m, nil
}

// TransferInput describes an immediate move between two warehouses.
type TransferInput struct {
	FromWarehouseID string
	ToWarehouseID   string
	ProductID       string
	Quantity        int64
	Note            string
}

// Transfer debits the source and credits the destination as two movements
// sharing one reference id.
func (l *Ledger) Transfer(ctx context.Context, in TransferInput, actor core.Actor) (out, inbound Movement, err error) {
	if in.FromWarehouseID == in.ToWarehouseID {
		return Movement{}, Movement{}, core.Invalid("to_warehouse_id", "must differ from from_warehouse_id")
	}
	if in.Quantity <= 0 {
		return Movement{}, Movement{}, core.Invalid("quantity", "must be positive")
	}
	ref := core.NewID()
	ms, err := l.Post(ctx, []Entry{
		{WarehouseID: in.FromWarehouseID, ProductID: in.ProductID, Delta: -in.Quantity, Kind: MoveTransferOut, ReferenceID: ref, Note: in.Note},
		{WarehouseID: in.ToWarehouseID, ProductID: in.ProductID, Delta: in.Quantity, Kind: MoveTransferIn, ReferenceID: ref, Note: in.Note},
	}, actor)
	if err != nil {
		return Movement{}, Movement{}, err
	}
	l.record(ctx, actor, "stock.transfer", fmt.Sprintf("%d of product %s from warehouse %s to warehouse %s",
		in.Quantity, in.ProductID, in.FromWarehouseID, in.ToWarehouseID))
	return ms[0], ms[1], nil
}

func (l *Ledger) record(ctx context.Context, actor core.Actor, action, detail string) {
	if l.activity != nil {
		l.activity.Append(ctx, actor.Ref, action, detail)
	}
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the current quantity. Unknown keys are zero.
func (l *Ledger) Balance(warehouseID, productID string) int64 {
	l.commitMu.RLock()
	defer l.commitMu.RUnlock()
	return l.balances[StockKey{WarehouseID: warehouseID, ProductID: productID}]
}

// BalancesSnapshot returns a copy of every balance.
func (l *Ledger) BalancesSnapshot() map[StockKey]int64 {
	l.commitMu.RLock()
	defer l.commitMu.RUnlock()
	out := make(map[StockKey]int64, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out
}

// History returns every movement for a key in insertion order.
func (l *Ledger) History(ctx context.Context, warehouseID, productID string) ([]Movement, error) {
	return l.store.Load(ctx, StockKey{WarehouseID: warehouseID, ProductID: productID})
}

// Movements returns matching movements newest first.
func (l *Ledger) Movements(ctx context.Context, f MovementFilter) ([]Movement, error) {
	return l.store.Query(ctx, f)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Drift describes a key whose cached balance disagreed with its movements.
type Drift struct {
	Key     StockKey `json:"key"`
	Cached  int64    `json:"cached"`
	Derived int64    `json:"derived"`
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	Movements int     `json:"movements"`
	Keys      int     `json:"keys"`
	Drift     []Drift `json:"drift"`
}

// Reconcile replays the movement log, replaces the balance cache with the
// derived sums and reports every key that had drifted.
func (l *Ledger) Reconcile(ctx context.Context) (ReconcileReport, error) {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	all, err := l.store.LoadAll(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	derived := make(map[StockKey]int64)
	var maxSeq int64
	for _, m := range all {
		derived[m.Key()] += m.Delta
		if m.Seq > maxSeq {
			maxSeq = m.Seq
		}
	}

	report := ReconcileReport{Movements: len(all), Keys: len(derived)}
	for k, cached := range l.balances {
		if d := derived[k]; d != cached {
			report.Drift = append(report.Drift, Drift{Key: k, Cached: cached, Derived: d})
		}
	}
	for k, d := range derived {
		if _, ok := l.balances[k]; !ok && l.seq > 0 && d != 0 {
			report.Drift = append(report.Drift, Drift{Key: k, Cached: 0, Derived: d})
		}
	}
	sort.Slice(report.Drift, func(i, j int) bool { return report.Drift[i].Key.String() < report.Drift[j].Key.String() })

	l.balances = derived
	if maxSeq > l.seq {
		l.seq = maxSeq
	}
	for _, d := range report.Drift {
		l.log.Warn().Str("key", d.Key.String()).Int64("cached", d.Cached).Int64("derived", d.Derived).Msg("balance drift repaired")
	}
	return report, nil
}
