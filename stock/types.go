/*
Package stock tracks inventory quantities per (warehouse, product).

PURPOSE:
  The Ledger is the single source of truth for how many units of a product
  sit in a warehouse. Every change is a Movement appended to an append-only
  MovementStore; the balance shown to callers is a cache derived from those
  movements and can always be rebuilt by replaying them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Warehouse, Product: Catalog reference data
  - StockKey:           (warehouseID, productID)
  - Movement:           Immutable record of one quantity change
  - Policy:             Whether balances may go negative

INVARIANTS:
  1. APPEND-ONLY: movements are never updated or deleted.
  2. Balance(key) == sum of Delta over movements for key, in Seq order.
  3. Corrections are new movements (adjustment/return), never edits.

SEE ALSO:
  - ledger.go: Adjust, Transfer, Post, Reconcile
  - store.go: MovementStore interface
  - stock/store/memory.go: In-memory MovementStore
  - store/sqlite/sqlite.go: Durable MovementStore
*/
package stock

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/core"
)

// =============================================================================
// CATALOG TYPES
// =============================================================================

type WarehouseKind string

const (
	KindCentral WarehouseKind = "central"
	KindSub     WarehouseKind = "sub"
)

type Warehouse struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Kind WarehouseKind `json:"kind"`
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// =============================================================================
// STOCK KEY
// =============================================================================

// StockKey identifies one balance.
type StockKey struct {
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
}

func (k StockKey) String() string { return k.WarehouseID + "-" + k.ProductID }

// =============================================================================
// MOVEMENT - Immutable quantity change
// =============================================================================

type MovementKind string

const (
	MoveSale        MovementKind = "sale"
	MoveTransferOut MovementKind = "transfer-out"
	MoveTransferIn  MovementKind = "transfer-in"
	MoveAdjustment  MovementKind = "adjustment"
	MoveReturn      MovementKind = "return"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MoveSale, MoveTransferOut, MoveTransferIn, MoveAdjustment, MoveReturn:
		return true
	}
	return false
}

type Movement struct {
	ID           string        `json:"id"`
	Seq          int64         `json:"seq"`
	Kind         MovementKind  `json:"kind"`
	WarehouseID  string        `json:"warehouse_id"`
	ProductID    string        `json:"product_id"`
	Delta        int64         `json:"delta"`
	BalanceAfter int64         `json:"balance_after"`
	Timestamp    time.Time     `json:"timestamp"`
	Actor        core.ActorRef `json:"actor"`
	ReferenceID  string        `json:"reference_id,omitempty"`
	Note         string        `json:"note,omitempty"`
}

// Key returns the movement's StockKey.
func (m Movement) Key() StockKey {
	return StockKey{WarehouseID: m.WarehouseID, ProductID: m.ProductID}
}

// MovementFilter narrows Movements queries. Zero values match everything.
type MovementFilter struct {
	WarehouseID string
	ProductID   string
	ReferenceID string
	Kind        MovementKind
	Limit       int
}

// Matches reports whether m passes the filter (Limit is ignored).
func (f MovementFilter) Matches(m Movement) bool {
	if f.WarehouseID != "" && m.WarehouseID != f.WarehouseID {
		return false
	}
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.ReferenceID != "" && m.ReferenceID != f.ReferenceID {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	return true
}

// =============================================================================
// POLICY
// =============================================================================

// Policy decides whether a debit may drive a balance below zero.
type Policy string

const (
	// Permissive allows negative balances. This is the default.
	Permissive Policy = "permissive"
	// Strict rejects debits that would leave a balance negative.
	Strict Policy = "strict"
)

// ParsePolicy accepts "permissive", "strict" or "" (permissive).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Permissive:
		return Permissive, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown stock policy %q", s)
}
