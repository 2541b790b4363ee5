/*
store.go - Persistence interface for movements

APPEND-ONLY CONTRACT:
  - Append(): single movement write
  - AppendBatch(): atomic multi-movement write (all or nothing)
  - NO Update() or Delete() methods exist

ORDERING:
  Implementations return movements in Seq order (insertion order) unless
  stated otherwise. Query() is the display view and returns newest first.

IMPLEMENTATIONS:
  - stock/store/memory.go: In-memory for tests and volatile deployments
  - store/sqlite/sqlite.go: SQLite
*/
package stock

import (
	"context"
	"errors"
)

// ErrDuplicateMovement is returned when a movement id already exists.
var ErrDuplicateMovement = errors.New("duplicate movement id")

// MovementStore persists movements.
// IMPORTANT: Store is APPEND-ONLY. Corrections are new movements.
type MovementStore interface {
	// Append persists one movement.
	Append(ctx context.Context, m Movement) error

	// AppendBatch persists movements atomically. Either all succeed or none do.
	AppendBatch(ctx context.Context, ms []Movement) error

	// Load returns all movements for key in Seq order.
	Load(ctx context.Context, key StockKey) ([]Movement, error)

	// LoadAll returns every movement in Seq order.
	LoadAll(ctx context.Context) ([]Movement, error)

	// Query returns matching movements newest first.
	Query(ctx context.Context, f MovementFilter) ([]Movement, error)
}
