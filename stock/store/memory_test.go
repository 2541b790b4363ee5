package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellovesfromage/warehouse-system/stock"
	"github.com/mellovesfromage/warehouse-system/stock/store"
)

func mv(id string, seq int64, wh, prod string, delta int64) stock.Movement {
	return stock.Movement{ID: id, Seq: seq, Kind: stock.MoveAdjustment, WarehouseID: wh, ProductID: prod, Delta: delta}
}

func TestMemory_AppendBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Append(ctx, mv("a", 1, "1", "1", 5)))

	// Second batch reuses "a": nothing from it may land.
	err := s.AppendBatch(ctx, []stock.Movement{mv("b", 2, "1", "1", 1), mv("a", 3, "1", "1", 1)})
	assert.ErrorIs(t, err, stock.ErrDuplicateMovement)
	assert.Equal(t, 1, s.Len())

	// Duplicates inside one batch are rejected too.
	err = s.AppendBatch(ctx, []stock.Movement{mv("c", 2, "1", "1", 1), mv("c", 3, "1", "1", 1)})
	assert.ErrorIs(t, err, stock.ErrDuplicateMovement)
	assert.Equal(t, 1, s.Len())
}

func TestMemory_LoadKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.AppendBatch(ctx, []stock.Movement{
		mv("a", 1, "1", "1", 5),
		mv("b", 2, "2", "1", 3),
		mv("c", 3, "1", "1", -2),
	}))

	got, err := s.Load(ctx, stock.StockKey{WarehouseID: "1", ProductID: "1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestMemory_QueryNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, mv(id, int64(i+1), "1", "1", 1)))
	}
	require.NoError(t, s.Append(ctx, mv("e", 5, "2", "1", 1)))

	got, err := s.Query(ctx, stock.MovementFilter{WarehouseID: "1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
