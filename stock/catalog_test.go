package stock_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
)

func TestCatalog_SKUUniqueIgnoringCase(t *testing.T) {
	c := newCatalog(t)

	_, err := c.UpsertProduct(stock.ProductInput{Name: "Cement copy", SKU: "cem-01", UnitPrice: decimal.NewFromInt(1)}, admin)

	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCatalog_UpdateKeepsOrChangesSKU(t *testing.T) {
	c := newCatalog(t)

	p, err := c.UpsertProduct(stock.ProductInput{ID: "p1", Name: "Cement 50kg", SKU: "CEM-01", UnitPrice: decimal.NewFromInt(12)}, admin)
	require.NoError(t, err)
	assert.Equal(t, "Cement 50kg", p.Name)

	_, err = c.UpsertProduct(stock.ProductInput{ID: "p1", Name: "Cement 50kg", SKU: "CEM-50", UnitPrice: decimal.NewFromInt(12)}, admin)
	require.NoError(t, err)

	// The old SKU is free again.
	_, err = c.UpsertProduct(stock.ProductInput{ID: "p9", Name: "Other", SKU: "CEM-01"}, admin)
	assert.NoError(t, err)
}

func TestCatalog_ProductsRequireAdmin(t *testing.T) {
	c := newCatalog(t)

	_, err := c.UpsertProduct(stock.ProductInput{Name: "Nails", SKU: "NL-1"}, manager)

	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestCatalog_ProductValidation(t *testing.T) {
	c := newCatalog(t)

	_, err := c.UpsertProduct(stock.ProductInput{SKU: "X"}, admin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = c.UpsertProduct(stock.ProductInput{Name: "X", SKU: "X", UnitPrice: decimal.NewFromInt(-1)}, admin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCatalog_WarehousesOrderedNumerically(t *testing.T) {
	c := stock.NewCatalog()
	for _, id := range []string{"10", "2", "1"} {
		require.NoError(t, c.AddWarehouse(stock.Warehouse{ID: id, Name: "W" + id, Kind: stock.KindSub}))
	}

	ws := c.Warehouses()
	assert.Equal(t, []string{"1", "2", "10"}, []string{ws[0].ID, ws[1].ID, ws[2].ID})

	err := c.AddWarehouse(stock.Warehouse{ID: "1", Name: "dup", Kind: stock.KindSub})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = c.Warehouse("404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
