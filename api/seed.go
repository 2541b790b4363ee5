/*
seed.go - Starting catalog and stock for a fresh installation

PURPOSE:
  Populates an empty system with the two warehouses, the eighteen
  catalog products and their opening quantities, so the UI has
  something to show on first start.

HOW SEEDING WORKS:
  1. SeedCatalog adds missing warehouses, and the products if the
     catalog has none. It runs on every start.
  2. SeedStock posts opening stock as adjustment movements by the system
     actor, but only when the movement log is empty. A restarted server
     that rehydrated its ledger from SQLite is left untouched.

OPENING STOCK KEYS:
  "<product>-<warehouse>", e.g. "4-2" is product 4 in the Sub Warehouse.
  The first component runs 1..18 and the second is only ever 1 or 2, so
  the keys cannot be read warehouse-first. Zero quantities are skipped.

SEE ALSO:
  - cmd/server/main.go: calls SeedStock when SEED=true
*/
package api

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
)

// SeedResult reports what SeedCatalog created.
type SeedResult struct {
	Warehouses int
	Products   int
}

var seedWarehouses = []stock.Warehouse{
	{ID: "1", Name: "Central Warehouse", Kind: stock.KindCentral},
	{ID: "2", Name: "Sub Warehouse", Kind: stock.KindSub},
}

type seedProduct struct {
	name  string
	sku   string
	price string
}

// seedProducts is indexed by product id - 1.
var seedProducts = []seedProduct{
	{"Portland Cement 50kg", "CEM-050", "12.50"},
	{"White Cement 25kg", "CEM-025W", "18.00"},
	{"Lime 25kg", "LIM-025", "7.25"},
	{"River Sand (ton)", "SND-RIV", "35.00"},
	{"Gravel 20mm (ton)", "GRV-020", "42.00"},
	{"Concrete Block 6in", "BLK-006", "1.10"},
	{"Concrete Block 8in", "BLK-008", "1.45"},
	{"Clay Brick", "BRK-CLY", "0.35"},
	{"Rebar 10mm x 12m", "RBR-010", "6.80"},
	{"Rebar 12mm x 12m", "RBR-012", "9.60"},
	{"Binding Wire 20kg", "WIR-BND", "28.00"},
	{"Roofing Sheet 3m", "ROF-300", "14.75"},
	{"Roofing Nails 1kg", "NAL-ROF", "3.20"},
	{"Timber 2x4 (4.8m)", "TMB-204", "8.90"},
	{"Plywood 18mm", "PLY-018", "32.00"},
	{"PVC Pipe 4in x 6m", "PVC-004", "11.40"},
	{"Emulsion Paint 20L", "PNT-EMU", "65.00"},
	{"Floor Tile 60x60 (box)", "TIL-060", "24.50"},
}

var seedStock = map[string]int64{
	"1-1": 111, "1-2": 109, "2-1": 0, "2-2": 0, "3-1": 0, "3-2": 0,
	"4-1": 2543, "4-2": 20, "5-1": 2580, "5-2": 0, "6-1": 2300, "6-2": 54,
	"7-1": 64, "7-2": 0, "8-1": 2510, "8-2": 0, "9-1": 0, "9-2": 0,
	"10-1": 127, "10-2": 0, "11-1": 1200, "11-2": 42, "12-1": 1886, "12-2": 0,
	"13-1": 408, "13-2": 0, "14-1": 36, "14-2": 19, "15-1": 2136, "15-2": 0,
	"16-1": 1658, "16-2": 8, "17-1": 0, "17-2": 0, "18-1": 0, "18-2": 0,
}

// SeedCatalog adds the standard warehouses and, when the catalog has no
// products yet, the standard products. The catalog is not persisted, so
// this runs on every start.
func SeedCatalog(catalog *stock.Catalog) (SeedResult, error) {
	var res SeedResult

	for _, w := range seedWarehouses {
		if _, err := catalog.Warehouse(w.ID); err == nil {
			continue
		}
		if err := catalog.AddWarehouse(w); err != nil {
			return res, fmt.Errorf("seed warehouse %s: %w", w.ID, err)
		}
		res.Warehouses++
	}

	if len(catalog.Products()) > 0 {
		return res, nil
	}
	for i, p := range seedProducts {
		_, err := catalog.UpsertProduct(stock.ProductInput{
			ID:        fmt.Sprint(i + 1),
			Name:      p.name,
			SKU:       p.sku,
			UnitPrice: decimal.RequireFromString(p.price),
		}, core.SystemActor)
		if err != nil {
			return res, fmt.Errorf("seed product %d: %w", i+1, err)
		}
		res.Products++
	}
	return res, nil
}

// SeedStock posts the opening quantities when the movement log is empty.
// It returns the number of movements written.
func SeedStock(ctx context.Context, ledger *stock.Ledger) (int, error) {
	existing, err := ledger.Movements(ctx, stock.MovementFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	entries, err := openingEntries()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	ms, err := ledger.Post(ctx, entries, core.SystemActor)
	if err != nil {
		return 0, fmt.Errorf("seed opening stock: %w", err)
	}
	return len(ms), nil
}

// openingEntries converts seedStock into adjustment entries in a stable
// order.
func openingEntries() ([]stock.Entry, error) {
	keys := make([]string, 0, len(seedStock))
	for k, qty := range seedStock {
		if qty != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]stock.Entry, 0, len(keys))
	for _, k := range keys {
		productID, warehouseID, ok := strings.Cut(k, "-")
		if !ok {
			return nil, fmt.Errorf("malformed seed key %q", k)
		}
		entries = append(entries, stock.Entry{
			WarehouseID: warehouseID,
			ProductID:   productID,
			Delta:       seedStock[k],
			Kind:        stock.MoveAdjustment,
			Note:        "opening stock",
		})
	}
	return entries, nil
}
