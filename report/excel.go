// Package report renders spreadsheet exports of stock and movements.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mellovesfromage/warehouse-system/stock"
)

const (
	StockSheet    = "Stock"
	MovementSheet = "Movements"

	// ContentType is the MIME type for .xlsx downloads.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var movementHeaders = []string{"Seq", "Timestamp", "Kind", "Warehouse", "Product", "SKU", "Delta", "Balance After", "Actor", "Reference", "Note"}

// StockSnapshot writes one row per product with a quantity column per
// warehouse, the total across warehouses and its value at catalog price.
func StockSnapshot(catalog *stock.Catalog, balances map[stock.StockKey]int64) (*excelize.File, error) {
	return newWorkbook(StockSheet, func(f *excelize.File) error {
		return fillStock(f, catalog, balances)
	})
}

func fillStock(f *excelize.File, catalog *stock.Catalog, balances map[stock.StockKey]int64) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}

	warehouses := catalog.Warehouses()
	headers := []string{"SKU", "Product", "Unit Price"}
	for _, w := range warehouses {
		headers = append(headers, w.Name)
	}
	headers = append(headers, "Total", "Value")
	if err := writeHeader(f, StockSheet, headers, header); err != nil {
		return err
	}

	grand := decimal.Zero
	products := catalog.Products()
	for i, p := range products {
		row := i + 2
		values := []interface{}{p.SKU, p.Name, p.UnitPrice.InexactFloat64()}
		var total int64
		for _, w := range warehouses {
			q := balances[stock.StockKey{WarehouseID: w.ID, ProductID: p.ID}]
			total += q
			values = append(values, q)
		}
		value := p.UnitPrice.Mul(decimal.NewFromInt(total))
		grand = grand.Add(value)
		values = append(values, total, value.InexactFloat64())
		if err := setRow(f, StockSheet, row, values); err != nil {
			return err
		}
	}

	summary := len(products) + 2
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellValue(StockSheet, fmt.Sprintf("A%d", summary), "Total value"); err != nil {
		return err
	}
	if err := f.SetCellValue(StockSheet, fmt.Sprintf("%s%d", lastCol, summary), grand.InexactFloat64()); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("summary style: %w", err)
	}
	if err := f.SetCellStyle(StockSheet, fmt.Sprintf("A%d", summary), fmt.Sprintf("%s%d", lastCol, summary), bold); err != nil {
		return err
	}
	_ = f.SetColWidth(StockSheet, "B", "B", 28)
	return nil
}

// Movements writes the given movements in the order supplied.
func Movements(catalog *stock.Catalog, movements []stock.Movement) (*excelize.File, error) {
	return newWorkbook(MovementSheet, func(f *excelize.File) error {
		return fillMovements(f, catalog, movements)
	})
}

func fillMovements(f *excelize.File, catalog *stock.Catalog, movements []stock.Movement) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := writeHeader(f, MovementSheet, movementHeaders, header); err != nil {
		return err
	}

	for i, m := range movements {
		warehouse, product, sku := m.WarehouseID, m.ProductID, ""
		if w, err := catalog.Warehouse(m.WarehouseID); err == nil {
			warehouse = w.Name
		}
		if p, err := catalog.Product(m.ProductID); err == nil {
			product, sku = p.Name, p.SKU
		}
		values := []interface{}{
			m.Seq,
			m.Timestamp.UTC().Format(time.RFC3339),
			string(m.Kind),
			warehouse,
			product,
			sku,
			m.Delta,
			m.BalanceAfter,
			m.Actor.String(),
			m.ReferenceID,
			m.Note,
		}
		if err := setRow(f, MovementSheet, i+2, values); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(MovementSheet, "B", "B", 22)
	_ = f.SetColWidth(MovementSheet, "J", "J", 38)
	return nil
}

// newWorkbook creates a file with one sheet named sheet and runs fill on it.
// The file is closed if fill fails.
func newWorkbook(sheet string, fill func(f *excelize.File) error) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Filename builds a timestamped download name such as stock_20240102-1504.xlsx.
func Filename(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, at.UTC().Format("20060102-1504"))
}

func headerStyle(f *excelize.File) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("header style: %w", err)
	}
	return id, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
