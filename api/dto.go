/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Request and response shapes for the JSON API. Requests carry
  go-playground/validator tags checked by decodeAndValidate before any
  domain call; the domain re-validates everything it relies on.

  Domain records (stock.Movement, waybill.Waybill, invoice.Invoice,
  expense.Expense, audit.Entry) already carry json tags and are returned
  as-is. Only shapes that differ from the domain types live here.

MONEY:
  decimal.Decimal accepts both JSON numbers and strings ("12.50") and is
  always rendered as a string.

SEE ALSO:
  - handlers.go: decodeAndValidate, writeJSON
  - errors.go: ErrorResponse mapping
*/
package api

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/invoice"
	"github.com/mellovesfromage/warehouse-system/stock"
)

// =============================================================================
// CATALOG
// =============================================================================

type ProductRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" validate:"required"`
	SKU       string          `json:"sku" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// UserRequest adds or replaces a directory user.
type UserRequest struct {
	ID              string   `json:"id" validate:"required"`
	Username        string   `json:"username"`
	Name            string   `json:"name" validate:"required"`
	Role            string   `json:"role" validate:"required,oneof=admin warehouse finance"`
	FinanceDelegate bool     `json:"finance_delegate"`
	WarehouseAccess []string `json:"warehouse_access"`
}

// =============================================================================
// STOCK
// =============================================================================

type AdjustRequest struct {
	WarehouseID string `json:"warehouse_id" validate:"required"`
	ProductID   string `json:"product_id" validate:"required"`
	Delta       int64  `json:"delta" validate:"required"`
	Kind        string `json:"kind" validate:"omitempty,oneof=sale transfer-out transfer-in adjustment return"`
	ReferenceID string `json:"reference_id"`
	Note        string `json:"note"`
}

type TransferRequest struct {
	FromWarehouseID string `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   string `json:"to_warehouse_id" validate:"required,nefield=FromWarehouseID"`
	ProductID       string `json:"product_id" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"gt=0"`
	Note            string `json:"note"`
}

type StockLevelDTO struct {
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	Quantity    int64  `json:"quantity"`
}

type TransferResponse struct {
	Out stock.Movement `json:"out"`
	In  stock.Movement `json:"in"`
}

// toStockLevels flattens a balance snapshot, ordered by warehouse then
// product.
func toStockLevels(balances map[stock.StockKey]int64) []StockLevelDTO {
	out := make([]StockLevelDTO, 0, len(balances))
	for k, q := range balances {
		out = append(out, StockLevelDTO{WarehouseID: k.WarehouseID, ProductID: k.ProductID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WarehouseID != out[j].WarehouseID {
			return out[i].WarehouseID < out[j].WarehouseID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// =============================================================================
// WAYBILLS
// =============================================================================

type WaybillRequest struct {
	FromWarehouseID string `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   string `json:"to_warehouse_id" validate:"required,nefield=FromWarehouseID"`
	ProductID       string `json:"product_id" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"gt=0"`
	Note            string `json:"note"`
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceItemRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int64            `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type InvoiceRequest struct {
	CustomerID  string               `json:"customer_id" validate:"required"`
	WarehouseID string               `json:"warehouse_id" validate:"required"`
	Items       []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r InvoiceRequest) toInput() invoice.CreateInput {
	in := invoice.CreateInput{CustomerID: r.CustomerID, WarehouseID: r.WarehouseID}
	for _, it := range r.Items {
		in.Items = append(in.Items, invoice.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return in
}

type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

// InvoiceDTO adds the derived payment figures to an invoice.
type InvoiceDTO struct {
	invoice.Invoice
	Paid       decimal.Decimal `json:"paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func toInvoiceDTO(inv invoice.Invoice) InvoiceDTO {
	return InvoiceDTO{Invoice: inv, Paid: inv.Paid(), BalanceDue: inv.BalanceDue()}
}

// =============================================================================
// EXPENSES
// =============================================================================

type ExpenseRequest struct {
	Title       string          `json:"title" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required"`
	Description string          `json:"description"`
}

// Transition bodies are not tag-validated: the workflow checks the state
// before the input, and the API keeps that order.

type ApproveRequest struct {
	DelegateTo string `json:"delegate_to"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type PayExpenseRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
