package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/report"
	"github.com/mellovesfromage/warehouse-system/stock"
)

// =============================================================================
// BALANCES
// =============================================================================

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStockLevels(h.Ledger.BalancesSnapshot()))
}

// GetStock returns one balance. Unknown warehouses or products are 404;
// a known pair with no movements is zero.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	warehouseID := chi.URLParam(r, "warehouseID")
	productID := chi.URLParam(r, "productID")
	if _, err := h.Catalog.Warehouse(warehouseID); err != nil {
		h.fail(w, err)
		return
	}
	if _, err := h.Catalog.Product(productID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockLevelDTO{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Quantity:    h.Ledger.Balance(warehouseID, productID),
	})
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	m, err := h.Ledger.Adjust(r.Context(), stock.AdjustInput{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Delta:       req.Delta,
		Kind:        stock.MovementKind(req.Kind),
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
	}, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) TransferStock(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	out, in, err := h.Ledger.Transfer(r.Context(), stock.TransferInput{
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Note:            req.Note,
	}, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TransferResponse{Out: out, In: in})
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func movementFilter(r *http.Request) (stock.MovementFilter, error) {
	q := r.URL.Query()
	f := stock.MovementFilter{
		WarehouseID: q.Get("warehouse"),
		ProductID:   q.Get("product"),
		ReferenceID: q.Get("reference"),
		Kind:        stock.MovementKind(q.Get("kind")),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, core.Invalid("kind", "unknown movement kind "+string(f.Kind))
	}
	limit, err := queryLimit(r, 0)
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}

// ListMovements returns the movement log newest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	f, err := movementFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ms, err := h.Ledger.Movements(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	if ms == nil {
		ms = []stock.Movement{}
	}
	writeJSON(w, http.StatusOK, ms)
}

// =============================================================================
// EXPORTS
// =============================================================================

func (h *Handler) ExportStock(w http.ResponseWriter, r *http.Request) {
	f, err := report.StockSnapshot(h.Catalog, h.Ledger.BalancesSnapshot())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeWorkbook(w, f, report.Filename("stock", time.Now()))
}

func (h *Handler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ms, err := h.Ledger.Movements(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	f, err := report.Movements(h.Catalog, ms)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeWorkbook(w, f, report.Filename("movements", time.Now()))
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Transfer-Encoding", "binary")
	if err := f.Write(w); err != nil {
		h.log.Error().Err(err).Str("file", filename).Msg("write workbook")
	}
}
