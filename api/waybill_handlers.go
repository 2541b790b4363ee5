package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mellovesfromage/warehouse-system/waybill"
)

func (h *Handler) ListWaybills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Waybills.List())
}

func (h *Handler) GetWaybill(w http.ResponseWriter, r *http.Request) {
	wb, err := h.Waybills.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

// CreateWaybill issues a waybill; the source is debited immediately.
func (h *Handler) CreateWaybill(w http.ResponseWriter, r *http.Request) {
	var req WaybillRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	wb, err := h.Waybills.Create(r.Context(), waybill.CreateInput{
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
	writeJSON(w, http.StatusCreated, wb)
}

func (h *Handler) ReceiveWaybill(w http.ResponseWriter, r *http.Request) {
	wb, err := h.Waybills.Receive(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

func (h *Handler) CancelWaybill(w http.ResponseWriter, r *http.Request) {
	wb, err := h.Waybills.Cancel(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}
