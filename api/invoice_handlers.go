package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mellovesfromage/warehouse-system/invoice"
)

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invs := h.Invoices.List()
	out := make([]InvoiceDTO, len(invs))
	for i, inv := range invs {
		out[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Invoices.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.Invoices.Create(r.Context(), req.toInput(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.Invoices.RecordPayment(r.Context(), chi.URLParam(r, "id"), invoice.PaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	}, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}
