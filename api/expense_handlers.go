package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/expense"
)

// ListExpenses returns expenses newest first. With ?open=true, paid and
// rejected expenses are left out.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	list := h.Expenses.List()
	if r.URL.Query().Get("open") == "true" {
		open := make([]expense.Expense, 0, len(list))
		for _, e := range list {
			if !e.Status.IsTerminal() {
				open = append(open, e)
			}
		}
		list = open
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.Expenses.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.Expenses.Submit(r.Context(), expense.SubmitInput{
		Title:       req.Title,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	resolve := func() (core.ActorRef, error) { return h.resolveDelegate(req.DelegateTo) }
	h.respondExpense(w)(h.Expenses.ApproveResolving(r.Context(), chi.URLParam(r, "id"), resolve, actorFrom(r.Context())))
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	h.respondExpense(w)(h.Expenses.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r.Context())))
}

func (h *Handler) RevokeExpense(w http.ResponseWriter, r *http.Request) {
	h.respondExpense(w)(h.Expenses.Revoke(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context())))
}

func (h *Handler) ReturnExpense(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	h.respondExpense(w)(h.Expenses.Return(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r.Context())))
}

func (h *Handler) PayExpense(w http.ResponseWriter, r *http.Request) {
	var req PayExpenseRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	h.respondExpense(w)(h.Expenses.Pay(r.Context(), chi.URLParam(r, "id"), expense.PayInput{
		Method:    req.Method,
		Reference: req.Reference,
	}, actorFrom(r.Context())))
}

func (h *Handler) respondExpense(w http.ResponseWriter) func(expense.Expense, error) {
	return func(e expense.Expense, err error) {
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
