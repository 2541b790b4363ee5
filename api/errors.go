package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/core"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidTransition:
		return http.StatusConflict
	case core.KindInvalidInput:
		return http.StatusBadRequest
	case core.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case core.KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Internal errors are logged
// and their text is not exposed.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Code:    string(core.KindInvalidInput),
			Details: validationDetails(ve),
		})
		return
	}

	kind := core.Kind(err)
	status := statusFor(kind)
	resp := ErrorResponse{Error: err.Error(), Code: string(kind)}

	var stockErr *core.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = map[string]any{
			"warehouse_id": stockErr.WarehouseID,
			"product_id":   stockErr.ProductID,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		}
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

// validationDetails maps each failing field (by json name) to the failed tag.
func validationDetails(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
