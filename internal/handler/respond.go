package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fsanano/pharmacy-storefront/internal/service"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps core errors onto HTTP. API errors keep the upstream status
// and normalized body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *pharmacy.APIError
	var stockErr *service.StockError

	switch {
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.StatusCode, apiErr)
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      service.ErrInsufficientStock.Error(),
			"medicineId": stockErr.MedicineID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		h.log.WithError(err).Error("unhandled error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
