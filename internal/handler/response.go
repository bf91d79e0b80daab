package handler

import (
	"encoding/json"
	"net/http"

	"voucher-storefront/internal/model"
	"voucher-storefront/internal/service"
)

// sendSuccess writes a success envelope
func sendSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, model.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// sendError writes an error envelope
func sendError(w http.ResponseWriter, code, message string, statusCode int) {
	writeJSON(w, statusCode, model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// mapError maps a service error to an error code and HTTP status
func mapError(err error) (string, int) {
	switch service.KindOf(err) {
	case service.KindValidation:
		return "ERR_INVALID_REQUEST", http.StatusBadRequest
	case service.KindNotFound:
		return "ERR_NOT_FOUND", http.StatusNotFound
	case service.KindConflict:
		return "ERR_CONFLICT", http.StatusConflict
	case service.KindPayment:
		return "ERR_PAYMENT_FAILED", http.StatusPaymentRequired
	case service.KindFulfillment:
		return "ERR_FULFILLMENT_FAILED", http.StatusBadGateway
	case service.KindTransport:
		return "ERR_GATEWAY_UNAVAILABLE", http.StatusBadGateway
	case service.KindCredential:
		return "ERR_CONFIGURATION", http.StatusInternalServerError
	case service.KindPersistence:
		return "ERR_STORAGE", http.StatusInternalServerError
	default:
		return "ERR_INTERNAL_SERVER", http.StatusInternalServerError
	}
}
