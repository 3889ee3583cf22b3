package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/fjod/storefront/pkg/errors"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}

// respondAppError maps the core's error taxonomy onto HTTP statuses.
func respondAppError(w http.ResponseWriter, err error) {
	var invalidInput *apperrors.ErrInvalidInput
	if errors.As(err, &invalidInput) {
		respondError(w, http.StatusBadRequest, "invalid_input", invalidInput.Message)
		return
	}

	var validation *apperrors.ErrValidation
	if errors.As(err, &validation) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  http.StatusText(http.StatusUnprocessableEntity),
			Code:   "validation_failed",
			Fields: validation.Fields,
		})
		return
	}

	var precondition *apperrors.ErrPreconditionFailed
	if errors.As(err, &precondition) {
		status := http.StatusConflict
		if precondition.Reason == "authentication required" {
			status = http.StatusUnauthorized
		}
		respondError(w, status, "precondition_failed", precondition.Reason)
		return
	}

	var paymentSetup *apperrors.ErrPaymentSetup
	if errors.As(err, &paymentSetup) {
		respondError(w, http.StatusPaymentRequired, "payment_setup_failed", paymentSetup.Error())
		return
	}

	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
