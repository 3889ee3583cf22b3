package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
)

type CheckoutHandler struct {
	hub *SessionHub
}

func NewCheckoutHandler(hub *SessionHub) *CheckoutHandler {
	return &CheckoutHandler{hub: hub}
}

type CheckoutStateDTO struct {
	Stage  checkout.Stage   `json:"stage"`
	Result *checkout.Result `json:"result,omitempty"`
}

func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	orch, ok := h.hub.CurrentCheckout(session)
	if !ok {
		respondJSON(w, http.StatusOK, CheckoutStateDTO{Stage: checkout.StageShipping})
		return
	}
	respondJSON(w, http.StatusOK, CheckoutStateDTO{Stage: orch.Stage(), Result: orch.Result()})
}

func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var address domain.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orch, err := h.hub.Checkout(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if err := orch.SubmitShipping(address); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutStateDTO{Stage: orch.Stage()})
}

func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var card checkout.CardDetails
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orch, err := h.hub.Checkout(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}

	result, err := orch.Pay(r.Context(), card)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutStateDTO{Stage: orch.Stage(), Result: result})
}
