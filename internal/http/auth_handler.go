package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/storefront/internal/identity"
)

type AuthHandler struct {
	identity identity.Provider
	hub      *SessionHub
}

func NewAuthHandler(provider identity.Provider, hub *SessionHub) *AuthHandler {
	return &AuthHandler{identity: provider, hub: hub}
}

type SignInRequestDTO struct {
	Subject string `json:"subject"`
}

// SignIn records the subject for the session and drops the cached engine so
// the next cart access re-runs initialization against the remote store. If
// the remote cart is non-empty it replaces the anonymous one; there is no
// merge.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req SignInRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "subject is required")
		return
	}

	if err := h.identity.SignIn(r.Context(), session, req.Subject); err != nil {
		respondAppError(w, err)
		return
	}
	h.hub.Drop(session)

	respondJSON(w, http.StatusNoContent, nil)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	if err := h.identity.SignOut(r.Context(), session); err != nil {
		respondAppError(w, err)
		return
	}
	h.hub.Drop(session)

	respondJSON(w, http.StatusNoContent, nil)
}
