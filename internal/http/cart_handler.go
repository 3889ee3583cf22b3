package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	hub *SessionHub
}

func NewCartHandler(hub *SessionHub) *CartHandler {
	return &CartHandler{hub: hub}
}

type AddItemRequestDTO struct {
	ProductID       string           `json:"product_id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	ImageRef        string           `json:"image_ref,omitempty"`
	Quantity        int              `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Lines       []domain.CartLine `json:"lines"`
	Total       decimal.Decimal   `json:"total"`
	Count       int               `json:"count"`
	SyncWarning string            `json:"sync_warning,omitempty"`
}

func (h *CartHandler) cartResponse(session string, eng *cart.Engine) CartResponseDTO {
	return CartResponseDTO{
		Lines:       eng.Snapshot(),
		Total:       eng.Total(),
		Count:       eng.Count(),
		SyncWarning: h.hub.PopWarning(session),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	eng, err := h.hub.Engine(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(session, eng))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	eng, err := h.hub.Engine(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}

	product := domain.Product{
		ID:              req.ProductID,
		Name:            req.Name,
		Price:           req.Price,
		DiscountedPrice: req.DiscountedPrice,
		ImageRef:        req.ImageRef,
	}
	if err := eng.AddItem(r.Context(), product, req.Quantity); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.cartResponse(session, eng))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	eng, err := h.hub.Engine(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if err := eng.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session, eng))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	eng, err := h.hub.Engine(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if err := eng.RemoveItem(r.Context(), productID); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session, eng))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	eng, err := h.hub.Engine(r.Context(), session)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if err := eng.Clear(r.Context()); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session, eng))
}
