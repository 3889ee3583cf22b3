package http

import (
	"net/http"

	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/orders"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	aggregator *orders.Aggregator
	identity   identity.Provider
	logger     *zap.Logger
}

func NewOrdersHandler(aggregator *orders.Aggregator, provider identity.Provider, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		aggregator: aggregator,
		identity:   provider,
		logger:     logger,
	}
}

// ListOrders returns the merged, deduplicated order history for the session's
// subject, optionally filtered by ?status=. Anonymous sessions get an empty
// list, not an error.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	subject, err := h.identity.CurrentSubject(r.Context(), session)
	if err != nil {
		h.logger.Warn("identity lookup failed", zap.String("session", session), zap.Error(err))
		subject = ""
	}

	merged, err := h.aggregator.Orders(r.Context(), subject)
	if err != nil {
		respondAppError(w, err)
		return
	}

	filtered := orders.FilterByStatus(merged, r.URL.Query().Get("status"))
	if filtered == nil {
		respondJSON(w, http.StatusOK, []struct{}{})
		return
	}
	respondJSON(w, http.StatusOK, filtered)
}
