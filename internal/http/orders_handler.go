package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/order/domain"
	"github.com/fjod/go_cart/shop-api/internal/session"
	"github.com/rs/zerolog"
)

type OrderLister interface {
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderLister
	timeout time.Duration
	log     zerolog.Logger
}

func NewOrdersHandler(orders OrderLister, timeout time.Duration, log zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout, log: log}
}

type OrderResponseDTO struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	ProviderRef string `json:"provider_ref"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) OrderResponseDTO {
	return OrderResponseDTO{
		ID:          o.ID.String(),
		Status:      o.Status.String(),
		Amount:      o.Amount.StringFixed(2),
		ProviderRef: o.ProviderRef,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GET /api/order/user
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := session.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list orders failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderResponse(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}
