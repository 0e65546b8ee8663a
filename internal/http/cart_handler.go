package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/cart/domain"
	"github.com/fjod/go_cart/shop-api/internal/cart/repository"
	"github.com/fjod/go_cart/shop-api/internal/metrics"
	"github.com/fjod/go_cart/shop-api/internal/session"
	"github.com/rs/zerolog"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	Reconcile(ctx context.Context, userID string, items domain.Snapshot, seq int64) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	metrics *metrics.Metrics
	timeout time.Duration
	log     zerolog.Logger
}

func NewCartHandler(carts CartService, m *metrics.Metrics, timeout time.Duration, log zerolog.Logger) *CartHandler {
	return &CartHandler{carts: carts, metrics: m, timeout: timeout, log: log}
}

// UpdateCartRequestDTO keeps quantities raw so every value can be checked
// as a plain integer literal.
type UpdateCartRequestDTO struct {
	CartItems map[string]json.RawMessage `json:"cartItems"`
	Seq       int64                      `json:"seq"`
}

type CartResponseDTO struct {
	UserID    string          `json:"user_id"`
	CartItems domain.Snapshot `json:"cart_items"`
	Seq       int64           `json:"seq"`
}

func toCartResponse(c *domain.Cart) CartResponseDTO {
	items := c.Items
	if items == nil {
		items = domain.Snapshot{}
	}
	return CartResponseDTO{UserID: c.UserID, CartItems: items, Seq: c.Seq}
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := session.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("get cart failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// POST /api/cart/update
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := session.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req UpdateCartRequestDTO
	if tooLarge, err := decodeJSON(r, &req); err != nil {
		if tooLarge {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CartItems == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "cartItems is required")
		return
	}
	if req.Seq < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "seq must not be negative")
		return
	}

	items, err := domain.ParseSnapshot(req.CartItems)
	if err != nil {
		h.metrics.RecordReconcile("invalid")
		respondErrorDetails(w, http.StatusBadRequest, "invalid_cart", "invalid cart snapshot", err.Error())
		return
	}

	cart, err := h.carts.Reconcile(ctx, userID, items, req.Seq)
	switch {
	case err == nil:
		h.metrics.RecordReconcile("accepted")
		respondJSON(w, http.StatusOK, toCartResponse(cart))
	case errors.Is(err, repository.ErrStaleSnapshot):
		h.metrics.RecordReconcile("stale")
		respondError(w, http.StatusConflict, "stale_snapshot", "a newer cart snapshot was already accepted")
	case errors.Is(err, domain.ErrInvalidSnapshot):
		h.metrics.RecordReconcile("invalid")
		respondErrorDetails(w, http.StatusBadRequest, "invalid_cart", "invalid cart snapshot", err.Error())
	default:
		h.metrics.RecordReconcile("error")
		h.log.Error().Err(err).Str("user_id", userID).Msg("reconcile failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
