package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fjod/go_cart/shop-api/internal/metrics"
	"github.com/fjod/go_cart/shop-api/internal/order/repository"
	"github.com/fjod/go_cart/shop-api/internal/payment"
	"github.com/rs/zerolog"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (payment.Outcome, error)
}

type WebhookHandler struct {
	processor WebhookProcessor
	metrics   *metrics.Metrics
	maxBody   int64
	log       zerolog.Logger
}

func NewWebhookHandler(processor WebhookProcessor, m *metrics.Metrics, maxBody int64, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, metrics: m, maxBody: maxBody, log: log}
}

// POST /stripe
//
// The body is read byte for byte as sent; the signature covers the raw payload.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	outcome, err := h.processor.Handle(r.Context(), payload, r.Header.Get(payment.SignatureHeader))
	switch {
	case err == nil:
		h.metrics.RecordWebhook(string(outcome))
		respondJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
	case errors.Is(err, payment.ErrInvalidSignature):
		h.metrics.RecordWebhook("invalid_signature")
		h.log.Warn().Err(err).Msg("webhook signature rejected")
		respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	case errors.Is(err, payment.ErrMalformedEvent):
		h.metrics.RecordWebhook("malformed")
		respondErrorDetails(w, http.StatusBadRequest, "invalid_request", "malformed webhook event", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		// non-2xx keeps the provider retrying until the order exists
		h.metrics.RecordWebhook("order_not_found")
		h.log.Warn().Err(err).Msg("webhook for unknown order")
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	default:
		h.metrics.RecordWebhook("error")
		h.log.Error().Err(err).Msg("webhook processing failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
