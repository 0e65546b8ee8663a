// Package payment turns signed provider webhooks into order transitions.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/events"
	"github.com/fjod/go_cart/shop-api/internal/order/domain"
	"github.com/rs/zerolog"
)

type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeAlreadyFinal Outcome = "already_final"
	OutcomeIgnored      Outcome = "ignored"
)

type OrderTransitioner interface {
	TransitionByReference(ctx context.Context, providerRef string, to domain.OrderStatus) (*domain.Order, bool, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type Config struct {
	Secret    []byte
	Tolerance time.Duration
}

type WebhookProcessor struct {
	cfg       Config
	claims    EventClaims
	orders    OrderTransitioner
	carts     CartClearer
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewWebhookProcessor(
	cfg Config,
	claims EventClaims,
	orders OrderTransitioner,
	carts CartClearer,
	publisher events.Publisher,
	log zerolog.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		cfg:       cfg,
		claims:    claims,
		orders:    orders,
		carts:     carts,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Handle verifies payload against the signature header before looking at
// any field. Replays of a processed event id and events for orders that
// already reached a terminal status succeed without side effects.
func (p *WebhookProcessor) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if err := VerifySignature(payload, signature, p.cfg.Secret, p.cfg.Tolerance, p.now()); err != nil {
		return "", err
	}

	ev, err := parseEvent(payload)
	if err != nil {
		return "", err
	}
	if !ev.handled() {
		p.log.Debug().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("ignoring webhook event")
		return OutcomeIgnored, nil
	}

	claimed, err := p.claims.Claim(ctx, ev.ID)
	switch {
	case err != nil:
		// the conditional transition still guards against double processing
		p.log.Warn().Err(err).Str("event_id", ev.ID).Msg("event claim unavailable")
	case !claimed:
		return OutcomeDuplicate, nil
	}

	outcome, err := p.apply(ctx, ev)
	if err != nil && claimed {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if relErr := p.claims.Release(releaseCtx, ev.ID); relErr != nil {
			p.log.Error().Err(relErr).Str("event_id", ev.ID).Msg("failed to release event claim")
		}
	}
	return outcome, err
}

func (p *WebhookProcessor) apply(ctx context.Context, ev *Event) (Outcome, error) {
	to := domain.OrderStatusPaid
	eventType := events.TypeOrderPaid
	if ev.Type == EventPaymentFailed {
		to = domain.OrderStatusFailed
		eventType = events.TypeOrderFailed
	}
	ref := ev.Data.Object.ID

	order, transitioned, err := p.orders.TransitionByReference(ctx, ref, to)
	if err != nil {
		return "", fmt.Errorf("transition order %s: %w", ref, err)
	}

	logEvent := p.log.With().
		Str("event_id", ev.ID).
		Str("order_id", order.ID.String()).
		Str("provider_ref", ref).
		Logger()

	if !transitioned {
		logEvent.Info().Str("status", order.Status.String()).Msg("order already final")
		return OutcomeAlreadyFinal, nil
	}

	if to == domain.OrderStatusPaid {
		if err := p.carts.ClearCart(ctx, order.UserID); err != nil {
			// the order is paid regardless; a leftover cart is visible to the user and harmless
			logEvent.Error().Err(err).Str("user_id", order.UserID).Msg("failed to clear cart after payment")
		}
	}

	if err := p.publisher.Publish(ctx, eventType, events.OrderEvent{
		OrderID:     order.ID.String(),
		UserID:      order.UserID,
		Status:      order.Status.String(),
		Amount:      order.Amount,
		ProviderRef: order.ProviderRef,
		EventID:     ev.ID,
		OccurredAt:  order.UpdatedAt,
	}); err != nil {
		logEvent.Error().Err(err).Msg("failed to publish order event")
	}

	logEvent.Info().Str("status", order.Status.String()).Msg("order transitioned")
	return OutcomeProcessed, nil
}
