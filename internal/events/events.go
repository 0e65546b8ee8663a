// Package events publishes order lifecycle events for downstream consumers
// (fulfilment, notifications). Delivery is best effort: the order row is the
// source of truth and a failed publish never rolls back a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderPaid   = "order.paid"
	TypeOrderFailed = "order.failed"
)

// OrderEvent is the payload written for every order transition.
type OrderEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	ProviderRef string          `json:"provider_ref"`
	EventID     string          `json:"event_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, event OrderEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return NewKafkaPublisherWithWriter(w)
}

func NewKafkaPublisherWithWriter(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID), // order id keeps one order on one partition
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, eventType string, event OrderEvent) error {
	p.log.Info().
		Str("event_type", eventType).
		Str("order_id", event.OrderID).
		Str("user_id", event.UserID).
		Str("status", event.Status).
		Msg("order event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
