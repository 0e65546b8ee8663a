package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object PaymentObject `json:"object"`
}

// PaymentObject carries the provider reference stored on the order.
type PaymentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (e *Event) handled() bool {
	return e.Type == EventPaymentSucceeded || e.Type == EventPaymentFailed
}

func parseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(ev.ID) == "" || strings.TrimSpace(ev.Type) == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	if ev.handled() && strings.TrimSpace(ev.Data.Object.ID) == "" {
		return nil, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}
	return &ev, nil
}
