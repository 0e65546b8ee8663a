package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s.IsTerminal()
}

// CanTransitionTo reports whether from -> to is allowed. Only pending orders move,
// and only into a terminal state.
func CanTransitionTo(from, to OrderStatus) bool {
	return from == OrderStatusPending && to.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	ProviderRef string          `json:"provider_ref"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
