package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/shop-api/internal/order/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrDuplicateReference = errors.New("order for this provider reference already exists")
	ErrIllegalTransition  = errors.New("illegal transition of order status")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByReference(ctx context.Context, providerRef string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// TransitionByReference moves a pending order to a terminal status in a
	// single conditional write. transitioned is false when the order was
	// already terminal; the returned order then reflects the stored state.
	TransitionByReference(ctx context.Context, providerRef string, to domain.OrderStatus) (order *domain.Order, transitioned bool, err error)
	Close() error
}
