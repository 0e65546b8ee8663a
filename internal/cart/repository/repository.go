package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/shop-api/internal/cart/domain"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrStaleSnapshot = errors.New("cart snapshot is older than the stored one")
)

// CartRepository stores the authoritative cart per user. Every method is a
// single round trip to the store; there is no read-modify-write.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// ReplaceCart overwrites the stored items wholesale. A seq > 0 is applied only
	// when it is newer than the stored one, otherwise ErrStaleSnapshot is returned.
	ReplaceCart(ctx context.Context, userID string, items domain.Snapshot, seq int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}
