package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/shop-api/internal/cart/domain"
)

// CartCache is a read-through cache guarded by a per-user generation.
// Delete bumps the generation; Set only stores a cart loaded under the
// generation that is still current.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, cart *domain.Cart, generation int64) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss         = errors.New("cache miss")
	ErrGenerationChanged = errors.New("cart changed since it was loaded")
)
