package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/cart/cache"
	"github.com/fjod/go_cart/shop-api/internal/cart/domain"
	"github.com/fjod/go_cart/shop-api/internal/cart/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var ErrMissingUser = errors.New("user id is required")

const cacheOpTimeout = time.Second

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // prevents cache stampede
	log   zerolog.Logger
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, log zerolog.Logger) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "cart_service").Logger(),
	}
}

// GetCart returns the stored cart, or an empty one for a user who has none.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("cache get failed")
		}

		// read before the store so a write landing in between invalidates this load
		gen, genErr := s.cache.Generation(ctx, userID)
		if genErr != nil {
			s.log.Warn().Err(genErr).Str("user_id", userID).Msg("cache generation failed")
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return &domain.Cart{UserID: userID, Items: domain.Snapshot{}}, nil
		}
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			return cart, nil
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
		defer cancel()
		switch err := s.cache.Set(setCtx, userID, cart, gen); {
		case err == nil:
		case errors.Is(err, cache.ErrGenerationChanged):
			s.log.Debug().Str("user_id", userID).Msg("cart changed while loading, not cached")
		default:
			s.log.Warn().Err(err).Str("user_id", userID).Msg("cache set failed")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Reconcile replaces the user's stored cart with items in one write. On any
// error the stored cart is left as it was.
func (s *CartService) Reconcile(ctx context.Context, userID string, items domain.Snapshot, seq int64) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if err := items.Validate(); err != nil {
		return nil, err
	}
	if seq < 0 {
		return nil, fmt.Errorf("%w: seq must not be negative", domain.ErrInvalidSnapshot)
	}

	cart, err := s.repo.ReplaceCart(ctx, userID, items, seq)
	if err != nil {
		if !errors.Is(err, repository.ErrStaleSnapshot) {
			s.log.Error().Err(err).Str("user_id", userID).Msg("replace cart failed")
		}
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// ClearCart empties the user's cart. A user without a stored cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}

	err := s.repo.ClearCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.Error().Err(err).Str("user_id", userID).Msg("clear cart failed")
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed")
	}
}
