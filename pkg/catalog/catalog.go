// Package catalog is the read-only product price lookup used for cart totals.
package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Product is reference data owned by the catalog service.
type Product struct {
	ID         string
	OfferPrice decimal.Decimal
}

// Catalog resolves product prices. A product that does not resolve is reported
// with ok == false, not as an error.
type Catalog interface {
	OfferPrice(ctx context.Context, productID string) (price decimal.Decimal, ok bool, err error)
}

// Static is an in-memory catalog, typically filled from a product list response.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(products ...Product) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(products))}
	s.Replace(products)
	return s
}

// Replace swaps the full product set.
func (s *Static) Replace(products []Product) {
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.OfferPrice
	}

	s.mu.Lock()
	s.prices = prices
	s.mu.Unlock()
}

func (s *Static) OfferPrice(_ context.Context, productID string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[productID]
	return price, ok, nil
}
