package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	c := NewStatic(Product{ID: "A", OfferPrice: decimal.RequireFromString("19.999")})

	price, ok, err := c.OfferPrice(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "19.999", price.String())

	_, ok, err = c.OfferPrice(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Replace([]Product{{ID: "B", OfferPrice: decimal.NewFromInt(5)}})
	_, ok, _ = c.OfferPrice(context.Background(), "A")
	assert.False(t, ok, "replace drops old products")
}
