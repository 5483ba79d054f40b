package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "silk-evening-dress", slugify("Silk Evening Dress"))
	assert.Equal(t, "swiss-made-watch", slugify("Swiss-made  Watch!"))
}

func TestBuildProducts(t *testing.T) {
	men := categories[1]
	products := buildProducts(men)
	require.Len(t, products, 5)

	first := products[0]
	assert.Equal(t, "Italian Wool Suit", first.Title)
	assert.Equal(t, "italian-wool-suit", first.Slug)
	assert.Equal(t, "2899", first.Price.String())
	assert.Equal(t, "LUX-MEN-001", first.SKU)
	assert.Equal(t, []string{"S", "M", "L", "XL", "XXL"}, first.Sizes)
	assert.Len(t, first.Colors, 3)
	assert.True(t, first.Featured)
	assert.False(t, products[2].Featured)
	assert.Equal(t, "LUX-MEN-005", products[4].SKU)

	for _, p := range products {
		assert.GreaterOrEqual(t, p.InStock, 10)
		assert.LessOrEqual(t, p.InStock, 59)
		assert.True(t, p.IsActive)
	}
}
