package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepo_CRUD(t *testing.T) {
	requireDB(t)
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()
	cat := seedCategory(t, "women")

	p := seedProduct(t, cat.ID, "silk-dress", 899, 12)
	compare := decimal.NewFromInt(1199)
	p.ComparePrice = &compare

	found, err := repo.GetBySlug(ctx, "silk-dress")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.Category)
	assert.Equal(t, "women", found.Category.Slug)
	assert.Nil(t, found.ComparePrice)

	p.InStock = 42
	require.NoError(t, repo.Update(ctx, p))

	updated, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.InStock)
	require.NotNil(t, updated.ComparePrice)
	assert.True(t, updated.ComparePrice.Equal(compare))
	assert.Equal(t, 25, updated.DiscountPercentage())

	exists, err := repo.ExistsBySKU(ctx, p.SKU, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsBySKU(ctx, p.SKU, p.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Delete(ctx, p.ID))
	deleted, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
}

func TestProductRepo_ListFilters(t *testing.T) {
	requireDB(t)
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()
	men := seedCategory(t, "men")
	women := seedCategory(t, "women")

	suit := seedProduct(t, men.ID, "wool-suit", 2899, 6)
	seedProduct(t, men.ID, "silk-tie", 199, 20)
	dress := seedProduct(t, women.ID, "silk-dress", 899, 8)
	dress.Featured = true
	require.NoError(t, repo.Update(ctx, dress))
	inactive := seedProduct(t, women.ID, "old-scarf", 99, 3)
	inactive.IsActive = false
	require.NoError(t, repo.Update(ctx, inactive))

	products, total, err := repo.List(ctx, ProductFilter{ActiveOnly: true, Limit: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 3)

	products, total, err = repo.List(ctx, ProductFilter{ActiveOnly: true, CategoryID: &men.ID, Sort: SortPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "silk-tie", products[0].Slug)
	assert.Equal(t, "wool-suit", products[1].Slug)

	min := decimal.NewFromInt(500)
	_, total, err = repo.List(ctx, ProductFilter{ActiveOnly: true, MinPrice: &min})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	products, _, err = repo.List(ctx, ProductFilter{ActiveOnly: true, Search: "silk"})
	require.NoError(t, err)
	assert.Len(t, products, 2)

	featured := true
	products, _, err = repo.List(ctx, ProductFilter{ActiveOnly: true, Featured: &featured})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, dress.ID, products[0].ID)

	products, _, err = repo.List(ctx, ProductFilter{ActiveOnly: true, CategoryID: &men.ID, ExcludeID: &suit.ID})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "silk-tie", products[0].Slug)

	products, total, err = repo.List(ctx, ProductFilter{ActiveOnly: true, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 1)
}
