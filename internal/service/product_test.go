package service

import (
	"context"
	"net/http"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

type mockProductRepo struct {
	products   map[uuid.UUID]*model.Product
	lastFilter repository.ProductFilter
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	stored := *p
	m.products[p.ID] = &stored
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) ExistsBySKU(_ context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	for _, p := range m.products {
		if p.SKU == sku && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepo) ExistsBySlug(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	for _, p := range m.products {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	m.lastFilter = f
	var all []model.Product
	for _, p := range m.products {
		switch {
		case f.ActiveOnly && !p.IsActive:
			continue
		case f.CategoryID != nil && p.CategoryID != *f.CategoryID:
			continue
		case f.ExcludeID != nil && p.ID == *f.ExcludeID:
			continue
		case f.Featured != nil && p.Featured != *f.Featured:
			continue
		}
		all = append(all, *p)
	}
	slices.SortFunc(all, func(a, b model.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	total := int64(len(all))
	all = all[min(f.Offset, len(all)):]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *p
	m.products[p.ID] = &stored
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) add(p model.Product) *model.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.products[p.ID] = &p
	return &p
}

func assertAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, message, appErr.Message)
}

func ptr[T any](v T) *T { return &v }

func newCatalog(t *testing.T) (*ProductService, *mockProductRepo, *mockCategoryRepo, *model.Category) {
	t.Helper()
	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	men := categories.add(model.Category{Name: "Men", Slug: "men", IsActive: true})
	return NewProductService(products, categories, nil, time.Minute), products, categories, men
}

func validCreateRequest(categoryID uuid.UUID) dto.CreateProductRequest {
	return dto.CreateProductRequest{
		Title:       "Italian Wool Suit",
		Slug:        "italian-wool-suit",
		Description: "Tailored two-piece suit in Italian wool.",
		Price:       ptr(decimal.NewFromInt(2899)),
		Images:      []string{"https://img.example.com/suit.jpg"},
		Category:    categoryID.String(),
		Sizes:       []string{"48", "50", "52"},
		Colors:      []dto.ColorRequest{{Name: "Charcoal", Hex: "#36454F"}},
		InStock:     ptr(6),
		SKU:         "lux-men-001",
	}
}

func TestProductService_Create(t *testing.T) {
	svc, _, _, men := newCatalog(t)

	resp, err := svc.Create(context.Background(), validCreateRequest(men.ID))
	require.NoError(t, err)
	assert.Equal(t, "Italian Wool Suit", resp.Title)
	assert.Equal(t, "LUX-MEN-001", resp.SKU)
	assert.Equal(t, 6, resp.InStock)
	assert.True(t, resp.IsActive)
}

func TestProductService_Create_Rules(t *testing.T) {
	svc, _, _, men := newCatalog(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, validCreateRequest(men.ID))
	require.NoError(t, err)

	dupSKU := validCreateRequest(men.ID)
	dupSKU.Slug = "another-suit"
	_, err = svc.Create(ctx, dupSKU)
	assertAppError(t, err, http.StatusBadRequest, "Product with this SKU already exists")

	dupSlug := validCreateRequest(men.ID)
	dupSlug.SKU = "LUX-MEN-002"
	_, err = svc.Create(ctx, dupSlug)
	assertAppError(t, err, http.StatusBadRequest, "Product with this slug already exists")

	noCategory := validCreateRequest(uuid.New())
	noCategory.SKU, noCategory.Slug = "LUX-MEN-003", "third-suit"
	_, err = svc.Create(ctx, noCategory)
	assertAppError(t, err, http.StatusNotFound, "Category not found")

	badCompare := validCreateRequest(men.ID)
	badCompare.SKU, badCompare.Slug = "LUX-MEN-004", "fourth-suit"
	badCompare.ComparePrice = ptr(decimal.NewFromInt(2899))
	_, err = svc.Create(ctx, badCompare)
	assertAppError(t, err, http.StatusBadRequest, "Compare price must be greater than price")
}

func TestProductService_Update(t *testing.T) {
	svc, repo, _, men := newCatalog(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validCreateRequest(men.ID))
	require.NoError(t, err)

	resp, err := svc.Update(ctx, created.ID, dto.UpdateProductRequest{
		ComparePrice: ptr(decimal.NewFromInt(3499)),
		InStock:      ptr(12),
		SKU:          ptr("lux-men-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.InStock)
	assert.Equal(t, 17, resp.DiscountPercentage)
	assert.Equal(t, 12, repo.products[created.ID].InStock)

	_, err = svc.Update(ctx, uuid.New(), dto.UpdateProductRequest{InStock: ptr(1)})
	assertAppError(t, err, http.StatusNotFound, "Product not found")
}

func TestProductService_GetBySlug_InactiveIsHidden(t *testing.T) {
	svc, repo, _, men := newCatalog(t)
	repo.add(model.Product{Title: "Old Scarf", Slug: "old-scarf", CategoryID: men.ID, IsActive: false})

	_, err := svc.GetBySlug(context.Background(), "old-scarf")
	assertAppError(t, err, http.StatusNotFound, "Product not found")
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc, _, _, _ := newCatalog(t)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assertAppError(t, err, http.StatusNotFound, "Product not found")
}

func TestProductService_List(t *testing.T) {
	svc, repo, _, men := newCatalog(t)
	repo.add(model.Product{Title: "Suit", Slug: "suit", CategoryID: men.ID, IsActive: true})

	items, page, err := svc.List(context.Background(), dto.ListProductsQuery{
		Page: 2, Limit: 12, Category: "men", Sizes: "S, M,,L", MinPrice: ptr(100.0), Sort: "-price",
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, &dto.Pagination{Page: 2, Limit: 12, Total: 1, Pages: 1}, page)

	f := repo.lastFilter
	assert.True(t, f.ActiveOnly)
	require.NotNil(t, f.CategoryID)
	assert.Equal(t, men.ID, *f.CategoryID)
	assert.Equal(t, []string{"S", "M", "L"}, f.Sizes)
	assert.True(t, f.MinPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, repository.SortPriceDesc, f.Sort)
	assert.Equal(t, 12, f.Offset)

	_, _, err = svc.List(context.Background(), dto.ListProductsQuery{Page: 1, Limit: 12, Category: "unknown"})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.CategoryID)
}

func TestProductService_FeaturedAndRelated(t *testing.T) {
	svc, repo, categories, men := newCatalog(t)
	women := categories.add(model.Category{Name: "Women", Slug: "women", IsActive: true})
	suit := repo.add(model.Product{Title: "Suit", CategoryID: men.ID, IsActive: true, Featured: true})
	repo.add(model.Product{Title: "Tie", CategoryID: men.ID, IsActive: true})
	repo.add(model.Product{Title: "Dress", CategoryID: women.ID, IsActive: true, Featured: true})
	repo.add(model.Product{Title: "Hidden", CategoryID: men.ID, IsActive: false, Featured: true})
	ctx := context.Background()

	featured, err := svc.Featured(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, featured, 2)
	assert.Equal(t, defaultFeaturedLimit, repo.lastFilter.Limit)

	related, err := svc.Related(ctx, suit.ID, men.ID, 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "Tie", related[0].Title)
}

func TestProductService_Delete(t *testing.T) {
	svc, repo, _, men := newCatalog(t)
	p := repo.add(model.Product{Title: "Suit", CategoryID: men.ID, IsActive: true})

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	assert.Empty(t, repo.products)

	assertAppError(t, svc.Delete(context.Background(), p.ID), http.StatusNotFound, "Product not found")
}

func TestProductService_CachedCopyFollowsCategoryEdits(t *testing.T) {
	svc, _, categories, men := newCatalog(t)
	ctx := context.Background()

	stored := withoutCategoryDetails(dto.ProductResponse{
		Title:    "Suit",
		Category: &model.CategoryRef{ID: men.ID, Name: "Men", Slug: "men"},
	})
	assert.Equal(t, &model.CategoryRef{ID: men.ID}, stored.Category)

	_, err := NewCategoryService(categories).Update(ctx, men.ID,
		dto.UpdateCategoryRequest{Name: ptr("Menswear"), Slug: ptr("menswear")})
	require.NoError(t, err)

	require.NoError(t, svc.expandCategory(ctx, &stored))
	assert.Equal(t, &model.CategoryRef{ID: men.ID, Name: "Menswear", Slug: "menswear"}, stored.Category)

	orphan := dto.ProductResponse{Category: &model.CategoryRef{ID: uuid.New()}}
	require.NoError(t, svc.expandCategory(ctx, &orphan))
	assert.Nil(t, orphan.Category)
}

func TestProductService_RedisCacheSeesCategoryRename(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	products := newMockProductRepo()
	categories := newMockCategoryRepo()
	men := categories.add(model.Category{Name: "Men", Slug: "men", IsActive: true})
	svc := NewProductService(products, categories, client, time.Minute)
	ctx := context.Background()

	p := products.add(model.Product{
		Title: "Suit", Slug: "suit-" + uuid.NewString(), CategoryID: men.ID, IsActive: true,
		Category: &model.CategoryRef{ID: men.ID, Name: men.Name, Slug: men.Slug},
	})
	t.Cleanup(func() { svc.Invalidate(context.Background(), p) })

	resp, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "men", resp.Category.Slug)

	_, err = NewCategoryService(categories).Update(ctx, men.ID,
		dto.UpdateCategoryRequest{Name: ptr("Menswear"), Slug: ptr("menswear")})
	require.NoError(t, err)

	// The product row is gone, so this read can only come from the cache.
	delete(products.products, p.ID)
	resp, err = svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Suit", resp.Title)
	assert.Equal(t, "Menswear", resp.Category.Name)
	assert.Equal(t, "menswear", resp.Category.Slug)
}
