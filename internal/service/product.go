package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

const (
	defaultFeaturedLimit = 8
	defaultRelatedLimit  = 4
)

type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	redisClient  *redis.Client
	cacheTTL     time.Duration
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		redisClient:  redisClient,
		cacheTTL:     cacheTTL,
	}
}

func productIDKey(id uuid.UUID) string { return "product:" + id.String() }

func productSlugKey(slug string) string { return "product:slug:" + slug }

func (s *ProductService) List(ctx context.Context, q dto.ListProductsQuery) ([]dto.ProductResponse, *dto.Pagination, error) {
	filter := repository.ProductFilter{
		ActiveOnly: true,
		Featured:   q.Featured,
		Sizes:      splitCSV(q.Sizes),
		Colors:     splitCSV(q.Colors),
		Search:     strings.TrimSpace(q.Search),
		Sort:       repository.ProductSort(q.Sort),
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	}
	if q.MinPrice != nil {
		d := decimal.NewFromFloat(*q.MinPrice)
		filter.MinPrice = &d
	}
	if q.MaxPrice != nil {
		d := decimal.NewFromFloat(*q.MaxPrice)
		filter.MaxPrice = &d
	}

	// An unknown category slug leaves the listing unfiltered.
	if q.Category != "" {
		category, err := s.categoryRepo.GetBySlug(ctx, q.Category)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve category: %w", err)
		}
		if category != nil {
			filter.CategoryID = &category.ID
		}
	}

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	return toProductResponses(products), dto.NewPagination(q.Page, q.Limit, total), nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	if resp := s.cached(ctx, productIDKey(id)); resp != nil {
		return resp, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, apperror.NotFound("Product not found")
	}

	resp := toProductResponse(product)
	s.store(ctx, productIDKey(id), resp)
	return &resp, nil
}

// GetBySlug only resolves active products.
func (s *ProductService) GetBySlug(ctx context.Context, slug string) (*dto.ProductResponse, error) {
	if resp := s.cached(ctx, productSlugKey(slug)); resp != nil && resp.IsActive {
		return resp, nil
	}

	product, err := s.productRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil, apperror.NotFound("Product not found")
	}

	resp := toProductResponse(product)
	s.store(ctx, productSlugKey(slug), resp)
	return &resp, nil
}

func (s *ProductService) Featured(ctx context.Context, limit int) ([]dto.ProductResponse, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	featured := true
	products, _, err := s.productRepo.List(ctx, repository.ProductFilter{
		ActiveOnly: true,
		Featured:   &featured,
		Sort:       repository.SortNewest,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}
	return toProductResponses(products), nil
}

// Related lists other active products of the same category.
func (s *ProductService) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]dto.ProductResponse, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	products, _, err := s.productRepo.List(ctx, repository.ProductFilter{
		ActiveOnly: true,
		CategoryID: &categoryID,
		ExcludeID:  &productID,
		Sort:       repository.SortNewest,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	return toProductResponses(products), nil
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	categoryID, err := uuid.Parse(req.Category)
	if err != nil {
		return nil, apperror.BadRequest("Invalid category")
	}

	product := &model.Product{
		Title:          strings.TrimSpace(req.Title),
		Slug:           req.Slug,
		Description:    req.Description,
		Price:          *req.Price,
		ComparePrice:   req.ComparePrice,
		Images:         req.Images,
		CategoryID:     categoryID,
		Sizes:          req.Sizes,
		Colors:         toColors(req.Colors),
		InStock:        *req.InStock,
		SKU:            strings.ToUpper(strings.TrimSpace(req.SKU)),
		Featured:       req.Featured,
		IsActive:       true,
		Tags:           req.Tags,
		Weight:         req.Weight,
		Dimensions:     toDimensions(req.Dimensions),
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
	}
	if err := s.checkProduct(ctx, product, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, duplicateProductError(err, "create product")
	}

	created, err := s.productRepo.GetByID(ctx, product.ID)
	if err != nil || created == nil {
		created = product
	}
	resp := toProductResponse(created)
	return &resp, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, apperror.NotFound("Product not found")
	}
	oldSlug := product.Slug

	if req.Title != nil {
		product.Title = strings.TrimSpace(*req.Title)
	}
	if req.Slug != nil {
		product.Slug = *req.Slug
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ComparePrice != nil {
		product.ComparePrice = req.ComparePrice
		if req.ComparePrice.IsZero() {
			product.ComparePrice = nil
		}
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Category != nil {
		categoryID, err := uuid.Parse(*req.Category)
		if err != nil {
			return nil, apperror.BadRequest("Invalid category")
		}
		product.CategoryID = categoryID
	}
	if req.Sizes != nil {
		product.Sizes = req.Sizes
	}
	if req.Colors != nil {
		product.Colors = toColors(req.Colors)
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}
	if req.SKU != nil {
		product.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}
	if req.Weight != nil {
		product.Weight = req.Weight
	}
	if req.Dimensions != nil {
		product.Dimensions = toDimensions(req.Dimensions)
	}
	if req.SEOTitle != nil {
		product.SEOTitle = *req.SEOTitle
	}
	if req.SEODescription != nil {
		product.SEODescription = *req.SEODescription
	}

	if err := s.checkProduct(ctx, product, product.ID); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Product not found")
		}
		return nil, duplicateProductError(err, "update product")
	}

	s.invalidate(ctx, product.ID, oldSlug, product.Slug)

	updated, err := s.productRepo.GetByID(ctx, id)
	if err != nil || updated == nil {
		updated = product
	}
	resp := toProductResponse(updated)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return apperror.NotFound("Product not found")
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Product not found")
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx, id, product.Slug)
	return nil
}

// Invalidate drops cached copies of products whose stock or fields changed elsewhere.
func (s *ProductService) Invalidate(ctx context.Context, products ...*model.Product) {
	for _, p := range products {
		s.invalidate(ctx, p.ID, p.Slug)
	}
}

// checkProduct enforces the rules that span fields or rows.
func (s *ProductService) checkProduct(ctx context.Context, p *model.Product, self uuid.UUID) error {
	if p.ComparePrice != nil && !p.ComparePrice.GreaterThan(p.Price) {
		return apperror.BadRequest("Compare price must be greater than price")
	}

	category, err := s.categoryRepo.GetByID(ctx, p.CategoryID)
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return apperror.NotFound("Category not found")
	}

	exists, err := s.productRepo.ExistsBySKU(ctx, p.SKU, self)
	if err != nil {
		return err
	}
	if exists {
		return apperror.BadRequest("Product with this SKU already exists")
	}

	exists, err = s.productRepo.ExistsBySlug(ctx, p.Slug, self)
	if err != nil {
		return err
	}
	if exists {
		return apperror.BadRequest("Product with this slug already exists")
	}
	return nil
}

// duplicateProductError covers a unique index firing after checkProduct passed.
func duplicateProductError(err error, op string) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		switch dup.Field {
		case "sku":
			return apperror.BadRequest("Product with this SKU already exists")
		case "slug":
			return apperror.BadRequest("Product with this slug already exists")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *ProductService) cached(ctx context.Context, key string) *dto.ProductResponse {
	if s.redisClient == nil {
		return nil
	}
	data, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var resp dto.ProductResponse
	if json.Unmarshal(data, &resp) != nil {
		return nil
	}
	if err := s.expandCategory(ctx, &resp); err != nil {
		return nil
	}
	return &resp
}

// store caches the product with only the category ID; the name and slug are
// read back on every hit so category edits never leave stale copies behind.
func (s *ProductService) store(ctx context.Context, key string, resp dto.ProductResponse) {
	if s.redisClient == nil {
		return
	}
	if data, err := json.Marshal(withoutCategoryDetails(resp)); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}
}

func withoutCategoryDetails(resp dto.ProductResponse) dto.ProductResponse {
	if resp.Category != nil {
		resp.Category = &model.CategoryRef{ID: resp.Category.ID}
	}
	return resp
}

// expandCategory fills the category reference of a cached product from the
// category table. A deleted category leaves the reference empty.
func (s *ProductService) expandCategory(ctx context.Context, resp *dto.ProductResponse) error {
	if resp.Category == nil {
		return nil
	}
	category, err := s.categoryRepo.GetByID(ctx, resp.Category.ID)
	if err != nil {
		return err
	}
	if category == nil {
		resp.Category = nil
		return nil
	}
	resp.Category = &model.CategoryRef{ID: category.ID, Name: category.Name, Slug: category.Slug}
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id uuid.UUID, slugs ...string) {
	if s.redisClient == nil {
		return
	}
	keys := []string{productIDKey(id)}
	for _, slug := range slugs {
		keys = append(keys, productSlugKey(slug))
	}
	s.redisClient.Del(ctx, keys...)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toColors(req []dto.ColorRequest) []model.Color {
	colors := make([]model.Color, 0, len(req))
	for _, c := range req {
		colors = append(colors, model.Color{Name: strings.TrimSpace(c.Name), Hex: c.Hex})
	}
	return colors
}

func toDimensions(req *dto.DimensionsRequest) *model.Dimensions {
	if req == nil {
		return nil
	}
	return &model.Dimensions{Length: *req.Length, Width: *req.Width, Height: *req.Height}
}

func toProductResponses(products []model.Product) []dto.ProductResponse {
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	return items
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:                 p.ID,
		Title:              p.Title,
		Slug:               p.Slug,
		Description:        p.Description,
		Price:              p.Price,
		ComparePrice:       p.ComparePrice,
		DiscountPercentage: p.DiscountPercentage(),
		Images:             p.Images,
		Category:           p.Category,
		Sizes:              p.Sizes,
		Colors:             p.Colors,
		InStock:            p.InStock,
		SKU:                p.SKU,
		Featured:           p.Featured,
		IsActive:           p.IsActive,
		Tags:               p.Tags,
		Weight:             p.Weight,
		Dimensions:         p.Dimensions,
		SEOTitle:           p.SEOTitle,
		SEODescription:     p.SEODescription,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}
