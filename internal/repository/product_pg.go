package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/luxora/storefront-api/internal/model"
)

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productSelect = `SELECT p.id, p.title, p.slug, p.description, p.price, p.compare_price, p.images,
	p.category_id, c.name, c.slug, p.sizes, p.colors, p.in_stock, p.sku, p.featured, p.is_active,
	p.tags, p.weight, p.dimensions, p.seo_title, p.seo_description, p.created_at, p.updated_at
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

var productOrderBy = map[ProductSort]string{
	SortNewest:    "p.created_at DESC",
	SortOldest:    "p.created_at ASC",
	SortPriceAsc:  "p.price ASC",
	SortPriceDesc: "p.price DESC",
	SortTitleAsc:  "p.title ASC",
	SortTitleDesc: "p.title DESC",
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p            model.Product
		comparePrice decimal.NullDecimal
		catName      *string
		catSlug      *string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.Price, &comparePrice, &p.Images,
		&p.CategoryID, &catName, &catSlug, &p.Sizes, &p.Colors, &p.InStock, &p.SKU, &p.Featured, &p.IsActive,
		&p.Tags, &p.Weight, &p.Dimensions, &p.SEOTitle, &p.SEODescription, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if comparePrice.Valid {
		p.ComparePrice = &comparePrice.Decimal
	}
	if catName != nil && catSlug != nil {
		p.Category = &model.CategoryRef{ID: p.CategoryID, Name: *catName, Slug: *catSlug}
	}
	return &p, nil
}

func (r *pgProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.ID = uuid.New()
	if p.Tags == nil {
		p.Tags = []string{}
	}
	query := `INSERT INTO products (id, title, slug, description, price, compare_price, images, category_id,
			  sizes, colors, in_stock, sku, featured, is_active, tags, weight, dimensions, seo_title,
			  seo_description, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
			  RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Price, p.ComparePrice, p.Images, p.CategoryID,
		p.Sizes, p.Colors, p.InStock, p.SKU, p.Featured, p.IsActive, p.Tags, p.Weight, p.Dimensions,
		p.SEOTitle, p.SEODescription,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if dup, ok := uniqueViolation(err); ok {
			return dup
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productSelect+` WHERE p.slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) ExistsBySKU(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND id <> $2)`, sku, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sku: %w", err)
	}
	return exists, nil
}

func (r *pgProductRepo) ExistsBySlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1 AND id <> $2)`, slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func buildProductWhere(f ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ActiveOnly {
		conds = append(conds, "p.is_active")
	}
	if f.CategoryID != nil {
		conds = append(conds, "p.category_id = "+arg(*f.CategoryID))
	}
	if f.ExcludeID != nil {
		conds = append(conds, "p.id <> "+arg(*f.ExcludeID))
	}
	if f.Featured != nil {
		conds = append(conds, "p.featured = "+arg(*f.Featured))
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= "+arg(*f.MaxPrice))
	}
	if len(f.Sizes) > 0 {
		conds = append(conds, "p.sizes && "+arg(f.Sizes))
	}
	if len(f.Colors) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM jsonb_array_elements(p.colors) col WHERE col->>'name' = ANY("+arg(f.Colors)+"))")
	}
	if f.Search != "" {
		n := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(p.title ILIKE %[1]s OR p.description ILIKE %[1]s OR EXISTS (SELECT 1 FROM unnest(p.tags) t WHERE t ILIKE %[1]s))", n,
		))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error) {
	limit, offset := pageDefaults(f.Limit, f.Offset)
	where, args := buildProductWhere(f)

	orderBy, ok := productOrderBy[f.Sort]
	if !ok {
		orderBy = productOrderBy[SortNewest]
	}

	var (
		products []model.Product
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		query := fmt.Sprintf(`%s%s ORDER BY %s, p.id LIMIT %d OFFSET %d`, productSelect, where, orderBy, limit, offset)
		rows, err := r.pool.Query(gctx, query, args...)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return fmt.Errorf("scan product: %w", err)
			}
			products = append(products, *p)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *pgProductRepo) Update(ctx context.Context, p *model.Product) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	query := `UPDATE products SET title = $2, slug = $3, description = $4, price = $5, compare_price = $6,
			  images = $7, category_id = $8, sizes = $9, colors = $10, in_stock = $11, sku = $12,
			  featured = $13, is_active = $14, tags = $15, weight = $16, dimensions = $17,
			  seo_title = $18, seo_description = $19, updated_at = NOW()
			  WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Price, p.ComparePrice, p.Images, p.CategoryID,
		p.Sizes, p.Colors, p.InStock, p.SKU, p.Featured, p.IsActive, p.Tags, p.Weight, p.Dimensions,
		p.SEOTitle, p.SEODescription,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if dup, ok := uniqueViolation(err); ok {
			return dup
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
