package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxora/storefront-api/internal/model"
)

type pgCategoryRepo struct{ pool *pgxpool.Pool }

func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &pgCategoryRepo{pool: pool}
}

// products_count only counts active products, which is what the storefront shows.
const categorySelect = `SELECT c.id, c.name, c.slug, c.description, c.image, c.is_active, c.sort_order,
	(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id AND p.is_active) AS products_count,
	c.created_at, c.updated_at
	FROM categories c`

func scanCategory(row pgx.Row, c *model.Category) error {
	return row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &c.IsActive, &c.SortOrder,
		&c.ProductsCount, &c.CreatedAt, &c.UpdatedAt,
	)
}

func (r *pgCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	c.ID = uuid.New()
	query := `INSERT INTO categories (id, name, slug, description, image, is_active, sort_order, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Slug, c.Description, c.Image, c.IsActive, c.SortOrder,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if dup, ok := uniqueViolation(err); ok {
			return dup
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	c := &model.Category{}
	if err := scanCategory(r.pool.QueryRow(ctx, categorySelect+` WHERE c.id = $1`, id), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *pgCategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	c := &model.Category{}
	if err := scanCategory(r.pool.QueryRow(ctx, categorySelect+` WHERE c.slug = $1`, slug), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	return c, nil
}

func (r *pgCategoryRepo) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		categorySelect+` WHERE ($1 = FALSE OR c.is_active) ORDER BY c.sort_order, c.name`, activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *pgCategoryRepo) Update(ctx context.Context, c *model.Category) error {
	query := `UPDATE categories SET name = $2, slug = $3, description = $4, image = $5,
			  is_active = $6, sort_order = $7, updated_at = NOW()
			  WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Slug, c.Description, c.Image, c.IsActive, c.SortOrder,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if dup, ok := uniqueViolation(err); ok {
			return dup
		}
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *pgCategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if foreignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
