package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luxora/storefront-api/internal/model"
)

type categoryDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Slug        string    `bson:"slug"`
	Description string    `bson:"description,omitempty"`
	Image       string    `bson:"image,omitempty"`
	IsActive    bool      `bson:"isActive"`
	SortOrder   int       `bson:"sortOrder"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func newCategoryDoc(c *model.Category) categoryDoc {
	return categoryDoc{
		ID:          c.ID.String(),
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		IsActive:    c.IsActive,
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d *categoryDoc) toModel(productsCount int) model.Category {
	return model.Category{
		ID:            parseID(d.ID),
		Name:          d.Name,
		Slug:          d.Slug,
		Description:   d.Description,
		Image:         d.Image,
		IsActive:      d.IsActive,
		SortOrder:     d.SortOrder,
		ProductsCount: productsCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type mongoCategoryRepo struct {
	coll     *mongo.Collection
	products *mongo.Collection
}

func NewMongoCategoryRepository(db *mongo.Database) CategoryRepository {
	return &mongoCategoryRepo{
		coll:     db.Collection(categoriesCollection),
		products: db.Collection(productsCollection),
	}
}

func (r *mongoCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	now := time.Now().UTC()
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = now, now

	if _, err := r.coll.InsertOne(ctx, newCategoryDoc(c)); err != nil {
		if dup, ok := mongoDuplicate(err, "slug"); ok {
			return dup
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *mongoCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoCategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *mongoCategoryRepo) findOne(ctx context.Context, filter bson.M) (*model.Category, error) {
	var doc categoryDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	count, err := r.products.CountDocuments(ctx, bson.M{"category": doc.ID, "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("count category products: %w", err)
	}
	c := doc.toModel(int(count))
	return &c, nil
}

func (r *mongoCategoryRepo) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	counts, err := r.productCounts(ctx)
	if err != nil {
		return nil, err
	}

	categories := make([]model.Category, 0, len(docs))
	for i := range docs {
		categories = append(categories, docs[i].toModel(counts[docs[i].ID]))
	}
	return categories, nil
}

func (r *mongoCategoryRepo) productCounts(ctx context.Context) (map[string]int, error) {
	cursor, err := r.products.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count products per category: %w", err)
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode product counts: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

func (r *mongoCategoryRepo) Update(ctx context.Context, c *model.Category) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": c.ID.String()}, bson.M{"$set": bson.M{
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"image":       c.Image,
		"isActive":    c.IsActive,
		"sortOrder":   c.SortOrder,
		"updatedAt":   c.UpdatedAt,
	}})
	if err != nil {
		if dup, ok := mongoDuplicate(err, "slug"); ok {
			return dup
		}
		return fmt.Errorf("update category: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoCategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	inUse, err := r.products.CountDocuments(ctx, bson.M{"category": id.String()}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check category products: %w", err)
	}
	if inUse > 0 {
		return ErrInUse
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
