package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/luxora/storefront-api/internal/model"
)

type productDoc struct {
	ID             string                `bson:"_id"`
	Title          string                `bson:"title"`
	Slug           string                `bson:"slug"`
	Description    string                `bson:"description"`
	Price          primitive.Decimal128  `bson:"price"`
	ComparePrice   *primitive.Decimal128 `bson:"comparePrice,omitempty"`
	Images         []string              `bson:"images"`
	Category       string                `bson:"category"`
	Sizes          []string              `bson:"sizes"`
	Colors         []model.Color         `bson:"colors"`
	InStock        int                   `bson:"inStock"`
	SKU            string                `bson:"sku"`
	Featured       bool                  `bson:"featured"`
	IsActive       bool                  `bson:"isActive"`
	Tags           []string              `bson:"tags"`
	Weight         *float64              `bson:"weight,omitempty"`
	Dimensions     *model.Dimensions     `bson:"dimensions,omitempty"`
	SEOTitle       string                `bson:"seoTitle,omitempty"`
	SEODescription string                `bson:"seoDescription,omitempty"`
	CreatedAt      time.Time             `bson:"createdAt"`
	UpdatedAt      time.Time             `bson:"updatedAt"`
}

func newProductDoc(p *model.Product) productDoc {
	doc := productDoc{
		ID:             p.ID.String(),
		Title:          p.Title,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          toDecimal128(p.Price),
		Images:         p.Images,
		Category:       p.CategoryID.String(),
		Sizes:          p.Sizes,
		Colors:         p.Colors,
		InStock:        p.InStock,
		SKU:            p.SKU,
		Featured:       p.Featured,
		IsActive:       p.IsActive,
		Tags:           p.Tags,
		Weight:         p.Weight,
		Dimensions:     p.Dimensions,
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if p.ComparePrice != nil {
		cp := toDecimal128(*p.ComparePrice)
		doc.ComparePrice = &cp
	}
	return doc
}

func (d *productDoc) toModel() model.Product {
	p := model.Product{
		ID:             parseID(d.ID),
		Title:          d.Title,
		Slug:           d.Slug,
		Description:    d.Description,
		Price:          fromDecimal128(d.Price),
		Images:         d.Images,
		CategoryID:     parseID(d.Category),
		Sizes:          d.Sizes,
		Colors:         d.Colors,
		InStock:        d.InStock,
		SKU:            d.SKU,
		Featured:       d.Featured,
		IsActive:       d.IsActive,
		Tags:           d.Tags,
		Weight:         d.Weight,
		Dimensions:     d.Dimensions,
		SEOTitle:       d.SEOTitle,
		SEODescription: d.SEODescription,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.ComparePrice != nil {
		cp := fromDecimal128(*d.ComparePrice)
		p.ComparePrice = &cp
	}
	return p
}

var productSortFields = map[ProductSort]bson.D{
	SortNewest:    {{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
	SortOldest:    {{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
	SortPriceAsc:  {{Key: "price", Value: 1}, {Key: "_id", Value: 1}},
	SortPriceDesc: {{Key: "price", Value: -1}, {Key: "_id", Value: 1}},
	SortTitleAsc:  {{Key: "title", Value: 1}, {Key: "_id", Value: 1}},
	SortTitleDesc: {{Key: "title", Value: -1}, {Key: "_id", Value: 1}},
}

type mongoProductRepo struct {
	coll       *mongo.Collection
	categories *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepo{
		coll:       db.Collection(productsCollection),
		categories: db.Collection(categoriesCollection),
	}
}

func (r *mongoProductRepo) Create(ctx context.Context, p *model.Product) error {
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.coll.InsertOne(ctx, newProductDoc(p)); err != nil {
		if dup, ok := mongoDuplicate(err, "sku"); ok {
			return dup
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *mongoProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoProductRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *mongoProductRepo) findOne(ctx context.Context, filter bson.M) (*model.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	products := []model.Product{doc.toModel()}
	if err := r.expandCategories(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// expandCategories fills Product.Category with the referenced category's name and slug.
func (r *mongoProductRepo) expandCategories(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	seen := make(map[uuid.UUID]bool, len(products))
	for _, p := range products {
		if !seen[p.CategoryID] {
			seen[p.CategoryID] = true
			ids = append(ids, p.CategoryID.String())
		}
	}

	cursor, err := r.categories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "slug": 1}))
	if err != nil {
		return fmt.Errorf("load product categories: %w", err)
	}
	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("decode product categories: %w", err)
	}

	refs := make(map[uuid.UUID]*model.CategoryRef, len(docs))
	for _, d := range docs {
		id := parseID(d.ID)
		refs[id] = &model.CategoryRef{ID: id, Name: d.Name, Slug: d.Slug}
	}
	for i := range products {
		products[i].Category = refs[products[i].CategoryID]
	}
	return nil
}

func (r *mongoProductRepo) ExistsBySKU(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, bson.M{"sku": sku, "_id": bson.M{"$ne": excludeID.String()}})
}

func (r *mongoProductRepo) ExistsBySlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, bson.M{"slug": slug, "_id": bson.M{"$ne": excludeID.String()}})
}

func (r *mongoProductRepo) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check product: %w", err)
	}
	return n > 0, nil
}

func buildProductFilter(f ProductFilter) bson.M {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.CategoryID != nil {
		filter["category"] = f.CategoryID.String()
	}
	if f.ExcludeID != nil {
		filter["_id"] = bson.M{"$ne": f.ExcludeID.String()}
	}
	if f.Featured != nil {
		filter["featured"] = *f.Featured
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = toDecimal128(*f.MinPrice)
		}
		if f.MaxPrice != nil {
			price["$lte"] = toDecimal128(*f.MaxPrice)
		}
		filter["price"] = price
	}
	if len(f.Sizes) > 0 {
		filter["sizes"] = bson.M{"$in": f.Sizes}
	}
	if len(f.Colors) > 0 {
		filter["colors.name"] = bson.M{"$in": f.Colors}
	}
	if f.Search != "" {
		filter["$text"] = bson.M{"$search": f.Search}
	}
	return filter
}

func (r *mongoProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error) {
	limit, offset := pageDefaults(f.Limit, f.Offset)
	filter := buildProductFilter(f)

	sort, ok := productSortFields[f.Sort]
	if !ok {
		sort = productSortFields[SortNewest]
	}

	var (
		docs  []productDoc
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := r.coll.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		total = n
		return nil
	})

	g.Go(func() error {
		cursor, err := r.coll.Find(gctx, filter, findPage(limit, offset).SetSort(sort))
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		if err := cursor.All(gctx, &docs); err != nil {
			return fmt.Errorf("decode products: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	products := make([]model.Product, 0, len(docs))
	for i := range docs {
		products = append(products, docs[i].toModel())
	}
	if err := r.expandCategories(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *mongoProductRepo) Update(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = time.Now().UTC()
	doc := newProductDoc(p)

	set := bson.M{
		"title":          doc.Title,
		"slug":           doc.Slug,
		"description":    doc.Description,
		"price":          doc.Price,
		"images":         doc.Images,
		"category":       doc.Category,
		"sizes":          doc.Sizes,
		"colors":         doc.Colors,
		"inStock":        doc.InStock,
		"sku":            doc.SKU,
		"featured":       doc.Featured,
		"isActive":       doc.IsActive,
		"tags":           doc.Tags,
		"seoTitle":       doc.SEOTitle,
		"seoDescription": doc.SEODescription,
		"updatedAt":      doc.UpdatedAt,
	}
	unset := bson.M{}
	if doc.ComparePrice != nil {
		set["comparePrice"] = doc.ComparePrice
	} else {
		unset["comparePrice"] = ""
	}
	if doc.Weight != nil {
		set["weight"] = doc.Weight
	} else {
		unset["weight"] = ""
	}
	if doc.Dimensions != nil {
		set["dimensions"] = doc.Dimensions
	} else {
		unset["dimensions"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		if dup, ok := mongoDuplicate(err, "sku"); ok {
			return dup
		}
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
