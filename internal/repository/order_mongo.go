package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/luxora/storefront-api/internal/model"
)

type customerDoc struct {
	User  *string `bson:"user,omitempty"`
	Name  string  `bson:"name"`
	Email string  `bson:"email"`
	Phone string  `bson:"phone,omitempty"`
}

type orderItemDoc struct {
	Product  string               `bson:"product"`
	Title    string               `bson:"title"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
	Size     string               `bson:"size"`
	Color    string               `bson:"color"`
	Image    string               `bson:"image"`
}

type orderDoc struct {
	ID              string                 `bson:"_id"`
	OrderNumber     string                 `bson:"orderNumber"`
	Customer        customerDoc            `bson:"customer"`
	Items           []orderItemDoc         `bson:"items"`
	Subtotal        primitive.Decimal128   `bson:"subtotal"`
	Tax             primitive.Decimal128   `bson:"tax"`
	Shipping        primitive.Decimal128   `bson:"shipping"`
	Discount        primitive.Decimal128   `bson:"discount"`
	Total           primitive.Decimal128   `bson:"total"`
	Status          string                 `bson:"status"`
	PaymentStatus   string                 `bson:"paymentStatus"`
	PaymentMethod   string                 `bson:"paymentMethod"`
	PaymentID       string                 `bson:"paymentId,omitempty"`
	ShippingAddress model.ShippingAddress  `bson:"shippingAddress"`
	BillingAddress  *model.ShippingAddress `bson:"billingAddress,omitempty"`
	TrackingNumber  string                 `bson:"trackingNumber,omitempty"`
	Notes           string                 `bson:"notes,omitempty"`
	CreatedAt       time.Time              `bson:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt"`
}

func newOrderDoc(o *model.Order) orderDoc {
	doc := orderDoc{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		Customer:        customerDoc{Name: o.Customer.Name, Email: o.Customer.Email, Phone: o.Customer.Phone},
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		Subtotal:        toDecimal128(o.Subtotal),
		Tax:             toDecimal128(o.Tax),
		Shipping:        toDecimal128(o.Shipping),
		Discount:        toDecimal128(o.Discount),
		Total:           toDecimal128(o.Total),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentID:       o.PaymentID,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Customer.UserID != nil {
		uid := o.Customer.UserID.String()
		doc.Customer.User = &uid
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, orderItemDoc{
			Product:  it.ProductID.String(),
			Title:    it.Title,
			Price:    toDecimal128(it.Price),
			Quantity: it.Quantity,
			Size:     it.Size,
			Color:    it.Color,
			Image:    it.Image,
		})
	}
	return doc
}

func (d *orderDoc) toModel() model.Order {
	o := model.Order{
		ID:              parseID(d.ID),
		OrderNumber:     d.OrderNumber,
		Customer:        model.Customer{Name: d.Customer.Name, Email: d.Customer.Email, Phone: d.Customer.Phone},
		Items:           make([]model.OrderItem, 0, len(d.Items)),
		Subtotal:        fromDecimal128(d.Subtotal),
		Tax:             fromDecimal128(d.Tax),
		Shipping:        fromDecimal128(d.Shipping),
		Discount:        fromDecimal128(d.Discount),
		Total:           fromDecimal128(d.Total),
		Status:          model.OrderStatus(d.Status),
		PaymentStatus:   model.PaymentStatus(d.PaymentStatus),
		PaymentMethod:   model.PaymentMethod(d.PaymentMethod),
		PaymentID:       d.PaymentID,
		ShippingAddress: d.ShippingAddress,
		BillingAddress:  d.BillingAddress,
		TrackingNumber:  d.TrackingNumber,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Customer.User != nil {
		uid := parseID(*d.Customer.User)
		o.Customer.UserID = &uid
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, model.OrderItem{
			ProductID: parseID(it.Product),
			Title:     it.Title,
			Price:     fromDecimal128(it.Price),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			Image:     it.Image,
		})
	}
	return o
}

type mongoOrderRepo struct {
	client   *mongo.Client
	coll     *mongo.Collection
	products *mongo.Collection
}

// NewMongoOrderRepository needs a replica set or sharded cluster; Place runs in a
// multi-document transaction.
func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepo{
		client:   db.Client(),
		coll:     db.Collection(ordersCollection),
		products: db.Collection(productsCollection),
	}
}

func (r *mongoOrderRepo) Place(ctx context.Context, order *model.Order, decrements []model.StockDecrement) error {
	now := time.Now().UTC()
	order.ID = uuid.New()
	order.CreatedAt, order.UpdatedAt = now, now
	doc := newOrderDoc(order)

	sorted := slices.Clone(decrements)
	slices.SortStableFunc(sorted, func(a, b model.StockDecrement) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.coll.InsertOne(sc, doc); err != nil {
			if dup, ok := mongoDuplicate(err, "orderNumber"); ok {
				return nil, dup
			}
			return nil, fmt.Errorf("insert order: %w", err)
		}

		for _, d := range sorted {
			res, err := r.products.UpdateOne(sc,
				bson.M{"_id": d.ProductID.String(), "inStock": bson.M{"$gte": d.Quantity}},
				bson.M{"$inc": bson.M{"inStock": -d.Quantity}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return nil, fmt.Errorf("decrement stock: %w", err)
			}
			if res.MatchedCount == 0 {
				return nil, &StockError{ProductID: d.ProductID, Title: d.Title}
			}
		}
		return nil, nil
	})
	return err
}

func (r *mongoOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.findOne(ctx, bson.M{"orderNumber": orderNumber})
}

func (r *mongoOrderRepo) findOne(ctx context.Context, filter bson.M) (*model.Order, error) {
	var doc orderDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []model.Order{doc.toModel()}
	if err := checkOrderState(&orders[0]); err != nil {
		return nil, err
	}
	if err := r.expandProducts(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// expandProducts attaches the live title, slug and images of each item's product.
func (r *mongoOrderRepo) expandProducts(ctx context.Context, orders []model.Order) error {
	var ids []string
	seen := map[uuid.UUID]bool{}
	for _, o := range orders {
		for _, it := range o.Items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID.String())
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	cursor, err := r.products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"title": 1, "slug": 1, "images": 1}))
	if err != nil {
		return fmt.Errorf("load order products: %w", err)
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("decode order products: %w", err)
	}

	refs := make(map[uuid.UUID]*model.ProductRef, len(docs))
	for _, d := range docs {
		id := parseID(d.ID)
		refs[id] = &model.ProductRef{ID: id, Title: d.Title, Slug: d.Slug, Images: d.Images}
	}
	for i := range orders {
		for j := range orders[i].Items {
			orders[i].Items[j].Product = refs[orders[i].Items[j].ProductID]
		}
	}
	return nil
}

func buildOrderFilter(f OrderFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["customer.user"] = f.UserID.String()
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.PaymentStatus != "" {
		filter["paymentStatus"] = string(f.PaymentStatus)
	}
	if f.Customer != "" {
		re := containsPattern(f.Customer)
		filter["$or"] = bson.A{
			bson.M{"customer.email": re},
			bson.M{"customer.name": re},
			bson.M{"orderNumber": re},
		}
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		filter["createdAt"] = created
	}
	return filter
}

func (r *mongoOrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	limit, offset := pageDefaults(f.Limit, f.Offset)
	filter := buildOrderFilter(f)

	var (
		docs  []orderDoc
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := r.coll.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		total = n
		return nil
	})

	g.Go(func() error {
		opts := findPage(limit, offset).SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
		cursor, err := r.coll.Find(gctx, filter, opts)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		if err := cursor.All(gctx, &docs); err != nil {
			return fmt.Errorf("decode orders: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	orders := make([]model.Order, 0, len(docs))
	for i := range docs {
		o := docs[i].toModel()
		if err := checkOrderState(&o); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := r.expandProducts(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *mongoOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string) error {
	set := bson.M{"status": string(to), "updatedAt": time.Now().UTC()}
	if trackingNumber != nil {
		set["trackingNumber"] = *trackingNumber
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String(), "status": string(from)}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *mongoOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus, paymentID string) error {
	set := bson.M{"paymentStatus": string(status), "updatedAt": time.Now().UTC()}
	if paymentID != "" {
		set["paymentId"] = paymentID
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoOrderRepo) Stats(ctx context.Context) (*model.OrderStats, error) {
	statusCount := func(status model.OrderStatus) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(status)}}, 1, 0}}}
	}
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":               nil,
			"totalOrders":       bson.M{"$sum": 1},
			"totalRevenue":      bson.M{"$sum": "$total"},
			"averageOrderValue": bson.M{"$avg": "$total"},
			"pendingOrders":     statusCount(model.OrderStatusPending),
			"processingOrders":  statusCount(model.OrderStatusProcessing),
			"shippedOrders":     statusCount(model.OrderStatusShipped),
			"deliveredOrders":   statusCount(model.OrderStatusDelivered),
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}

	var rows []struct {
		TotalOrders       int64                `bson:"totalOrders"`
		TotalRevenue      primitive.Decimal128 `bson:"totalRevenue"`
		AverageOrderValue primitive.Decimal128 `bson:"averageOrderValue"`
		PendingOrders     int64                `bson:"pendingOrders"`
		ProcessingOrders  int64                `bson:"processingOrders"`
		ShippedOrders     int64                `bson:"shippedOrders"`
		DeliveredOrders   int64                `bson:"deliveredOrders"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode order stats: %w", err)
	}

	stats := &model.OrderStats{}
	if len(rows) == 0 {
		return stats, nil
	}
	row := rows[0]
	stats.TotalOrders = row.TotalOrders
	stats.TotalRevenue = fromDecimal128(row.TotalRevenue)
	stats.AverageOrderValue = fromDecimal128(row.AverageOrderValue).Round(2)
	stats.PendingOrders = row.PendingOrders
	stats.ProcessingOrders = row.ProcessingOrders
	stats.ShippedOrders = row.ShippedOrders
	stats.DeliveredOrders = row.DeliveredOrders
	return stats, nil
}
