package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

// mockOrderRepo shares the product map with mockProductRepo so Place can apply
// decrements all-or-nothing the way the real stores do.
type mockOrderRepo struct {
	orders      map[uuid.UUID]*model.Order
	products    *mockProductRepo
	collisions  int
	beforePlace func()
	statusErr   error
	placeCalls  int
}

func newMockOrderRepo(products *mockProductRepo) *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order), products: products}
}

func (m *mockOrderRepo) Place(_ context.Context, order *model.Order, decrements []model.StockDecrement) error {
	m.placeCalls++
	if m.beforePlace != nil {
		m.beforePlace()
	}
	if m.collisions > 0 {
		m.collisions--
		return &repository.DuplicateError{Field: "orderNumber"}
	}
	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return &repository.DuplicateError{Field: "orderNumber"}
		}
	}
	for _, d := range decrements {
		p, ok := m.products.products[d.ProductID]
		if !ok || p.InStock < d.Quantity {
			return &repository.StockError{ProductID: d.ProductID, Title: d.Title}
		}
	}
	for _, d := range decrements {
		m.products.products[d.ProductID].InStock -= d.Quantity
	}

	order.ID = uuid.New()
	order.CreatedAt, order.UpdatedAt = time.Now(), time.Now()
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*model.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.orders {
		if f.UserID != nil && (o.Customer.UserID == nil || *o.Customer.UserID != *f.UserID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus, tracking *string) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	if tracking != nil {
		o.TrackingNumber = *tracking
	}
	return nil
}

func (m *mockOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus, paymentID string) error {
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentStatus = status
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	return nil
}

func (m *mockOrderRepo) Stats(context.Context) (*model.OrderStats, error) {
	s := &model.OrderStats{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, o := range m.orders {
		s.TotalOrders++
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		if o.Status == model.OrderStatusPending {
			s.PendingOrders++
		}
	}
	if s.TotalOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(s.TotalOrders)).Round(2)
	}
	return s, nil
}

type recordingCache struct{ invalidated []uuid.UUID }

func (c *recordingCache) Invalidate(_ context.Context, products ...*model.Product) {
	for _, p := range products {
		c.invalidated = append(c.invalidated, p.ID)
	}
}

type recordingPublisher struct {
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.OrderEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type orderFixture struct {
	svc       *OrderService
	orders    *mockOrderRepo
	products  *mockProductRepo
	cache     *recordingCache
	publisher *recordingPublisher
	suit      *model.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	products := newMockProductRepo()
	suit := products.add(model.Product{
		Title:    "Italian Wool Suit",
		Slug:     "italian-wool-suit",
		Price:    decimal.NewFromInt(2899),
		Images:   []string{"https://img.example.com/suit-front.jpg", "https://img.example.com/suit-back.jpg"},
		Sizes:    []string{"48", "50", "52"},
		Colors:   []model.Color{{Name: "Charcoal", Hex: "#36454F"}, {Name: "Navy", Hex: "#000080"}},
		InStock:  6,
		IsActive: true,
	})
	orders := newMockOrderRepo(products)
	cache := &recordingCache{}
	publisher := &recordingPublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &orderFixture{
		svc:       NewOrderService(orders, products, cache, publisher, log),
		orders:    orders,
		products:  products,
		cache:     cache,
		publisher: publisher,
		suit:      suit,
	}
}

func checkout(items ...dto.OrderItemRequest) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		Items: items,
		ShippingAddress: dto.ShippingAddressRequest{
			FirstName: "Jane", LastName: "Doe", Email: "Jane@Example.com", Phone: "555-0100",
			Street: "1 Main St", City: "Austin", State: "TX", ZipCode: "73301",
		},
		PaymentMethod: "card",
	}
}

func line(p *model.Product, qty int, size, color string) dto.OrderItemRequest {
	return dto.OrderItemRequest{Product: p.ID.String(), Quantity: qty, Size: size, Color: color}
}

func TestOrderService_Create(t *testing.T) {
	f := newOrderFixture(t)

	resp, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)

	assert.Regexp(t, `^LUX-\d{8}-[A-Z0-9]{4}$`, resp.OrderNumber)
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(2899)))
	assert.True(t, resp.Tax.Equal(decimal.RequireFromString("231.92")))
	assert.True(t, resp.Shipping.IsZero())
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("3130.92")))
	assert.Equal(t, model.OrderStatusPending, resp.Status)
	assert.Equal(t, model.PaymentStatusPending, resp.PaymentStatus)

	require.Len(t, resp.Items, 1)
	item := resp.Items[0]
	assert.Equal(t, "Italian Wool Suit", item.Title)
	assert.Equal(t, "https://img.example.com/suit-front.jpg", item.Image)
	assert.Equal(t, "Navy", item.Color)

	assert.Equal(t, "Jane Doe", resp.Customer.Name)
	assert.Equal(t, "jane@example.com", resp.Customer.Email)
	assert.Nil(t, resp.Customer.User)
	assert.Equal(t, "USA", resp.ShippingAddress.Country)
	require.NotNil(t, resp.BillingAddress)
	assert.Equal(t, resp.ShippingAddress, *resp.BillingAddress)

	assert.Equal(t, 5, f.products.products[f.suit.ID].InStock)
	assert.Equal(t, []uuid.UUID{f.suit.ID}, f.cache.invalidated)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, model.OrderEventPlaced, f.publisher.events[0].Type)
	assert.Equal(t, resp.OrderNumber, f.publisher.events[0].OrderNumber)
}

func TestOrderService_Create_SnapshotSurvivesProductEdit(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)

	f.products.products[f.suit.ID].Price = decimal.NewFromInt(1)
	f.products.products[f.suit.ID].Title = "Renamed"

	stored, err := f.svc.GetByNumber(context.Background(), resp.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "Italian Wool Suit", stored.Items[0].Title)
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromInt(2899)))
}

func TestOrderService_Create_AuthenticatedCustomer(t *testing.T) {
	f := newOrderFixture(t)
	userID := uuid.New()

	resp, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "48", "Charcoal")),
		&model.Session{UserID: userID, Email: "jane@example.com"})
	require.NoError(t, err)
	require.NotNil(t, resp.Customer.User)
	assert.Equal(t, userID, *resp.Customer.User)

	mine, page, err := f.svc.ListForUser(context.Background(), userID, dto.ListOrdersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, int64(1), page.Total)

	others, _, err := f.svc.ListForUser(context.Background(), uuid.New(), dto.ListOrdersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestOrderService_Create_FreeShippingThreshold(t *testing.T) {
	f := newOrderFixture(t)
	scarf := f.products.add(model.Product{
		Title: "Cashmere Scarf", Price: decimal.NewFromInt(250), InStock: 10, IsActive: true,
		Sizes: []string{"One Size"}, Colors: []model.Color{{Name: "Camel", Hex: "#C19A6B"}},
	})

	resp, err := f.svc.Create(context.Background(), checkout(line(scarf, 2, "One Size", "Camel")), nil)
	require.NoError(t, err)
	assert.True(t, resp.Shipping.IsZero())

	tie := f.products.add(model.Product{
		Title: "Silk Tie", Price: decimal.RequireFromString("499.99"), InStock: 10, IsActive: true,
		Sizes: []string{"One Size"}, Colors: []model.Color{{Name: "Burgundy", Hex: "#800020"}},
	})
	resp, err = f.svc.Create(context.Background(), checkout(line(tie, 1, "One Size", "Burgundy")), nil)
	require.NoError(t, err)
	assert.True(t, resp.Shipping.Equal(decimal.NewFromInt(25)))
}

func TestOrderService_Create_ValidationFailures(t *testing.T) {
	f := newOrderFixture(t)
	inactive := f.products.add(model.Product{
		Title: "Retired Coat", Price: decimal.NewFromInt(900), InStock: 3, IsActive: false,
		Sizes: []string{"M"}, Colors: []model.Color{{Name: "Black", Hex: "#000"}},
	})
	missing := uuid.New()

	tests := []struct {
		name    string
		items   []dto.OrderItemRequest
		status  int
		message string
	}{
		{
			name:    "unknown product",
			items:   []dto.OrderItemRequest{{Product: missing.String(), Quantity: 1, Size: "M", Color: "Black"}},
			status:  http.StatusNotFound,
			message: "Product not found: " + missing.String(),
		},
		{
			name:    "inactive product",
			items:   []dto.OrderItemRequest{line(inactive, 1, "M", "Black")},
			status:  http.StatusBadRequest,
			message: "Product is not available: Retired Coat",
		},
		{
			name:    "quantity above stock",
			items:   []dto.OrderItemRequest{line(f.suit, 10, "50", "Navy")},
			status:  http.StatusBadRequest,
			message: "Insufficient stock for product: Italian Wool Suit",
		},
		{
			name:    "size not offered",
			items:   []dto.OrderItemRequest{line(f.suit, 1, "XS", "Navy")},
			status:  http.StatusBadRequest,
			message: "Invalid size for product: Italian Wool Suit",
		},
		{
			name:    "color not offered",
			items:   []dto.OrderItemRequest{line(f.suit, 1, "50", "Red")},
			status:  http.StatusBadRequest,
			message: "Invalid color for product: Italian Wool Suit",
		},
		{
			name:    "first failing line wins",
			items:   []dto.OrderItemRequest{line(f.suit, 1, "XS", "Navy"), line(inactive, 1, "M", "Black")},
			status:  http.StatusBadRequest,
			message: "Invalid size for product: Italian Wool Suit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), checkout(tt.items...), nil)
			assertAppError(t, err, tt.status, tt.message)
		})
	}

	assert.Empty(t, f.orders.orders)
	assert.Zero(t, f.orders.placeCalls)
	assert.Equal(t, 6, f.products.products[f.suit.ID].InStock)
	assert.Empty(t, f.publisher.events)
}

func TestOrderService_Create_StockRaceRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	bag := f.products.add(model.Product{
		Title: "Leather Tote", Price: decimal.NewFromInt(1200), InStock: 2, IsActive: true,
		Sizes: []string{"One Size"}, Colors: []model.Color{{Name: "Cognac", Hex: "#9A463D"}},
	})
	// Another checkout takes the last totes between validation and the write.
	f.orders.beforePlace = func() { f.products.products[bag.ID].InStock = 0 }

	_, err := f.svc.Create(context.Background(),
		checkout(line(f.suit, 2, "50", "Navy"), line(bag, 1, "One Size", "Cognac")), nil)
	assertAppError(t, err, http.StatusBadRequest, "Insufficient stock for product: Leather Tote")

	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 6, f.products.products[f.suit.ID].InStock)
	assert.Empty(t, f.cache.invalidated)
	assert.Empty(t, f.publisher.events)
}

func TestOrderService_Create_RepeatedLinesShareStock(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Create(context.Background(),
		checkout(line(f.suit, 4, "48", "Navy"), line(f.suit, 4, "50", "Charcoal")), nil)
	assertAppError(t, err, http.StatusBadRequest, "Insufficient stock for product: Italian Wool Suit")
	assert.Equal(t, 6, f.products.products[f.suit.ID].InStock)

	resp, err := f.svc.Create(context.Background(),
		checkout(line(f.suit, 3, "48", "Navy"), line(f.suit, 3, "50", "Charcoal")), nil)
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
	assert.Zero(t, f.products.products[f.suit.ID].InStock)
}

func TestOrderService_Create_RetriesOrderNumberCollision(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.collisions = maxOrderNumberAttempts - 1

	_, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)
	assert.Equal(t, maxOrderNumberAttempts, f.orders.placeCalls)
	assert.Equal(t, 5, f.products.products[f.suit.ID].InStock)
}

func TestOrderService_Create_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.collisions = maxOrderNumberAttempts

	_, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, 6, f.products.products[f.suit.ID].InStock)
}

func TestOrderService_Create_SuppliedOrderNumber(t *testing.T) {
	f := newOrderFixture(t)
	req := checkout(line(f.suit, 1, "50", "Navy"))
	req.OrderNumber = "LUX-00000001-SEED"

	resp, err := f.svc.Create(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "LUX-00000001-SEED", resp.OrderNumber)

	_, err = f.svc.Create(context.Background(), req, nil)
	assertAppError(t, err, http.StatusConflict, "Order number LUX-00000001-SEED already exists")
	assert.Equal(t, 2, f.orders.placeCalls)
}

func TestOrderService_Create_PublishFailureIsNotFatal(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Create(context.Background(), checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)
	assert.Len(t, f.orders.orders, 1)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)
	f.publisher.events = nil

	_, err = f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{Status: "delivered"})
	assertAppError(t, err, http.StatusConflict, "Cannot change order status from pending to delivered")

	resp, err := f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{Status: "processing"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, resp.Status)

	resp, err = f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{Status: "processing"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, resp.Status)

	resp, err = f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{
		Status: "shipped", TrackingNumber: ptr("1Z999AA10123456784"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", resp.TrackingNumber)

	_, err = f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{Status: "cancelled"})
	assertAppError(t, err, http.StatusConflict, "Cannot change order status from shipped to cancelled")

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, model.OrderEventStatusChanged, f.publisher.events[1].Type)
	assert.Equal(t, model.OrderStatusShipped, f.publisher.events[1].Status)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), dto.UpdateOrderStatusRequest{Status: "processing"})
	assertAppError(t, err, http.StatusNotFound, "Order not found")
}

func TestOrderService_UpdateStatus_ConcurrentChange(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)

	f.orders.statusErr = repository.ErrConflict
	_, err = f.svc.UpdateStatus(ctx, created.ID, dto.UpdateOrderStatusRequest{Status: "cancelled"})
	assertAppError(t, err, http.StatusConflict, "Order status was changed by another request, please retry")
}

func TestOrderService_UpdatePaymentStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)

	resp, err := f.svc.UpdatePaymentStatus(ctx, created.ID, dto.UpdatePaymentStatusRequest{PaymentStatus: "paid", PaymentID: "pi_42"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, resp.PaymentStatus)
	assert.Equal(t, "pi_42", resp.PaymentID)

	resp, err = f.svc.UpdatePaymentStatus(ctx, created.ID, dto.UpdatePaymentStatusRequest{PaymentStatus: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, resp.PaymentStatus)
	assert.Equal(t, "pi_42", resp.PaymentID)

	_, err = f.svc.UpdatePaymentStatus(ctx, uuid.New(), dto.UpdatePaymentStatusRequest{PaymentStatus: "paid"})
	assertAppError(t, err, http.StatusNotFound, "Order not found")
}

func TestOrderService_ReadSide(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, checkout(line(f.suit, 1, "50", "Navy")), nil)
	require.NoError(t, err)

	byID, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.OrderNumber, byID.OrderNumber)

	_, err = f.svc.GetByNumber(ctx, "LUX-00000000-NONE")
	assertAppError(t, err, http.StatusNotFound, "Order not found")

	_, _, err = f.svc.List(ctx, dto.ListOrdersQuery{Page: 1, Limit: 10, StartDate: "yesterday"})
	assertAppError(t, err, http.StatusBadRequest, "Invalid startDate: yesterday")

	all, page, err := f.svc.List(ctx, dto.ListOrdersQuery{Page: 1, Limit: 10, Status: "pending", EndDate: "2099-12-31"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, page.Pages)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalOrders)
	assert.True(t, stats.TotalRevenue.Equal(decimal.RequireFromString("3130.92")))
	assert.Equal(t, int64(1), stats.PendingOrders)
}

func TestOrderFilter_EndDateCoversWholeDay(t *testing.T) {
	filter, err := orderFilter(dto.ListOrdersQuery{Page: 3, Limit: 10, StartDate: "2024-05-01", EndDate: "2024-05-31"})
	require.NoError(t, err)
	assert.Equal(t, 20, filter.Offset)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *filter.From)
	assert.Equal(t, time.Date(2024, 5, 31, 23, 59, 59, 999999999, time.UTC), *filter.To)
}
