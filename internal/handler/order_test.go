package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/middleware"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
	"github.com/luxora/storefront-api/internal/service"
)

type memProductRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{items: map[uuid.UUID]*model.Product{}}
}

func (m *memProductRepo) add(p model.Product) *model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.ID] = &p
	cp := p
	return &cp
}

func (m *memProductRepo) Create(_ context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProductRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memProductRepo) exists(match func(*model.Product) bool, excludeID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ID != excludeID && match(p) {
			return true
		}
	}
	return false
}

func (m *memProductRepo) ExistsBySKU(_ context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	return m.exists(func(p *model.Product) bool { return p.SKU == sku }, excludeID), nil
}

func (m *memProductRepo) ExistsBySlug(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return m.exists(func(p *model.Product) bool { return p.Slug == slug }, excludeID), nil
}

func (m *memProductRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Product
	for _, p := range m.items {
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
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b model.Product) int { return strings.Compare(a.Slug, b.Slug) })
	total := int64(len(out))
	out = out[min(f.Offset, len(out)):]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memProductRepo) Update(_ context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memProductRepo) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].InStock
}

type memOrderRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*model.Order
	products *memProductRepo
}

func (m *memOrderRepo) Place(_ context.Context, order *model.Order, decrements []model.StockDecrement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products.mu.Lock()
	defer m.products.mu.Unlock()

	for _, d := range decrements {
		p, ok := m.products.items[d.ProductID]
		if !ok || p.InStock < d.Quantity {
			return &repository.StockError{ProductID: d.ProductID, Title: d.Title}
		}
	}
	for _, d := range decrements {
		m.products.items[d.ProductID].InStock -= d.Quantity
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	m.items[order.ID] = &cp
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.items[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memOrderRepo) GetByNumber(_ context.Context, number string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.items {
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

func (m *memOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus, tracking *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
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

func (m *memOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentStatus = status
	o.PaymentID = paymentID
	return nil
}

func (m *memOrderRepo) Stats(context.Context) (*model.OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.OrderStats{TotalOrders: int64(len(m.items))}
	for _, o := range m.items {
		stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
	}
	return stats, nil
}

type checkoutFixture struct {
	r        *gin.Engine
	users    *memUserRepo
	auth     *service.AuthService
	products *memProductRepo
	suit     *model.Product
}

func newCheckoutFixture(t *testing.T, bodyLimit int64) *checkoutFixture {
	t.Helper()
	users := newMemUserRepo()
	auth := newTestAuthService(users)
	products := newMemProductRepo()
	orders := &memOrderRepo{items: map[uuid.UUID]*model.Order{}, products: products}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewOrderHandler(service.NewOrderService(orders, products, nil, nil, log))

	r := newEngine()
	if bodyLimit > 0 {
		r.Use(middleware.BodyLimit(bodyLimit))
	}
	r.POST("/orders", middleware.OptionalAuth(auth), h.Create)
	r.GET("/orders/my-orders", middleware.Authenticate(auth), h.MyOrders)

	suit := products.add(model.Product{
		Title:    "Italian Wool Suit",
		Slug:     "italian-wool-suit",
		Price:    decimal.NewFromInt(2899),
		Images:   []string{"https://img.example.com/suit.jpg"},
		Sizes:    []string{"48", "50"},
		Colors:   []model.Color{{Name: "Charcoal", Hex: "#36454F"}},
		InStock:  6,
		SKU:      "LUX-MEN-001",
		IsActive: true,
	})
	return &checkoutFixture{r: r, users: users, auth: auth, products: products, suit: suit}
}

func (f *checkoutFixture) checkoutBody(qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product": f.suit.ID.String(), "quantity": qty, "size": "50", "color": "Charcoal"},
		},
		"shippingAddress": map[string]any{
			"firstName": "Jane", "lastName": "Doe", "email": "jane@example.com", "phone": "555-0100",
			"street": "1 Main St", "city": "Austin", "state": "TX", "zipCode": "73301",
		},
		"paymentMethod": "card",
	}
}

func TestOrderHandler_CreateGuestCheckout(t *testing.T) {
	f := newCheckoutFixture(t, 0)

	w := do(f.r, http.MethodPost, "/orders", f.checkoutBody(2))
	require.Equal(t, http.StatusCreated, w.Code)
	env := envelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Order created successfully", env.Message)
	assert.Nil(t, env.Pagination)

	var order dto.OrderResponse
	decodeData(t, env, &order)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "LUX-"))
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	assert.Nil(t, order.Customer.User)
	assert.Equal(t, "Jane Doe", order.Customer.Name)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(5798)))
	assert.Equal(t, "USA", order.ShippingAddress.Country)
	assert.Equal(t, 4, f.products.stock(f.suit.ID))

	w = do(f.r, http.MethodPost, "/orders", f.checkoutBody(5))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Insufficient stock for product: Italian Wool Suit", envelope(t, w).Message)
	assert.Equal(t, 4, f.products.stock(f.suit.ID))
}

func TestOrderHandler_CreateRejectsInvalidBody(t *testing.T) {
	f := newCheckoutFixture(t, 0)

	w := do(f.r, http.MethodPost, "/orders", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := envelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t,
		`"items" is required, "shippingAddress.firstName" is required, "shippingAddress.lastName" is required, `+
			`"shippingAddress.email" is required, "shippingAddress.phone" is required, "shippingAddress.street" is required, `+
			`"shippingAddress.city" is required, "shippingAddress.state" is required, "shippingAddress.zipCode" is required, `+
			`"paymentMethod" is required`,
		env.Message)

	w = do(f.r, http.MethodPost, "/orders", map[string]any{"items": []any{}, "paymentMethod": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	msg := envelope(t, w).Message
	assert.True(t, strings.HasPrefix(msg, `"items" must contain at least 1 items, "shippingAddress.firstName" is required`), msg)
	assert.True(t, strings.HasSuffix(msg, `"paymentMethod" must be one of [card, paypal, bank_transfer, cash_on_delivery]`), msg)

	body := f.checkoutBody(1)
	body["items"] = []map[string]any{{"product": "nope", "quantity": 0, "size": "50", "color": "Charcoal"}}
	w = do(f.r, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `"items[0].product" must be a valid id, "items[0].quantity" is required`, envelope(t, w).Message)
}

func TestOrderHandler_CreateChunkedBodyTooLarge(t *testing.T) {
	f := newCheckoutFixture(t, 64)

	payload := `{"notes":"` + strings.Repeat("a", 200) + `"}`
	// MultiReader hides the length, so the request goes out chunked.
	req := httptest.NewRequest(http.MethodPost, "/orders", io.MultiReader(strings.NewReader(payload)))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	env := envelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Request body too large", env.Message)
}

func TestOrderHandler_MyOrdersUsesSession(t *testing.T) {
	f := newCheckoutFixture(t, 0)
	user, token := signIn(t, f.users, f.auth, "jane@example.com")
	_, otherToken := signIn(t, f.users, f.auth, "sam@example.com")

	post := func(token string) {
		req := httptest.NewRequest(http.MethodPost, "/orders", jsonBody(t, f.checkoutBody(1)))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	post(token)
	post("")

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders/my-orders", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, req)
		return w
	}

	w := get(token)
	require.Equal(t, http.StatusOK, w.Code)
	env := envelope(t, w)
	assert.Equal(t, "User orders retrieved successfully", env.Message)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(1), env.Pagination.Total)
	assert.Equal(t, 10, env.Pagination.Limit)

	var orders []dto.OrderResponse
	decodeData(t, env, &orders)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Customer.User)
	assert.Equal(t, user.ID, *orders[0].Customer.User)

	w = get(otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), envelope(t, w).Pagination.Total)

	w = get("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token is required", envelope(t, w).Message)
}
