package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

const (
	maxOrderNumberAttempts = 3
	defaultCountry         = "USA"
)

// ProductCache drops cached product reads after stock changes.
type ProductCache interface {
	Invalidate(ctx context.Context, products ...*model.Product)
}

// EventPublisher hands order events to the notification pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	cache       ProductCache
	publisher   EventPublisher
	log         *slog.Logger
	now         func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cache ProductCache,
	publisher EventPublisher,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		cache:       cache,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// Create validates every line against the current catalog, snapshots it, prices
// the order and writes it together with the stock decrements.
func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest, session *model.Session) (*dto.OrderResponse, error) {
	var (
		items      = make([]model.OrderItem, 0, len(req.Items))
		decrements []model.StockDecrement
		touched    []*model.Product
		position   = map[uuid.UUID]int{}
		subtotal   = decimal.Zero
	)

	for _, line := range req.Items {
		product, err := s.loadProduct(ctx, line.Product)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, apperror.BadRequest("Product is not available: %s", product.Title)
		}
		if product.InStock < line.Quantity {
			return nil, apperror.BadRequest("Insufficient stock for product: %s", product.Title)
		}
		if !product.HasSize(line.Size) {
			return nil, apperror.BadRequest("Invalid size for product: %s", product.Title)
		}
		if !product.HasColor(line.Color) {
			return nil, apperror.BadRequest("Invalid color for product: %s", product.Title)
		}

		items = append(items, model.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			Price:     product.Price,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Image:     product.PrimaryImage(),
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))

		// Repeated lines of one product collapse into a single conditional decrement.
		if i, ok := position[product.ID]; ok {
			decrements[i].Quantity += line.Quantity
			continue
		}
		position[product.ID] = len(decrements)
		decrements = append(decrements, model.StockDecrement{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  line.Quantity,
		})
		touched = append(touched, product)
	}

	shipping := toShippingAddress(req.ShippingAddress)
	billing := shipping
	if req.BillingAddress != nil {
		billing = toShippingAddress(*req.BillingAddress)
	}

	totals := CalculateTotals(subtotal)
	order := &model.Order{
		OrderNumber: req.OrderNumber,
		Customer: model.Customer{
			Name:  shipping.FullName(),
			Email: shipping.Email,
			Phone: shipping.Phone,
		},
		Items:           items,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		ShippingAddress: shipping,
		BillingAddress:  &billing,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if session != nil {
		userID := session.UserID
		order.Customer.UserID = &userID
	}

	if err := s.place(ctx, order, decrements, req.OrderNumber != ""); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, touched...)
	}
	s.publish(ctx, order, model.OrderEventPlaced)

	return s.reload(ctx, order)
}

func (s *OrderService) loadProduct(ctx context.Context, rawID string) (*model.Product, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperror.NotFound("Product not found: %s", rawID)
	}
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, apperror.NotFound("Product not found: %s", rawID)
	}
	return product, nil
}

// place writes the order, regenerating a colliding generated order number.
func (s *OrderService) place(ctx context.Context, order *model.Order, decrements []model.StockDecrement, supplied bool) error {
	for attempt := 1; ; attempt++ {
		if !supplied {
			order.OrderNumber = GenerateOrderNumber(s.now())
		}

		err := s.orderRepo.Place(ctx, order, decrements)
		if err == nil {
			return nil
		}

		var stockErr *repository.StockError
		if errors.As(err, &stockErr) {
			return apperror.BadRequest("Insufficient stock for product: %s", stockErr.Title)
		}

		var dup *repository.DuplicateError
		if errors.As(err, &dup) && dup.Field == "orderNumber" {
			if supplied {
				return apperror.Conflict("Order number %s already exists", order.OrderNumber)
			}
			if attempt < maxOrderNumberAttempts {
				s.log.Warn("order number collision, regenerating",
					"order_number", order.OrderNumber, "attempt", attempt)
				continue
			}
		}
		return fmt.Errorf("place order: %w", err)
	}
}

func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, apperror.NotFound("Order not found")
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, apperror.NotFound("Order not found")
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

// ListForUser lists the caller's own orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, q dto.ListOrdersQuery) ([]dto.OrderResponse, *dto.Pagination, error) {
	filter, err := orderFilter(q)
	if err != nil {
		return nil, nil, err
	}
	filter.UserID = &userID
	filter.PaymentStatus = ""
	filter.Customer = ""
	return s.list(ctx, q, filter)
}

func (s *OrderService) List(ctx context.Context, q dto.ListOrdersQuery) ([]dto.OrderResponse, *dto.Pagination, error) {
	filter, err := orderFilter(q)
	if err != nil {
		return nil, nil, err
	}
	return s.list(ctx, q, filter)
}

func (s *OrderService) list(ctx context.Context, q dto.ListOrdersQuery, filter repository.OrderFilter) ([]dto.OrderResponse, *dto.Pagination, error) {
	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list orders: %w", err)
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return items, dto.NewPagination(q.Page, q.Limit, total), nil
}

func orderFilter(q dto.ListOrdersQuery) (repository.OrderFilter, error) {
	filter := repository.OrderFilter{
		Status:        model.OrderStatus(q.Status),
		PaymentStatus: model.PaymentStatus(q.PaymentStatus),
		Customer:      strings.TrimSpace(q.Customer),
		Limit:         q.Limit,
		Offset:        (q.Page - 1) * q.Limit,
	}
	if q.StartDate != "" {
		from, _, err := parseDate(q.StartDate)
		if err != nil {
			return filter, apperror.BadRequest("Invalid startDate: %s", q.StartDate)
		}
		filter.From = &from
	}
	if q.EndDate != "" {
		to, dateOnly, err := parseDate(q.EndDate)
		if err != nil {
			return filter, apperror.BadRequest("Invalid endDate: %s", q.EndDate)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, nil
}

// parseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

// UpdateStatus applies an admin status change. Moves outside the order
// lifecycle are rejected with 409.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, apperror.NotFound("Order not found")
	}

	next := model.OrderStatus(req.Status)
	if !order.Status.CanTransitionTo(next) {
		return nil, apperror.Conflict("Cannot change order status from %s to %s", order.Status, next)
	}
	if next == order.Status && req.TrackingNumber == nil {
		resp := toOrderResponse(order)
		return &resp, nil
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, order.Status, next, req.TrackingNumber); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperror.NotFound("Order not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, apperror.Conflict("Order status was changed by another request, please retry")
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	changed := next != order.Status
	order.Status = next
	if changed {
		s.publish(ctx, order, model.OrderEventStatusChanged)
	}
	return s.reload(ctx, order)
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, req dto.UpdatePaymentStatusRequest) (*dto.OrderResponse, error) {
	err := s.orderRepo.UpdatePaymentStatus(ctx, id, model.PaymentStatus(req.PaymentStatus), strings.TrimSpace(req.PaymentID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Order not found")
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *OrderService) Stats(ctx context.Context) (*dto.OrderStatsResponse, error) {
	stats, err := s.orderRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return &dto.OrderStatsResponse{
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      stats.TotalRevenue,
		AverageOrderValue: stats.AverageOrderValue,
		PendingOrders:     stats.PendingOrders,
		ProcessingOrders:  stats.ProcessingOrders,
		ShippedOrders:     stats.ShippedOrders,
		DeliveredOrders:   stats.DeliveredOrders,
	}, nil
}

// reload re-reads a written order so the response carries expanded product refs.
func (s *OrderService) reload(ctx context.Context, order *model.Order) (*dto.OrderResponse, error) {
	fresh, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil || fresh == nil {
		if err != nil {
			s.log.Warn("reload order", "order_id", order.ID, "error", err)
		}
		fresh = order
	}
	resp := toOrderResponse(fresh)
	return &resp, nil
}

func (s *OrderService) publish(ctx context.Context, order *model.Order, eventType model.OrderEventType) {
	if s.publisher == nil {
		return
	}
	event := model.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.Customer.Email,
		Name:        order.Customer.Name,
		Total:       order.Total,
		Status:      order.Status,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("publish order event", "type", eventType, "order_id", order.ID, "error", err)
	}
}

func toShippingAddress(a dto.ShippingAddressRequest) model.ShippingAddress {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = defaultCountry
	}
	return model.ShippingAddress{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Email:     strings.ToLower(strings.TrimSpace(a.Email)),
		Phone:     strings.TrimSpace(a.Phone),
		Street:    strings.TrimSpace(a.Street),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		ZipCode:   strings.TrimSpace(a.ZipCode),
		Country:   country,
	}
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		var product any = item.ProductID
		if item.Product != nil {
			product = item.Product
		}
		items = append(items, dto.OrderItemResponse{
			Product:  product,
			Title:    item.Title,
			Price:    item.Price,
			Quantity: item.Quantity,
			Size:     item.Size,
			Color:    item.Color,
			Image:    item.Image,
		})
	}

	return dto.OrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Customer: dto.CustomerResponse{
			User:  o.Customer.UserID,
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
		},
		Items:           items,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Discount:        o.Discount,
		Total:           o.Total,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		PaymentID:       o.PaymentID,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
