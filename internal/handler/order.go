package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/middleware"
	"github.com/luxora/storefront-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Create places a guest or signed-in checkout.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), req, middleware.SessionFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Order created successfully", order)
}

func (h *OrderHandler) GetByNumber(c *gin.Context) {
	order, err := h.orderService.GetByNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Order retrieved successfully", order)
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	var q dto.ListOrdersQuery
	if !bindQuery(c, &q) {
		return
	}

	orders, pagination, err := h.orderService.ListForUser(c.Request.Context(), middleware.SessionFrom(c).UserID, q)
	if err != nil {
		fail(c, err)
		return
	}
	paged(c, "User orders retrieved successfully", orders, pagination)
}

func (h *OrderHandler) List(c *gin.Context) {
	var q dto.ListOrdersQuery
	if !bindQuery(c, &q) {
		return
	}

	orders, pagination, err := h.orderService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	paged(c, "Orders retrieved successfully", orders, pagination)
}

func (h *OrderHandler) Stats(c *gin.Context) {
	stats, err := h.orderService.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Order statistics retrieved successfully", stats)
}

func (h *OrderHandler) GetByID(c *gin.Context) {
	id, valid := paramID(c, "id", "order")
	if !valid {
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Order retrieved successfully", order)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, valid := paramID(c, "id", "order")
	if !valid {
		return
	}
	var req dto.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Order status updated successfully", order)
}

func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	id, valid := paramID(c, "id", "order")
	if !valid {
		return
	}
	var req dto.UpdatePaymentStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Payment status updated successfully", order)
}
