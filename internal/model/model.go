package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID               uuid.UUID
	Name             string
	Email            string
	Password         string
	IsAdmin          bool
	Phone            string
	Avatar           string
	Address          *Address
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Address struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	ZipCode string `json:"zipCode" bson:"zipCode"`
	Country string `json:"country" bson:"country"`
}

type Category struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   string
	Image         string
	IsActive      bool
	SortOrder     int
	ProductsCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CategoryRef is the expanded form of a product's category reference.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type Color struct {
	Name string `json:"name" bson:"name"`
	Hex  string `json:"hex" bson:"hex"`
}

type Dimensions struct {
	Length float64 `json:"length" bson:"length"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

type Product struct {
	ID             uuid.UUID
	Title          string
	Slug           string
	Description    string
	Price          decimal.Decimal
	ComparePrice   *decimal.Decimal
	Images         []string
	CategoryID     uuid.UUID
	Category       *CategoryRef
	Sizes          []string
	Colors         []Color
	InStock        int
	SKU            string
	Featured       bool
	IsActive       bool
	Tags           []string
	Weight         *float64
	Dimensions     *Dimensions
	SEOTitle       string
	SEODescription string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Product) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

func (p *Product) HasColor(name string) bool {
	return slices.ContainsFunc(p.Colors, func(c Color) bool { return c.Name == name })
}

func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// DiscountPercentage mirrors the storefront badge: 0 unless comparePrice exceeds price.
func (p *Product) DiscountPercentage() int {
	if p.ComparePrice == nil || p.ComparePrice.LessThanOrEqual(p.Price) {
		return 0
	}
	pct := p.ComparePrice.Sub(p.Price).Div(*p.ComparePrice).Mul(decimal.NewFromInt(100))
	return int(pct.Round(0).IntPart())
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {OrderStatusRefunded},
	OrderStatusRefunded:   nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether an order in status s may move to next.
// Re-applying the current status is allowed and treated as a no-op by callers.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	return slices.Contains(orderTransitions[s], next)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type ShippingAddress struct {
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
	Email     string `json:"email" bson:"email"`
	Phone     string `json:"phone" bson:"phone"`
	Street    string `json:"street" bson:"street"`
	City      string `json:"city" bson:"city"`
	State     string `json:"state" bson:"state"`
	ZipCode   string `json:"zipCode" bson:"zipCode"`
	Country   string `json:"country" bson:"country"`
}

func (a ShippingAddress) FullName() string {
	return a.FirstName + " " + a.LastName
}

type Customer struct {
	UserID *uuid.UUID
	Name   string
	Email  string
	Phone  string
}

// ProductRef is the live product data expanded onto an order item on read.
// It is nil when the product has since been deleted.
type ProductRef struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Slug   string    `json:"slug"`
	Images []string  `json:"images"`
}

// OrderItem is a snapshot taken at checkout; later product edits do not touch it.
type OrderItem struct {
	ProductID uuid.UUID
	Product   *ProductRef
	Title     string
	Price     decimal.Decimal
	Quantity  int
	Size      string
	Color     string
	Image     string
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	Customer        Customer
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	PaymentID       string
	ShippingAddress ShippingAddress
	BillingAddress  *ShippingAddress
	TrackingNumber  string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockDecrement is one conditional inventory write issued when an order is placed.
type StockDecrement struct {
	ProductID uuid.UUID
	Title     string
	Quantity  int
}

type OrderStats struct {
	TotalOrders       int64
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	PendingOrders     int64
	ProcessingOrders  int64
	ShippedOrders     int64
	DeliveredOrders   int64
}

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	Type        OrderEventType  `json:"type"`
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
}

// Session is the authenticated caller attached to a request.
type Session struct {
	UserID    uuid.UUID
	Email     string
	IsAdmin   bool
	TokenID   string
	ExpiresAt time.Time
}
