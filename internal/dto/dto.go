package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxora/storefront-api/internal/model"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) *Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	Name    *string         `json:"name" binding:"omitempty,min=2,max=50"`
	Phone   *string         `json:"phone" binding:"omitempty,max=20"`
	Avatar  *string         `json:"avatar" binding:"omitempty,url"`
	Address *AddressRequest `json:"address" binding:"omitempty"`
}

type AddressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country"`
}

type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
}

type UserResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	IsAdmin   bool           `json:"isAdmin"`
	Phone     string         `json:"phone,omitempty"`
	Avatar    string         `json:"avatar,omitempty"`
	Address   *model.Address `json:"address,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// --- Category ---

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`
	Slug        string `json:"slug" binding:"required,slug"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Image       string `json:"image" binding:"omitempty,url"`
	IsActive    *bool  `json:"isActive"`
	SortOrder   int    `json:"sortOrder"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=50"`
	Slug        *string `json:"slug" binding:"omitempty,slug"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Image       *string `json:"image" binding:"omitempty,url"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   *int    `json:"sortOrder"`
}

type CategoryResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	Image         string    `json:"image,omitempty"`
	IsActive      bool      `json:"isActive"`
	SortOrder     int       `json:"sortOrder"`
	ProductsCount int       `json:"productsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// --- Product ---

type ColorRequest struct {
	Name string `json:"name" binding:"required"`
	Hex  string `json:"hex" binding:"required,hex_color"`
}

type DimensionsRequest struct {
	Length *float64 `json:"length" binding:"required,min=0"`
	Width  *float64 `json:"width" binding:"required,min=0"`
	Height *float64 `json:"height" binding:"required,min=0"`
}

type CreateProductRequest struct {
	Title          string             `json:"title" binding:"required,min=3,max=200"`
	Slug           string             `json:"slug" binding:"required,slug"`
	Description    string             `json:"description" binding:"required,min=10,max=2000"`
	Price          *decimal.Decimal   `json:"price" binding:"required,min=0"`
	ComparePrice   *decimal.Decimal   `json:"comparePrice" binding:"omitempty,min=0"`
	Images         []string           `json:"images" binding:"required,min=1,max=10,dive,url"`
	Category       string             `json:"category" binding:"required,uuid"`
	Sizes          []string           `json:"sizes" binding:"required,min=1,dive,required"`
	Colors         []ColorRequest     `json:"colors" binding:"required,min=1,dive"`
	InStock        *int               `json:"inStock" binding:"required,min=0"`
	SKU            string             `json:"sku" binding:"required"`
	Featured       bool               `json:"featured"`
	Tags           []string           `json:"tags"`
	Weight         *float64           `json:"weight" binding:"omitempty,min=0"`
	Dimensions     *DimensionsRequest `json:"dimensions" binding:"omitempty"`
	SEOTitle       string             `json:"seoTitle" binding:"omitempty,max=60"`
	SEODescription string             `json:"seoDescription" binding:"omitempty,max=160"`
}

type UpdateProductRequest struct {
	Title          *string            `json:"title" binding:"omitempty,min=3,max=200"`
	Slug           *string            `json:"slug" binding:"omitempty,slug"`
	Description    *string            `json:"description" binding:"omitempty,min=10,max=2000"`
	Price          *decimal.Decimal   `json:"price" binding:"omitempty,min=0"`
	ComparePrice   *decimal.Decimal   `json:"comparePrice" binding:"omitempty,min=0"`
	Images         []string           `json:"images" binding:"omitempty,min=1,max=10,dive,url"`
	Category       *string            `json:"category" binding:"omitempty,uuid"`
	Sizes          []string           `json:"sizes" binding:"omitempty,min=1,dive,required"`
	Colors         []ColorRequest     `json:"colors" binding:"omitempty,min=1,dive"`
	InStock        *int               `json:"inStock" binding:"omitempty,min=0"`
	SKU            *string            `json:"sku" binding:"omitempty,min=1"`
	Featured       *bool              `json:"featured"`
	IsActive       *bool              `json:"isActive"`
	Tags           []string           `json:"tags"`
	Weight         *float64           `json:"weight" binding:"omitempty,min=0"`
	Dimensions     *DimensionsRequest `json:"dimensions" binding:"omitempty"`
	SEOTitle       *string            `json:"seoTitle" binding:"omitempty,max=60"`
	SEODescription *string            `json:"seoDescription" binding:"omitempty,max=160"`
}

type ListProductsQuery struct {
	Page     int      `form:"page,default=1" binding:"min=1"`
	Limit    int      `form:"limit,default=12" binding:"min=1,max=100"`
	Category string   `form:"category"`
	Featured *bool    `form:"featured"`
	MinPrice *float64 `form:"minPrice" binding:"omitempty,min=0"`
	MaxPrice *float64 `form:"maxPrice" binding:"omitempty,min=0"`
	Sizes    string   `form:"sizes"`
	Colors   string   `form:"colors"`
	Search   string   `form:"search"`
	Sort     string   `form:"sort,default=-createdAt" binding:"oneof=createdAt -createdAt price -price title -title"`
}

type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

type ProductResponse struct {
	ID                 uuid.UUID          `json:"id"`
	Title              string             `json:"title"`
	Slug               string             `json:"slug"`
	Description        string             `json:"description"`
	Price              decimal.Decimal    `json:"price"`
	ComparePrice       *decimal.Decimal   `json:"comparePrice,omitempty"`
	DiscountPercentage int                `json:"discountPercentage"`
	Images             []string           `json:"images"`
	Category           *model.CategoryRef `json:"category"`
	Sizes              []string           `json:"sizes"`
	Colors             []model.Color      `json:"colors"`
	InStock            int                `json:"inStock"`
	SKU                string             `json:"sku"`
	Featured           bool               `json:"featured"`
	IsActive           bool               `json:"isActive"`
	Tags               []string           `json:"tags"`
	Weight             *float64           `json:"weight,omitempty"`
	Dimensions         *model.Dimensions  `json:"dimensions,omitempty"`
	SEOTitle           string             `json:"seoTitle,omitempty"`
	SEODescription     string             `json:"seoDescription,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// --- Order ---

type OrderItemRequest struct {
	Product  string `json:"product" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Size     string `json:"size" binding:"required"`
	Color    string `json:"color" binding:"required"`
}

type ShippingAddressRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required"`
	Street    string `json:"street" binding:"required"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	ZipCode   string `json:"zipCode" binding:"required"`
	Country   string `json:"country"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest      `json:"items" binding:"required,min=1,dive"`
	ShippingAddress ShippingAddressRequest  `json:"shippingAddress"`
	BillingAddress  *ShippingAddressRequest `json:"billingAddress" binding:"omitempty"`
	PaymentMethod   string                  `json:"paymentMethod" binding:"required,oneof=card paypal bank_transfer cash_on_delivery"`
	Notes           string                  `json:"notes" binding:"omitempty,max=500"`

	// OrderNumber is set by internal callers only; checkout generates one.
	OrderNumber string `json:"-"`
}

type UpdateOrderStatusRequest struct {
	Status         string  `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled refunded"`
	TrackingNumber *string `json:"trackingNumber" binding:"omitempty,max=100"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required,oneof=pending paid failed refunded"`
	PaymentID     string `json:"paymentId" binding:"omitempty,max=200"`
}

type ListOrdersQuery struct {
	Page          int    `form:"page,default=1" binding:"min=1"`
	Limit         int    `form:"limit,default=10" binding:"min=1,max=100"`
	Status        string `form:"status" binding:"omitempty,oneof=pending processing shipped delivered cancelled refunded"`
	PaymentStatus string `form:"paymentStatus" binding:"omitempty,oneof=pending paid failed refunded"`
	Customer      string `form:"customer" binding:"omitempty,max=100"`
	StartDate     string `form:"startDate"`
	EndDate       string `form:"endDate"`
}

type CustomerResponse struct {
	User  *uuid.UUID `json:"user,omitempty"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Phone string     `json:"phone,omitempty"`
}

type OrderItemResponse struct {
	Product  any             `json:"product"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Image    string          `json:"image"`
}

type OrderResponse struct {
	ID              uuid.UUID              `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	Customer        CustomerResponse       `json:"customer"`
	Items           []OrderItemResponse    `json:"items"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Tax             decimal.Decimal        `json:"tax"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Discount        decimal.Decimal        `json:"discount"`
	Total           decimal.Decimal        `json:"total"`
	Status          model.OrderStatus      `json:"status"`
	PaymentStatus   model.PaymentStatus    `json:"paymentStatus"`
	PaymentMethod   model.PaymentMethod    `json:"paymentMethod"`
	PaymentID       string                 `json:"paymentId,omitempty"`
	ShippingAddress model.ShippingAddress  `json:"shippingAddress"`
	BillingAddress  *model.ShippingAddress `json:"billingAddress,omitempty"`
	TrackingNumber  string                 `json:"trackingNumber,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type OrderStatsResponse struct {
	TotalOrders       int64           `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	PendingOrders     int64           `json:"pendingOrders"`
	ProcessingOrders  int64           `json:"processingOrders"`
	ShippedOrders     int64           `json:"shippedOrders"`
	DeliveredOrders   int64           `json:"deliveredOrders"`
}

// --- Upload ---

type UploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}
