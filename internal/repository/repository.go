package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxora/storefront-api/internal/model"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("record changed concurrently")
	ErrInUse             = errors.New("record is still referenced")
)

// DuplicateError reports which unique field rejected a write.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("duplicate %s", e.Field) }

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// StockError identifies the line item whose conditional decrement matched nothing.
type StockError struct {
	ProductID uuid.UUID
	Title     string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	List(ctx context.Context, activeOnly bool) ([]model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProductSort string

const (
	SortNewest    ProductSort = "-createdAt"
	SortOldest    ProductSort = "createdAt"
	SortPriceAsc  ProductSort = "price"
	SortPriceDesc ProductSort = "-price"
	SortTitleAsc  ProductSort = "title"
	SortTitleDesc ProductSort = "-title"
)

type ProductFilter struct {
	ActiveOnly bool
	CategoryID *uuid.UUID
	ExcludeID  *uuid.UUID
	Featured   *bool
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sizes      []string
	Colors     []string
	Search     string
	Sort       ProductSort
	Limit      int
	Offset     int
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	ExistsBySKU(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrderFilter struct {
	UserID        *uuid.UUID
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	Customer      string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

type OrderRepository interface {
	// Place writes the order and applies every decrement atomically. A decrement
	// that would take stock below zero aborts the whole write with a *StockError.
	Place(ctx context.Context, order *model.Order, decrements []model.StockDecrement) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	// UpdateStatus moves the order from one status to another and fails with
	// ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus, paymentID string) error
	Stats(ctx context.Context) (*model.OrderStats, error)
}

// checkOrderState rejects a stored order whose status or payment status is not
// one the order lifecycle knows.
func checkOrderState(o *model.Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %s has unknown status %q", o.ID, o.Status)
	}
	if !o.PaymentStatus.Valid() {
		return fmt.Errorf("order %s has unknown payment status %q", o.ID, o.PaymentStatus)
	}
	return nil
}

func pageDefaults(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
