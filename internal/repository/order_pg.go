package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/luxora/storefront-api/internal/model"
)

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderSelect = `SELECT o.id, o.order_number, o.customer_user_id, o.customer_name, o.customer_email,
	o.customer_phone, o.subtotal, o.tax, o.shipping, o.discount, o.total, o.status, o.payment_status,
	o.payment_method, o.payment_id, o.shipping_address, o.billing_address, o.tracking_number, o.notes,
	o.created_at, o.updated_at
	FROM orders o`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Customer.UserID, &o.Customer.Name, &o.Customer.Email,
		&o.Customer.Phone, &o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.PaymentID, &o.ShippingAddress, &o.BillingAddress, &o.TrackingNumber, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := checkOrderState(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *pgOrderRepo) Place(ctx context.Context, order *model.Order, decrements []model.StockDecrement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, customer_user_id, customer_name, customer_email, customer_phone,
		 subtotal, tax, shipping, discount, total, status, payment_status, payment_method, payment_id,
		 shipping_address, billing_address, tracking_number, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.Customer.UserID, order.Customer.Name, order.Customer.Email,
		order.Customer.Phone, order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total,
		order.Status, order.PaymentStatus, order.PaymentMethod, order.PaymentID, order.ShippingAddress,
		order.BillingAddress, order.TrackingNumber, order.Notes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if dup, ok := uniqueViolation(err); ok {
			return dup
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, title, price, quantity, size, color, image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			order.ID, i, item.ProductID, item.Title, item.Price, item.Quantity, item.Size, item.Color, item.Image,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	// Lock rows in a stable order so concurrent checkouts cannot deadlock.
	sorted := slices.Clone(decrements)
	slices.SortStableFunc(sorted, func(a, b model.StockDecrement) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	for _, d := range sorted {
		ct, err := tx.Exec(ctx,
			`UPDATE products SET in_stock = in_stock - $2, updated_at = NOW() WHERE id = $1 AND in_stock >= $2`,
			d.ProductID, d.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return &StockError{ProductID: d.ProductID, Title: d.Title}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, orderSelect+` WHERE o.id = $1`, id)
}

func (r *pgOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.getOne(ctx, orderSelect+` WHERE o.order_number = $1`, orderNumber)
}

func (r *pgOrderRepo) getOne(ctx context.Context, query string, arg any) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// loadItems fetches the line items of the given orders, expanding the live
// product reference when the product still exists.
func (r *pgOrderRepo) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.product_id, p.id, p.title, p.slug, p.images,
		 oi.title, oi.price, oi.quantity, oi.size, oi.color, oi.image
		 FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.order_id, oi.position`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID   uuid.UUID
			item      model.OrderItem
			refID     *uuid.UUID
			refTitle  *string
			refSlug   *string
			refImages []string
		)
		if err := rows.Scan(
			&orderID, &item.ProductID, &refID, &refTitle, &refSlug, &refImages,
			&item.Title, &item.Price, &item.Quantity, &item.Size, &item.Color, &item.Image,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if refID != nil {
			item.Product = &model.ProductRef{ID: *refID, Title: *refTitle, Slug: *refSlug, Images: refImages}
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}

func buildOrderWhere(f OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "o.customer_user_id = "+arg(*f.UserID))
	}
	if f.Status != "" {
		conds = append(conds, "o.status = "+arg(f.Status))
	}
	if f.PaymentStatus != "" {
		conds = append(conds, "o.payment_status = "+arg(f.PaymentStatus))
	}
	if f.Customer != "" {
		n := arg("%" + escapeLike(f.Customer) + "%")
		conds = append(conds, fmt.Sprintf(
			"(o.customer_name ILIKE %[1]s OR o.customer_email ILIKE %[1]s OR o.order_number ILIKE %[1]s)", n,
		))
	}
	if f.From != nil {
		conds = append(conds, "o.created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "o.created_at <= "+arg(*f.To))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *pgOrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	limit, offset := pageDefaults(f.Limit, f.Offset)
	where, args := buildOrderWhere(f)

	var (
		orders []model.Order
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		query := fmt.Sprintf(`%s%s ORDER BY o.created_at DESC, o.id LIMIT %d OFFSET %d`, orderSelect, where, limit, offset)
		rows, err := r.pool.Query(gctx, query, args...)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if len(orders) == 0 {
		return orders, total, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, total, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, tracking_number = COALESCE($4, tracking_number), updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id, from, to, trackingNumber,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *pgOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus, paymentID string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, payment_id = COALESCE(NULLIF($3, ''), payment_id), updated_at = NOW()
		 WHERE id = $1`,
		id, status, paymentID,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgOrderRepo) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *pgOrderRepo) Stats(ctx context.Context) (*model.OrderStats, error) {
	s := &model.OrderStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(total), 0),
		        COALESCE(ROUND(AVG(total), 2), 0),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'processing'),
		        COUNT(*) FILTER (WHERE status = 'shipped'),
		        COUNT(*) FILTER (WHERE status = 'delivered')
		 FROM orders`,
	).Scan(
		&s.TotalOrders, &s.TotalRevenue, &s.AverageOrderValue,
		&s.PendingOrders, &s.ProcessingOrders, &s.ShippedOrders, &s.DeliveredOrders,
	)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return s, nil
}
