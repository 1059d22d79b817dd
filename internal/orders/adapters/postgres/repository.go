package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Repository stores orders with their line items in one transaction per write.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.OrderRepository = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, user_id, shipping_address, subtotal, shipping_fee, total_amount,
	payment_method, payment_status, order_status, stock_deducted, payment_session_id, created_at, updated_at`

// Money columns are read as text so decimal.Decimal parses them without float rounding.
const selectOrderColumns = `id, user_id, shipping_address, subtotal::text, shipping_fee::text, total_amount::text,
	payment_method, payment_status, order_status, stock_deducted, payment_session_id, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $13)
		`

		_, err := tx.Exec(ctx, query,
			order.ID,
			order.UserID,
			order.ShippingAddress,
			order.Subtotal.String(),
			order.ShippingFee.String(),
			order.TotalAmount.String(),
			order.PaymentMethod,
			order.PaymentStatus,
			order.Status,
			order.StockDeducted,
			nullable(order.PaymentSessionID),
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", ports.ErrConflict, pgErr.ConstraintName)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return insertItems(ctx, tx, order.ID, order.Items)
	})
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *Repository) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, "payment_session_id = $1", sessionID)
}

func (r *Repository) getOne(ctx context.Context, where string, arg string) (*domain.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE ` + where

	order, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return &order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT ` + selectOrderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR order_status = $1)
		  AND ($2::text IS NULL OR user_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, nullable(filter.UserID), pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []string
	)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// Update rewrites the mutable order fields. Items are frozen at creation and never rewritten.
func (r *Repository) Update(ctx context.Context, order domain.Order) error {
	query := `
		UPDATE orders
		SET payment_status = $2,
		    order_status = $3,
		    stock_deducted = $4,
		    payment_session_id = $5,
		    updated_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		order.ID,
		order.PaymentStatus,
		order.Status,
		order.StockDeducted,
		nullable(order.PaymentSessionID),
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ports.ErrConflict, pgErr.ConstraintName)
		}
		return fmt.Errorf("update order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

// Delete removes the order; its items go with it through the foreign key cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []domain.Item) error {
	query := `
		INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query, orderID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice.String())
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *Repository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.Item, error) {
	query := `
		SELECT order_id, product_id, name, quantity, unit_price::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.Item, len(orderIDs))
	for rows.Next() {
		var (
			orderID   string
			unitPrice string
			item      domain.Item
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		price, err := decimal.NewFromString(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		item.UnitPrice = price
		items[orderID] = append(items[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order                        domain.Order
		subtotal, shippingFee, total string
		sessionID                    *string
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ShippingAddress,
		&subtotal,
		&shippingFee,
		&total,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.StockDeducted,
		&sessionID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if sessionID != nil {
		order.PaymentSessionID = *sessionID
	}

	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{subtotal, &order.Subtotal},
		{shippingFee, &order.ShippingFee},
		{total, &order.TotalAmount},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("parse amount %q: %w", field.raw, err)
		}
		*field.dst = value
	}
	return order, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
