package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CartStore keeps one cart row per user with its lines in cart_items.
type CartStore struct {
	pool *pgxpool.Pool
}

var _ ports.CartStore = (*CartStore)(nil)

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.getOne(ctx, "user_id = $1", userID)
}

func (s *CartStore) GetByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.getOne(ctx, "id = $1", cartID)
}

func (s *CartStore) getOne(ctx context.Context, where, arg string) (*domain.Cart, error) {
	query := `SELECT id, user_id, total_price::text, updated_at FROM carts WHERE ` + where

	var (
		cart  domain.Cart
		total string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(&cart.ID, &cart.UserID, &total, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrCartNotFound
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}
	if cart.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse cart total: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, name, quantity, unit_price::text
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var (
			item  domain.CartItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse cart item price: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return &cart, nil
}

// Save upserts the cart and replaces its lines.
func (s *CartStore) Save(ctx context.Context, cart domain.Cart) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO carts (id, user_id, total_price, updated_at)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (id) DO UPDATE
			SET total_price = EXCLUDED.total_price, updated_at = EXCLUDED.updated_at
		`, cart.ID, cart.UserID, cart.TotalPrice.String(), cart.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}

		if len(cart.Items) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, item := range cart.Items {
			batch.Queue(`
				INSERT INTO cart_items (cart_id, position, product_id, name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6::numeric)
			`, cart.ID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice.String())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert cart items: %w", err)
		}
		return nil
	})
}

// Clear empties the cart but keeps the row so the user keeps the same cart id.
func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE carts SET total_price = 0, updated_at = $2 WHERE id = $1`,
			cartID, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ports.ErrCartNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		return nil
	})
}
