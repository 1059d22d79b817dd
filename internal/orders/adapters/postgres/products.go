package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductStore is the Postgres stock ledger. Adjustments are single guarded UPDATE statements.
type ProductStore struct {
	pool *pgxpool.Pool
}

var _ ports.ProductStore = (*ProductStore)(nil)

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, sku_code, price::text, discount, stock, sale
		FROM products
		WHERE id = $1
	`

	var (
		product domain.Product
		price   string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.SKU,
		&price,
		&product.Discount,
		&product.Stock,
		&product.Sale,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrProductNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse product price: %w", err)
	}

	return &product, nil
}

func (s *ProductStore) GetStock(ctx context.Context, id string) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := s.pool.QueryRow(ctx, `SELECT stock, sale FROM products WHERE id = $1`, id).Scan(&level.Stock, &level.Sale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StockLevel{}, ports.ErrProductNotFound
		}
		return domain.StockLevel{}, fmt.Errorf("select stock: %w", err)
	}
	return level, nil
}

// AdjustStock applies both deltas in one statement. When the guard rejects the row,
// a second read tells a missing product apart from insufficient stock.
func (s *ProductStore) AdjustStock(ctx context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error) {
	query := `
		UPDATE products
		SET stock = stock + $2,
		    sale = GREATEST(sale + $3, 0),
		    updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock, sale
	`

	var level domain.StockLevel
	err := s.pool.QueryRow(ctx, query, id, stockDelta, saleDelta).Scan(&level.Stock, &level.Sale)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.StockLevel{}, fmt.Errorf("adjust stock: %w", err)
	}

	current, err := s.GetStock(ctx, id)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{}, &domain.InsufficientStockError{
		ProductID: id,
		Available: current.Stock,
		Requested: -stockDelta,
	}
}

// Upsert writes a catalogue entry. It is used for seeding and by tests.
func (s *ProductStore) Upsert(ctx context.Context, product domain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, sku_code, price, discount, stock, sale)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    sku_code = EXCLUDED.sku_code,
		    price = EXCLUDED.price,
		    discount = EXCLUDED.discount,
		    stock = EXCLUDED.stock,
		    sale = EXCLUDED.sale,
		    updated_at = NOW()
	`, product.ID, product.Name, product.SKU, product.Price.String(), product.Discount, product.Stock, product.Sale)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
