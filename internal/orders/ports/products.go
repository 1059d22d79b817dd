package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// ProductStore is the stock ledger. AdjustStock must be a single atomic increment per product:
// a negative stockDelta is refused with an InsufficientStockError when it would take stock below zero,
// and sale never drops below zero.
type ProductStore interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	GetStock(ctx context.Context, id string) (domain.StockLevel, error)
	AdjustStock(ctx context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error)
}

// ErrProductNotFound is returned when a referenced product does not exist.
var ErrProductNotFound = errors.New("product not found")
