package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// CartStore persists one active cart per user.
type CartStore interface {
	GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetByID(ctx context.Context, cartID string) (*domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Clear(ctx context.Context, cartID string) error
}

// ErrCartNotFound is returned when a user has no cart or the cart id is unknown.
var ErrCartNotFound = errors.New("cart not found")
