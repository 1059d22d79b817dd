package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows list queries by status, owner and pagination.
type ListFilter struct {
	Status   *domain.OrderStatus
	UserID   string
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrConflict is returned when a unique constraint rejects a write, such as a second order for one payment session.
	ErrConflict = errors.New("conflicting write")
)
