package adapters

import (
	"context"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.opentelemetry.io/otel/attribute"
)

const storeOrders = "orders"

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

var _ ports.OrderRepository = (*ObservableRepository)(nil)

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return observe(ctx, r.metrics, storeOrders, "OrderRepository.Create", "create_order",
		func(ctx context.Context) error { return r.repo.Create(ctx, order) },
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := observe(ctx, r.metrics, storeOrders, "OrderRepository.GetByID", "get_order_by_id",
		func(ctx context.Context) (err error) {
			order, err = r.repo.GetByID(ctx, id)
			return err
		},
		attribute.String("order.id", id),
	)
	return order, err
}

func (r *ObservableRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	var order *domain.Order
	err := observe(ctx, r.metrics, storeOrders, "OrderRepository.GetByPaymentSession", "get_order_by_session",
		func(ctx context.Context) (err error) {
			order, err = r.repo.GetByPaymentSession(ctx, sessionID)
			return err
		},
		attribute.String("payment.session_id", sessionID),
	)
	return order, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.UserID != "" {
		attrs = append(attrs, attribute.String("filter.user_id", filter.UserID))
	}

	var orders []domain.Order
	err := observe(ctx, r.metrics, storeOrders, "OrderRepository.List", "list_orders",
		func(ctx context.Context) (err error) {
			orders, err = r.repo.List(ctx, filter)
			return err
		},
		attrs...,
	)
	return orders, err
}

func (r *ObservableRepository) Update(ctx context.Context, order domain.Order) error {
	return observe(ctx, r.metrics, storeOrders, "OrderRepository.Update", "update_order",
		func(ctx context.Context) error { return r.repo.Update(ctx, order) },
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.Bool("order.stock_deducted", order.StockDeducted),
	)
}

func (r *ObservableRepository) Delete(ctx context.Context, id string) error {
	return observe(ctx, r.metrics, storeOrders, "OrderRepository.Delete", "delete_order",
		func(ctx context.Context) error { return r.repo.Delete(ctx, id) },
		attribute.String("order.id", id),
	)
}
