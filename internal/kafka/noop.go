package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// NoopEventBus logs events instead of sending them. It is used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

var _ ports.EventBus = (*NoopEventBus)(nil)

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::"+EventOrderCreated, "order_id", order.ID, "total", order.TotalAmount.String())
	return nil
}

func (n *NoopEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	n.logger.DebugContext(ctx, "event::"+EventOrderStatusChanged, "order_id", order.ID, "from", from, "to", order.Status)
	return nil
}

func (n *NoopEventBus) PublishOrderDeleted(ctx context.Context, orderID string) error {
	n.logger.DebugContext(ctx, "event::"+EventOrderDeleted, "order_id", orderID)
	return nil
}
