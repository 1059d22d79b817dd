package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/kafka"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

var _ ports.EventBus = (*ObservableEventBus)(nil)

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, "EventBus.PublishOrderCreated", kafka.EventOrderCreated, order.ID,
		func(ctx context.Context) error { return e.bus.PublishOrderCreated(ctx, order) },
	)
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	return e.observe(ctx, "EventBus.PublishOrderStatusChanged", kafka.EventOrderStatusChanged, order.ID,
		func(ctx context.Context) error { return e.bus.PublishOrderStatusChanged(ctx, order, from) },
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(order.Status)),
	)
}

func (e *ObservableEventBus) PublishOrderDeleted(ctx context.Context, orderID string) error {
	return e.observe(ctx, "EventBus.PublishOrderDeleted", kafka.EventOrderDeleted, orderID,
		func(ctx context.Context) error { return e.bus.PublishOrderDeleted(ctx, orderID) },
	)
}

func (e *ObservableEventBus) observe(
	ctx context.Context,
	spanName, eventType, orderID string,
	fn func(context.Context) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := telemetry.StartClientSpan(ctx, spanName, append(attrs,
		attribute.String("order.id", orderID),
		attribute.String("messaging.system", "kafka"),
		attribute.String("event.type", eventType),
	)...)

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordPublish(ctx, eventType, time.Since(start), err)

	telemetry.Finish(span, err)
	return err
}
