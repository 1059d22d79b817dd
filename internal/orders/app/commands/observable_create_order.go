package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableCreateOrderHandler adds tracing, logs and the order creation metrics.
type ObservableCreateOrderHandler struct {
	handler CommandHandler[CreateOrderCommand]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreateOrderHandler(
	handler CommandHandler[CreateOrderCommand],
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *ObservableCreateOrderHandler {
	return &ObservableCreateOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderCreationDuration(ctx, duration)
		o.metrics.RecordOrderCreated(ctx, success)
		o.metrics.RecordCommand(ctx, cmd.CommandName(), duration, success)
	}()

	o.logger.InfoContext(ctx, "creating order", cmd.LogFields()...)

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", err,
			"user_id", cmd.UserID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.user_id", order.UserID),
		attribute.String("order.total_amount", order.TotalAmount.StringFixed(2)),
		attribute.Int("order.items", len(order.Items)),
		attribute.Bool("order.stock_deducted", order.StockDeducted),
	)

	o.logger.InfoContext(ctx, "order created successfully",
		"order_id", order.ID,
		"user_id", order.UserID,
		"total_amount", order.TotalAmount.StringFixed(2),
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
