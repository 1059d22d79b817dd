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

// ObservableCommandHandler wraps any order command with a span, structured logs and command metrics.
type ObservableCommandHandler[C Command] struct {
	handler CommandHandler[C]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler[C Command](
	handler CommandHandler[C],
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *ObservableCommandHandler[C] {
	return &ObservableCommandHandler[C]{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCommandHandler[C]) Handle(ctx context.Context, cmd C) (*domain.Order, error) {
	name := cmd.CommandName()
	ctx, span := telemetry.StartSpan(ctx, "OrderCommand."+name)
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("command", name))

	start := time.Now()
	var success bool
	defer func() {
		o.metrics.RecordCommand(ctx, name, time.Since(start).Seconds(), success)
	}()

	o.logger.InfoContext(ctx, "handling order command", append([]any{"command", name}, cmd.LogFields()...)...)

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "order command failed",
			append([]any{"command", name, "error", err}, cmd.LogFields()...)...,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.String("order.payment_status", string(order.PaymentStatus)),
		attribute.Bool("order.stock_deducted", order.StockDeducted),
	)

	o.logger.InfoContext(ctx, "order command completed",
		"command", name,
		"order_id", order.ID,
		"order_status", order.Status,
		"payment_status", order.PaymentStatus,
		"stock_deducted", order.StockDeducted,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
