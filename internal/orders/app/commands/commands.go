package commands

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

// Command is implemented by every order command so decorators can name and describe it.
type Command interface {
	CommandName() string
	LogFields() []any
}

// CommandHandler handles one command type and returns the affected order.
type CommandHandler[C Command] interface {
	Handle(ctx context.Context, cmd C) (*domain.Order, error)
}

// StockReconciler commits and restores order quantities against the product ledger.
// Restore never fails; products it cannot adjust are reported by the implementation.
type StockReconciler interface {
	Commit(ctx context.Context, items []domain.Item) error
	Restore(ctx context.Context, items []domain.Item)
}

// TransitionRecorder is told about every applied status change.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, from, to string)
}

// OrderPolicy holds the pricing and stock rules applied when an order is created.
type OrderPolicy struct {
	ShippingFee decimal.Decimal
	// DeductOnCreate commits stock when the order is placed instead of when it is confirmed.
	DeductOnCreate bool
}

// publish runs an event publication and logs a failure instead of returning it.
// The order change is already durable when events go out.
func publish(ctx context.Context, logger *slog.Logger, event, orderID string, fn func() error) {
	if err := fn(); err != nil {
		logger.WarnContext(ctx, "failed to publish order event",
			"event", event,
			"order_id", orderID,
			"error", err,
		)
	}
}
