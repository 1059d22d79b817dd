package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type DeleteOrderCommand struct {
	OrderID string
}

func (c DeleteOrderCommand) CommandName() string { return "delete_order" }

func (c DeleteOrderCommand) LogFields() []any {
	return []any{"order_id", c.OrderID}
}

func (c DeleteOrderCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return domain.NewValidationError("order_id", "is required")
	}
	return nil
}

// DeleteOrderCommandHandler hard-deletes an order, returning its stock first when it holds any.
type DeleteOrderCommandHandler struct {
	repo   ports.OrderRepository
	stock  StockReconciler
	events ports.EventBus
	logger *slog.Logger
}

func NewDeleteOrderCommandHandler(
	repo ports.OrderRepository,
	stock StockReconciler,
	events ports.EventBus,
	logger *slog.Logger,
) *DeleteOrderCommandHandler {
	return &DeleteOrderCommandHandler{
		repo:   repo,
		stock:  stock,
		events: events,
		logger: logger,
	}
}

// Handle returns the order as it was before deletion.
func (h *DeleteOrderCommandHandler) Handle(ctx context.Context, cmd DeleteOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if order.StockDeducted {
		h.stock.Restore(ctx, order.Items)
	}

	if err := h.repo.Delete(ctx, order.ID); err != nil {
		if order.StockDeducted {
			if undoErr := h.stock.Commit(ctx, order.Items); undoErr != nil {
				h.logger.ErrorContext(ctx, "restored stock could not be re-committed after failed delete",
					"order_id", order.ID,
					"error", undoErr,
				)
				err = errors.Join(err, undoErr)
			}
		}
		return nil, fmt.Errorf("delete order: %w", err)
	}

	publish(ctx, h.logger, "order.deleted", order.ID, func() error {
		return h.events.PublishOrderDeleted(ctx, order.ID)
	})

	return order, nil
}
